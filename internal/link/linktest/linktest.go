// Package linktest provides a simulated Ethernet segment for tests.
package linktest

import (
	"net"
	"sync"
	"time"

	"arpmitm/internal/link"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Responder is called for every written frame and returns frames to queue
// for reading.
type Responder func(pkt gopacket.Packet) [][]byte

// Link is an in-memory link. It answers ARP requests for registered hosts.
type Link struct {
	mu        sync.Mutex
	hosts     map[string]net.HardwareAddr
	inbox     [][]byte
	sent      [][]byte
	responder Responder
	writeErr  error
	failAfter int
	attempts  int
	// OnWrite, when set, is called after a frame is recorded.
	OnWrite   func(n int)
}

var _ link.Transport = (*Link)(nil)

func New() *Link {
	return &Link{hosts: make(map[string]net.HardwareAddr), failAfter: -1}
}

// AddHost registers a device that replies to ARP requests for ip.
func (l *Link) AddHost(ip, mac string) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		panic(err)
	}
	l.mu.Lock()
	l.hosts[net.ParseIP(ip).To4().String()] = hw
	l.mu.Unlock()
}

// SetResponder installs a hook run for each written frame.
func (l *Link) SetResponder(r Responder) {
	l.mu.Lock()
	l.responder = r
	l.mu.Unlock()
}

// FailWrites makes every write after the first n writes return err.
func (l *Link) FailWrites(n int, err error) {
	l.mu.Lock()
	l.failAfter = n
	l.writeErr = err
	l.mu.Unlock()
}

// Inject queues a frame for reading.
func (l *Link) Inject(frame []byte) {
	l.mu.Lock()
	l.inbox = append(l.inbox, frame)
	l.mu.Unlock()
}

func (l *Link) WritePacketData(data []byte) error {
	l.mu.Lock()
	l.attempts++
	if l.failAfter >= 0 && len(l.sent) >= l.failAfter {
		err := l.writeErr
		l.mu.Unlock()
		return err
	}
	frame := append([]byte(nil), data...)
	l.sent = append(l.sent, frame)
	n := len(l.sent)

	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	if arpLayer := pkt.Layer(layers.LayerTypeARP); arpLayer != nil {
		req := arpLayer.(*layers.ARP)
		if req.Operation == layers.ARPRequest {
			if mac, ok := l.hosts[net.IP(req.DstProtAddress).String()]; ok {
				l.inbox = append(l.inbox, ARPReply(mac, req.DstProtAddress, req.SourceHwAddress, req.SourceProtAddress))
			}
		}
	}
	responder := l.responder
	onWrite := l.OnWrite
	l.mu.Unlock()

	if responder != nil {
		for _, out := range responder(pkt) {
			l.Inject(out)
		}
	}
	if onWrite != nil {
		onWrite(n)
	}
	return nil
}

func (l *Link) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	l.mu.Lock()
	if len(l.inbox) > 0 {
		data := l.inbox[0]
		l.inbox = l.inbox[1:]
		l.mu.Unlock()
		return data, gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(data), Length: len(data)}, nil
	}
	l.mu.Unlock()

	time.Sleep(time.Millisecond)
	return nil, gopacket.CaptureInfo{}, link.ErrTimeout
}

// Attempts counts every write, failed or not.
func (l *Link) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// Sent returns the decoded frames written so far.
func (l *Link) Sent() []gopacket.Packet {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]gopacket.Packet, len(l.sent))
	for i, frame := range l.sent {
		out[i] = gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	}
	return out
}

// SentARP returns the ARP layers of every written ARP frame.
func (l *Link) SentARP() []*layers.ARP {
	var out []*layers.ARP
	for _, pkt := range l.Sent() {
		if arpLayer := pkt.Layer(layers.LayerTypeARP); arpLayer != nil {
			out = append(out, arpLayer.(*layers.ARP))
		}
	}
	return out
}

// ARPReply builds an Ethernet framed ARP reply.
func ARPReply(srcMAC net.HardwareAddr, srcIP []byte, dstMAC net.HardwareAddr, dstIP []byte) []byte {
	eth := layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   []byte(srcMAC),
		SourceProtAddress: []byte(net.IP(srcIP).To4()),
		DstHwAddress:      []byte(dstMAC),
		DstProtAddress:    []byte(net.IP(dstIP).To4()),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
