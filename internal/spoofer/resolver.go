package spoofer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"arpmitm/internal/link"
	"arpmitm/internal/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no device answered an ARP request.
var ErrNotFound = errors.New("no ARP reply received")

const (
	DefaultResolveTimeout = 5 * time.Second
	DefaultResolveRetries = 3
)

// Resolver maps IPv4 addresses to hardware addresses by broadcasting ARP requests.
type Resolver struct {
	link  link.Transport
	local models.HostAddress
	log   *logrus.Entry

	// Timeout is how long each broadcast waits for a reply.
	Timeout time.Duration
	// Retries is the number of extra broadcasts after the first one.
	Retries int
}

func NewResolver(t link.Transport, local models.HostAddress, log *logrus.Entry) *Resolver {
	return &Resolver{
		link:    t,
		local:   local,
		log:     log.WithField("component", "resolver"),
		Timeout: DefaultResolveTimeout,
		Retries: DefaultResolveRetries,
	}
}

// Resolve returns the hardware address of the device owning ip. It gives up
// with ErrNotFound once Retries+1 broadcasts each went unanswered for Timeout.
func (r *Resolver) Resolve(ctx context.Context, ip net.IP) (net.HardwareAddr, error) {
	target := ip.To4()
	if target == nil {
		return nil, fmt.Errorf("invalid IPv4 address: %s", ip)
	}

	request, err := arpFrame{
		Operation: layers.ARPRequest,
		EthSrc:    r.local.MAC,
		EthDst:    broadcastMAC,
		SenderMAC: r.local.MAC,
		SenderIP:  r.local.IP,
		TargetMAC: zeroMAC,
		TargetIP:  target,
	}.serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize ARP request: %w", err)
	}

	for attempt := 0; attempt <= r.Retries; attempt++ {
		r.log.WithFields(logrus.Fields{"ip": target, "attempt": attempt + 1}).Debug("Broadcasting ARP request")
		if err := r.link.WritePacketData(request); err != nil {
			return nil, fmt.Errorf("failed to send ARP request: %w", err)
		}

		mac, err := r.await(ctx, target, time.Now().Add(r.Timeout))
		if err != nil {
			return nil, err
		}
		if mac != nil {
			return mac, nil
		}
	}
	return nil, fmt.Errorf("resolve %s: %w", target, ErrNotFound)
}

// await reads frames until a reply for target arrives or the deadline passes.
// A nil MAC with a nil error means the deadline passed.
func (r *Resolver) await(ctx context.Context, target net.IP, deadline time.Time) (net.HardwareAddr, error) {
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, _, err := r.link.ReadPacketData()
		if errors.Is(err, link.ErrTimeout) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ARP reply: %w", err)
		}

		if mac := r.match(gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy), target); mac != nil {
			return mac, nil
		}
	}
	return nil, nil
}

func (r *Resolver) match(pkt gopacket.Packet, target net.IP) net.HardwareAddr {
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		return nil
	}
	arp := arpLayer.(*layers.ARP)
	if arp.Operation != layers.ARPReply || len(arp.SourceHwAddress) != 6 {
		return nil
	}
	if !net.IP(arp.SourceProtAddress).Equal(target) {
		return nil
	}
	// Our own injected replies are seen on the wire too.
	if bytes.Equal(arp.SourceHwAddress, r.local.MAC) {
		return nil
	}
	return append(net.HardwareAddr(nil), arp.SourceHwAddress...)
}
