// Package link owns the raw packet handle shared by every sender and receiver
// of a session.
package link

import (
	"errors"
	"fmt"
	"net"
	"time"

	"arpmitm/internal/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// ErrTimeout is returned by ReadPacketData when no frame arrived within the
// read timeout. Callers use it to check for cancellation and deadlines.
var ErrTimeout = errors.New("link: read timeout")

// DefaultFilter keeps the kernel from copying traffic nobody here reads.
const DefaultFilter = "arp or tcp"

// readTimeout bounds every blocking read so the loop can observe interrupts.
const readTimeout = 100 * time.Millisecond

// Transport is a raw frame I/O capability.
type Transport interface {
	gopacket.PacketDataSource
	WritePacketData(data []byte) error
}

// Link is a pcap handle bound to one interface.
type Link struct {
	Name   string
	Local  models.HostAddress
	handle *pcap.Handle
}

// Open opens the named interface in promiscuous mode and applies filter.
// An empty filter falls back to DefaultFilter.
func Open(interfaceName, filter string) (*Link, error) {
	iface, err := net.InterfaceByName(interfaceName)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface %s: %w", interfaceName, err)
	}

	local, err := LocalAddress(iface)
	if err != nil {
		return nil, err
	}

	handle, err := pcap.OpenLive(interfaceName, 65536, true, readTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap handle: %w", err)
	}

	if filter == "" {
		filter = DefaultFilter
	}
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("could not set BPF filter %q: %w", filter, err)
	}

	return &Link{Name: interfaceName, Local: local, handle: handle}, nil
}

// LocalAddress returns the first IPv4 address and the hardware address of iface.
func LocalAddress(iface *net.Interface) (models.HostAddress, error) {
	if len(iface.HardwareAddr) != 6 {
		return models.HostAddress{}, fmt.Errorf("interface %s has no ethernet address", iface.Name)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return models.HostAddress{}, fmt.Errorf("failed to get interface addresses: %w", err)
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return models.HostAddress{IP: ip4, MAC: iface.HardwareAddr}, nil
			}
		}
	}
	return models.HostAddress{}, fmt.Errorf("no IPv4 address found on interface %s", iface.Name)
}

func (l *Link) WritePacketData(data []byte) error {
	if err := l.handle.WritePacketData(data); err != nil {
		return fmt.Errorf("write on %s: %w", l.Name, err)
	}
	return nil
}

func (l *Link) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := l.handle.ReadPacketData()
	if errors.Is(err, pcap.NextErrorTimeoutExpired) {
		return nil, ci, ErrTimeout
	}
	if err != nil {
		return nil, ci, fmt.Errorf("read on %s: %w", l.Name, err)
	}
	return data, ci, nil
}

func (l *Link) Close() {
	if l.handle != nil {
		l.handle.Close()
	}
}
