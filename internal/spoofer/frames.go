package spoofer

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	zeroMAC      = net.HardwareAddr{0, 0, 0, 0, 0, 0}
)

// arpFrame describes one Ethernet framed ARP packet. EthDst defaults to
// TargetMAC when unset.
type arpFrame struct {
	Operation uint16
	EthSrc    net.HardwareAddr
	EthDst    net.HardwareAddr
	SenderMAC net.HardwareAddr
	SenderIP  net.IP
	TargetMAC net.HardwareAddr
	TargetIP  net.IP
}

func (f arpFrame) serialize() ([]byte, error) {
	ethDst := f.EthDst
	if ethDst == nil {
		ethDst = f.TargetMAC
	}
	eth := layers.Ethernet{
		SrcMAC:       f.EthSrc,
		DstMAC:       ethDst,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         f.Operation,
		SourceHwAddress:   []byte(f.SenderMAC),
		SourceProtAddress: []byte(f.SenderIP.To4()),
		DstHwAddress:      []byte(f.TargetMAC),
		DstProtAddress:    []byte(f.TargetIP.To4()),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// tcpSegment describes one Ethernet framed IPv4/TCP segment with no payload.
type tcpSegment struct {
	EthSrc  net.HardwareAddr
	EthDst  net.HardwareAddr
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort layers.TCPPort
	DstPort layers.TCPPort
	Seq     uint32
	Ack     uint32
	SYN     bool
	ACK     bool
}

func (s tcpSegment) serialize() ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       s.EthSrc,
		DstMAC:       s.EthDst,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    s.SrcIP.To4(),
		DstIP:    s.DstIP.To4(),
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: s.SrcPort,
		DstPort: s.DstPort,
		Seq:     s.Seq,
		Ack:     s.Ack,
		SYN:     s.SYN,
		ACK:     s.ACK,
		Window:  8192,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// answers reports whether pkt is a TCP segment travelling back along s.
func (s tcpSegment) answers(pkt gopacket.Packet) (*layers.TCP, bool) {
	ipLayer := pkt.Layer(layers.LayerTypeIPv4)
	tcpLayer := pkt.Layer(layers.LayerTypeTCP)
	if ipLayer == nil || tcpLayer == nil {
		return nil, false
	}
	ip := ipLayer.(*layers.IPv4)
	tcp := tcpLayer.(*layers.TCP)
	if !ip.SrcIP.Equal(s.DstIP) || !ip.DstIP.Equal(s.SrcIP) {
		return nil, false
	}
	if tcp.SrcPort != s.DstPort || tcp.DstPort != s.SrcPort {
		return nil, false
	}
	return tcp, true
}
