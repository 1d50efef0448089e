package spoofer

import (
	"io"
	"net"
	"testing"

	"arpmitm/internal/models"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

const (
	victimIP   = "192.168.1.50"
	victimMAC  = "aa:aa:aa:aa:aa:01"
	gatewayIP  = "192.168.1.1"
	gatewayMAC = "bb:bb:bb:bb:bb:01"
)

var local = models.HostAddress{
	IP:  net.IPv4(192, 168, 1, 10).To4(),
	MAC: mustMAC("cc:cc:cc:cc:cc:01"),
}

func mustMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return mac
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func host(ip, mac string) models.HostAddress {
	return models.HostAddress{IP: net.ParseIP(ip).To4(), MAC: mustMAC(mac)}
}

func replies(frames []*layers.ARP) []*layers.ARP {
	var out []*layers.ARP
	for _, arp := range frames {
		if arp.Operation == layers.ARPReply {
			out = append(out, arp)
		}
	}
	return out
}

func assertARP(t *testing.T, arp *layers.ARP, senderIP string, senderMAC net.HardwareAddr, targetIP string, targetMAC net.HardwareAddr) {
	t.Helper()
	if arp.Operation != layers.ARPReply {
		t.Errorf("operation = %d, want reply", arp.Operation)
	}
	if got := net.IP(arp.SourceProtAddress); !got.Equal(net.ParseIP(senderIP)) {
		t.Errorf("sender IP = %s, want %s", got, senderIP)
	}
	if got := net.HardwareAddr(arp.SourceHwAddress); got.String() != senderMAC.String() {
		t.Errorf("sender MAC = %s, want %s", got, senderMAC)
	}
	if got := net.IP(arp.DstProtAddress); !got.Equal(net.ParseIP(targetIP)) {
		t.Errorf("target IP = %s, want %s", got, targetIP)
	}
	if got := net.HardwareAddr(arp.DstHwAddress); got.String() != targetMAC.String() {
		t.Errorf("target MAC = %s, want %s", got, targetMAC)
	}
}
