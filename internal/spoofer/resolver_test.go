package spoofer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"arpmitm/internal/link/linktest"

	"github.com/google/gopacket/layers"
)

func newTestResolver(l *linktest.Link) *Resolver {
	r := NewResolver(l, local, testLogger())
	r.Timeout = 20 * time.Millisecond
	r.Retries = 2
	return r
}

func TestResolve(t *testing.T) {
	l := linktest.New()
	l.AddHost(victimIP, victimMAC)

	mac, err := newTestResolver(l).Resolve(context.Background(), net.ParseIP(victimIP))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mac.String() != victimMAC {
		t.Errorf("Resolve = %s, want %s", mac, victimMAC)
	}

	sent := l.SentARP()
	if len(sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sent))
	}
	req := sent[0]
	if req.Operation != layers.ARPRequest {
		t.Errorf("operation = %d, want request", req.Operation)
	}
	if !net.IP(req.DstProtAddress).Equal(net.ParseIP(victimIP)) {
		t.Errorf("request target = %s, want %s", net.IP(req.DstProtAddress), victimIP)
	}
	eth := l.Sent()[0].Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if eth.DstMAC.String() != "ff:ff:ff:ff:ff:ff" {
		t.Errorf("ethernet destination = %s, want broadcast", eth.DstMAC)
	}
}

func TestResolveNotFound(t *testing.T) {
	l := linktest.New()
	r := newTestResolver(l)

	start := time.Now()
	_, err := r.Resolve(context.Background(), net.ParseIP(gatewayIP))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve err = %v, want ErrNotFound", err)
	}
	if elapsed, want := time.Since(start), 3*r.Timeout; elapsed < want {
		t.Errorf("gave up after %v, want at least %v", elapsed, want)
	}
	if got := len(l.SentARP()); got != r.Retries+1 {
		t.Errorf("sent %d requests, want %d", got, r.Retries+1)
	}
}

func TestResolveIgnoresOtherHosts(t *testing.T) {
	l := linktest.New()
	l.AddHost(victimIP, victimMAC)

	// A reply for a neighbour and one of our own forged replies arrive first.
	other := mustMAC("dd:dd:dd:dd:dd:01")
	l.Inject(linktest.ARPReply(other, net.ParseIP("192.168.1.99"), local.MAC, local.IP))
	l.Inject(linktest.ARPReply(local.MAC, net.ParseIP(victimIP), local.MAC, local.IP))

	mac, err := newTestResolver(l).Resolve(context.Background(), net.ParseIP(victimIP))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mac.String() != victimMAC {
		t.Errorf("Resolve = %s, want %s", mac, victimMAC)
	}
}

func TestResolveWriteError(t *testing.T) {
	l := linktest.New()
	boom := errors.New("interface down")
	l.FailWrites(0, boom)

	_, err := newTestResolver(l).Resolve(context.Background(), net.ParseIP(victimIP))
	if !errors.Is(err, boom) {
		t.Fatalf("Resolve err = %v, want %v", err, boom)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("transport failure reported as ErrNotFound")
	}
}

func TestResolveCancelled(t *testing.T) {
	l := linktest.New()
	r := newTestResolver(l)
	r.Timeout = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.Resolve(ctx, net.ParseIP(victimIP)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Resolve err = %v, want context.DeadlineExceeded", err)
	}
}

func TestResolveRejectsIPv6(t *testing.T) {
	if _, err := newTestResolver(linktest.New()).Resolve(context.Background(), net.ParseIP("fe80::1")); err == nil {
		t.Fatal("Resolve accepted an IPv6 address")
	}
}
