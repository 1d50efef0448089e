package models

import (
	"fmt"
	"net"
)

// HostAddress pairs an IPv4 address with its hardware address.
// A nil MAC means the address has not been resolved yet.
type HostAddress struct {
	IP  net.IP
	MAC net.HardwareAddr
}

// Resolved reports whether the hardware address is known.
func (h HostAddress) Resolved() bool {
	return len(h.MAC) == 6
}

func (h HostAddress) String() string {
	if !h.Resolved() {
		return fmt.Sprintf("%s (unresolved)", h.IP)
	}
	return fmt.Sprintf("%s (%s)", h.IP, h.MAC)
}

// Session is the pair of hosts sitting on either side of the attacker.
type Session struct {
	Victim  HostAddress
	Gateway HostAddress
}

// Ready reports whether both ends are resolved and poisoning may begin.
func (s Session) Ready() bool {
	return s.Victim.Resolved() && s.Gateway.Resolved()
}
