// Package discovery supplies the addresses a session starts from: the local
// interface, the default gateway and the victim.
package discovery

import (
	"fmt"
	"net"

	"github.com/jackpal/gateway"
)

// GatewayProvider supplies the IPv4 address of the default gateway.
type GatewayProvider interface {
	Gateway() (net.IP, error)
}

// StaticGateway is a gateway address given by the operator.
type StaticGateway net.IP

func (g StaticGateway) Gateway() (net.IP, error) {
	ip := net.IP(g).To4()
	if ip == nil {
		return nil, fmt.Errorf("invalid gateway address: %s", net.IP(g))
	}
	return ip, nil
}

// RouteGateway reads the default gateway from the host routing table.
type RouteGateway struct{}

func (RouteGateway) Gateway() (net.IP, error) {
	ip, err := gateway.DiscoverGateway()
	if err != nil {
		return nil, fmt.Errorf("could not discover default gateway: %w", err)
	}
	if ip4 := ip.To4(); ip4 != nil {
		return ip4, nil
	}
	return nil, fmt.Errorf("default gateway %s is not IPv4", ip)
}

// DefaultInterface returns the interface that owns the default route.
func DefaultInterface() (*net.Interface, error) {
	ip, err := gateway.DiscoverInterface()
	if err != nil {
		return nil, fmt.Errorf("could not discover default interface: %w", err)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	return interfaceWithIP(ifaces, ip, func(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() })
}

func interfaceWithIP(ifaces []net.Interface, ip net.IP, addrsOf func(net.Interface) ([]net.Addr, error)) (*net.Interface, error) {
	for i := range ifaces {
		addrs, err := addrsOf(ifaces[i])
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.Equal(ip) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no interface has address %s", ip)
}
