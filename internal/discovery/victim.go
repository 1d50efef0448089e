package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// VictimProvider supplies the IPv4 address of the host to poison.
type VictimProvider interface {
	Victim(ctx context.Context) (net.IP, error)
}

// StaticVictim is a victim address given on the command line.
type StaticVictim net.IP

func (v StaticVictim) Victim(context.Context) (net.IP, error) {
	return parseIPv4(net.IP(v).String())
}

// Prompt asks the operator for the victim address. When In is a
// *bufio.Reader it is read directly, so later readers sharing it see the
// lines that follow the address.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

func (p Prompt) Victim(ctx context.Context) (net.IP, error) {
	fmt.Fprint(p.Out, "please enter victim IP: ")

	type result struct {
		line string
		err  error
	}
	lines := make(chan result, 1)
	in, ok := p.In.(*bufio.Reader)
	if !ok {
		in = bufio.NewReader(p.In)
	}
	go func() {
		line, err := in.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		lines <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-lines:
		if r.err != nil {
			return nil, fmt.Errorf("read victim address: %w", r.err)
		}
		return parseIPv4(r.line)
	}
}

func parseIPv4(s string) (net.IP, error) {
	s = strings.TrimSpace(s)
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("invalid IPv4 address: %q", s)
	}
	return ip, nil
}
