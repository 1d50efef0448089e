package spoofer

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const ipForwardPath = "/proc/sys/net/ipv4/ip_forward"

// Forwarding turns on kernel IPv4 forwarding for the length of a session so
// intercepted traffic still reaches its destination. Linux only, via sysctl.
type Forwarding struct {
	log      *logrus.Entry
	previous string
	enabled  bool

	goos     string
	readFile func(name string) ([]byte, error)
	sysctl   func(value string) error
}

func NewForwarding(log *logrus.Entry) *Forwarding {
	return &Forwarding{
		log:      log.WithField("component", "forwarding"),
		goos:     runtime.GOOS,
		readFile: os.ReadFile,
		sysctl:   sysctl,
	}
}

// Enable records the current setting and switches forwarding on.
func (f *Forwarding) Enable() error {
	if f.goos != "linux" {
		return fmt.Errorf("ip forwarding not implemented for %s", f.goos)
	}

	current, err := f.readFile(ipForwardPath)
	if err != nil {
		return fmt.Errorf("failed to read ip forwarding state: %w", err)
	}
	f.previous = strings.TrimSpace(string(current))

	if f.previous == "1" {
		f.log.Info("IP forwarding already enabled")
		return nil
	}
	if err := f.sysctl("1"); err != nil {
		return fmt.Errorf("failed to enable ip forwarding: %w", err)
	}
	f.enabled = true
	f.log.Info("IP forwarding enabled")
	return nil
}

// Restore puts back the setting seen by Enable. It is a no-op if Enable did
// not change anything.
func (f *Forwarding) Restore() error {
	if !f.enabled {
		return nil
	}
	if err := f.sysctl(f.previous); err != nil {
		return fmt.Errorf("failed to restore ip forwarding: %w", err)
	}
	f.enabled = false
	f.log.WithField("value", f.previous).Info("IP forwarding restored")
	return nil
}

func sysctl(value string) error {
	cmd := exec.Command("sysctl", "-w", "net.ipv4.ip_forward="+value)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w (%s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}
