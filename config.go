package main

import (
	"errors"
	"fmt"
	"net"
	"time"

	"arpmitm/internal/spoofer"

	"github.com/spf13/pflag"
)

// Config is everything the command line controls.
type Config struct {
	Interface      string
	Target         net.IP
	Gateway        net.IP
	Relay          bool
	Interval       time.Duration
	ResolveTimeout time.Duration
	ResolveRetries int
	RestoreCopies  int
	Forward        bool
	TUI            bool
	Verbose        bool
}

func (c *Config) bindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Interface, "interface", "i", "", "network interface (default: the one owning the default route)")
	fs.IPVarP(&c.Target, "target", "t", nil, "victim IPv4 address (prompted when empty)")
	fs.IPVarP(&c.Gateway, "gateway", "g", nil, "gateway IPv4 address (default: discovered from the routing table)")
	fs.BoolVar(&c.Relay, "relay", false, "run the manual TCP relay probe after every poison round")
	fs.DurationVar(&c.Interval, "interval", 0, "pause between poison rounds (default 3s, 1s with --relay)")
	fs.DurationVar(&c.ResolveTimeout, "resolve-timeout", spoofer.DefaultResolveTimeout, "wait for each ARP reply")
	fs.IntVar(&c.ResolveRetries, "resolve-retries", spoofer.DefaultResolveRetries, "extra ARP requests before giving up")
	fs.IntVar(&c.RestoreCopies, "restore-copies", spoofer.DefaultRestoreCopies, "copies of each corrective ARP reply")
	fs.BoolVar(&c.Forward, "forward", false, "enable kernel IP forwarding for the session")
	fs.BoolVar(&c.TUI, "tui", false, "show a live dashboard instead of log lines")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "log every frame sent")
}

func (c *Config) Validate() error {
	var errs []error
	if c.TUI && c.Relay {
		errs = append(errs, errors.New("--tui and --relay both need the terminal"))
	}
	if c.Target != nil && c.Target.To4() == nil {
		errs = append(errs, fmt.Errorf("--target %s is not IPv4", c.Target))
	}
	if c.Gateway != nil && c.Gateway.To4() == nil {
		errs = append(errs, fmt.Errorf("--gateway %s is not IPv4", c.Gateway))
	}
	if c.Interval < 0 {
		errs = append(errs, errors.New("--interval must be positive"))
	}
	if c.ResolveTimeout <= 0 {
		errs = append(errs, errors.New("--resolve-timeout must be positive"))
	}
	if c.ResolveRetries < 0 {
		errs = append(errs, errors.New("--resolve-retries must not be negative"))
	}
	if c.RestoreCopies < 1 {
		errs = append(errs, errors.New("--restore-copies must be at least 1"))
	}
	return errors.Join(errs...)
}

// EngineConfig maps the flags onto the engine settings.
func (c *Config) EngineConfig() spoofer.Config {
	retries := c.ResolveRetries
	return spoofer.Config{
		Interval:       c.Interval,
		ResolveTimeout: c.ResolveTimeout,
		ResolveRetries: &retries,
		RestoreCopies:  c.RestoreCopies,
		RestoreGap:     100 * time.Millisecond,
		Relay:          c.Relay,
	}
}
