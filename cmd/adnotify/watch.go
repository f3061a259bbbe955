package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/cli"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/KilimcininKorOglu/adnotify/internal/config"
	"github.com/KilimcininKorOglu/adnotify/internal/logging"
	"github.com/KilimcininKorOglu/adnotify/internal/metrics"
	"github.com/KilimcininKorOglu/adnotify/internal/notify"
)

const (
	msgBind        = "Successful bind"
	msgNoObject    = "The provided dnsNode does not exist"
	msgNoReadInit  = "Could not perform initial search, read ACE could be missing. Will monitor for changes anyway, but we can't find the IP with LDAP"
	msgHasA        = "The dnsNode already has an A record: "
	msgRegistered  = "Registered a notification request"
	msgWaiting     = "Waiting for changes..."
	msgModified    = "The dnsNode was modified!"
	msgIP          = "IP Address: "
	msgNoA         = "No A entry in dnsRecord yet"
	msgNoReadEvent = "Can't query dnsNode, read ACE may be missing"
)

type watchCommand struct {
	UI    cli.Ui
	flags *flag.FlagSet
	dir   directoryFlags
	help  string

	metricsAddr string
	zone        bool
	noStdin     bool

	stdin io.Reader
	// shutdownCh stops the command when it receives, like a signal.
	shutdownCh <-chan struct{}
}

func newWatchCommand(ui cli.Ui, stdin io.Reader, shutdownCh <-chan struct{}) *watchCommand {
	c := &watchCommand{UI: ui, stdin: stdin, shutdownCh: shutdownCh}
	c.flags = c.dir.flagSet("watch")
	c.flags.StringVar(&c.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this `address`, such as :9102.")
	c.flags.BoolVar(&c.zone, "zone", false,
		"Print A records as zone file lines.")
	c.flags.BoolVar(&c.noStdin, "no-stdin", false,
		"Do not stop when standard input reaches a newline or EOF.")
	c.help = usage(watchHelp, c.flags)
	return c
}

func (c *watchCommand) Run(args []string) int {
	c.flags.SetOutput(io.Discard)
	if err := c.flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	target, err := singleTarget(c.flags.Args())
	if err != nil {
		c.UI.Error(err.Error())
		c.UI.Error(c.Help())
		return 1
	}

	cfg, err := c.dir.load(c.flags, target)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error loading configuration: %s", err))
		return 1
	}
	if c.metricsAddr != "" {
		cfg.Metrics.Address = c.metricsAddr
	}
	if c.zone {
		cfg.Watch.ZoneFormat = true
	}
	scope, err := notify.ParseScope(cfg.Watch.Scope)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	logger := newLogger(cfg)
	out := newPrinter(c.UI)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := connect(ctx, c.UI, cfg, logger)
	if err != nil {
		out.warn(fmt.Sprintf("Bind failed: %s", err))
		return 1
	}
	defer conn.Close()
	out.info(msgBind)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	records := &recordPrinter{p: out, zone: cfg.Watch.ZoneFormat, metrics: m}

	lctx, cancel := requestContext(ctx, cfg)
	entry, err := notify.Lookup(lctx, conn, cfg.Watch.Target, cfg.Watch.Attributes)
	cancel()
	switch {
	case errors.Is(err, notify.ErrNoSuchObject):
		out.warn(msgNoObject)
		return 1
	case errors.Is(err, notify.ErrNoReadableAttributes):
		out.warn(msgNoReadInit)
	case err != nil:
		out.warn(fmt.Sprintf("Initial search failed: %s", err))
		return 1
	default:
		records.printRecords(entry, msgHasA)
	}

	n := notify.NewNotifier(conn,
		notify.WithLogger(logger.Named("notify")),
		notify.WithMetrics(m),
		notify.WithBufferSize(cfg.Watch.BufferSize),
	)
	defer n.Close()

	sub, err := n.Subscribe(notify.MatchAll())
	if err != nil {
		out.warn(err.Error())
		return 1
	}
	if _, err := n.Register(ctx, cfg.Watch.Target, cfg.Watch.Attributes, scope); err != nil {
		out.warn(fmt.Sprintf("Could not register a notification request: %s", err))
		return 1
	}
	out.info(msgRegistered)
	out.info(msgWaiting)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)
	if cfg.Metrics.Address != "" {
		serveMetrics(gctx, g, cfg.Metrics, reg, logger)
	}
	if c.dir.configFile != "" {
		resolve := c.dir.resolver(c.flags, target)
		if err := watchConfig(gctx, g, c.dir.configFile, resolve, logger); err != nil {
			logger.Warn("config file will not be reloaded", "error", err)
		}
	}

	code := c.loop(gctx, sub, records, out, conn.Done())
	cancelRun()
	n.Close()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		out.warn(err.Error())
		code = 1
	}
	return code
}

// loop prints events until the command is asked to stop or the watch can
// no longer deliver.
func (c *watchCommand) loop(ctx context.Context, sub *notify.Subscription, records *recordPrinter, out *printer, connDone <-chan struct{}) int {
	var stdinDone <-chan struct{}
	if c.stdin != nil && !c.noStdin {
		stdinDone = waitForLine(c.stdin)
	}

	for {
		select {
		case <-ctx.Done():
			return 0
		case <-c.shutdownCh:
			return 0
		case <-stdinDone:
			return 0
		case <-connDone:
			out.warn("Connection to the domain controller was lost")
			return 1
		case ev, ok := <-sub.Events():
			if !ok {
				return 0
			}
			if errors.Is(ev.Err, notify.ErrWatchEnded) {
				out.warn(fmt.Sprintf("The notification request ended: %s", ev.Err))
				return 1
			}
			printEvent(ev, records, out)
		}
	}
}

func printEvent(ev notify.ChangeEvent, records *recordPrinter, out *printer) {
	out.info(msgModified)
	if ev.DN != "" && !strings.EqualFold(ev.DN, ev.Target) {
		out.info("Entry: " + ev.DN)
	}
	if ev.Err != nil || ev.NoAttributes() {
		out.warn(msgNoReadEvent)
		return
	}
	if !records.printRecords(ev.Entry, msgIP) {
		out.info(msgNoA)
	}
}

// waitForLine returns a channel closed once r yields a line or ends.
func waitForLine(r io.Reader) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = bufio.NewReader(r).ReadString('\n')
	}()
	return done
}

func serveMetrics(ctx context.Context, g *errgroup.Group, cfg config.MetricsConfig, reg *prometheus.Registry, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler(reg))
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serving metrics", "address", cfg.Address, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

// watchConfig applies log level changes from the config file while the
// command runs. resolve completes each reloaded file with the command line.
func watchConfig(ctx context.Context, g *errgroup.Group, path string, resolve func(*config.Config) error, logger logging.Logger) error {
	w, err := config.NewConfigWatcher(&config.WatcherConfig{
		FilePath: path,
		Logger:   logger.Named("config"),
		Resolve:  resolve,
		OnChange: reloadHandler(logger),
	})
	if err != nil {
		return err
	}

	g.Go(func() error {
		w.Start(ctx)
		<-ctx.Done()
		return w.Stop()
	})
	return nil
}

func reloadHandler(logger logging.Logger) func(oldCfg, newCfg *config.Config) {
	return func(oldCfg, newCfg *config.Config) {
		if oldCfg.Logging.Level != newCfg.Logging.Level {
			logger.SetLevel(logging.ParseLevel(newCfg.Logging.Level))
			logger.Info("log level changed", "level", newCfg.Logging.Level)
		}
		if oldCfg.Watch.Target != newCfg.Watch.Target {
			logger.Warn("watch target changes take effect on restart", "target", newCfg.Watch.Target)
		}
	}
}

func (c *watchCommand) Synopsis() string {
	return "Watch a dnsNode for changes"
}

func (c *watchCommand) Help() string {
	return c.help
}

const watchHelp = `
Usage: adnotify watch [options] DN

  Binds to a domain controller, prints the A records the dnsNode already
  has, then registers a change notification request and prints the A
  records every time the node is modified. Runs until interrupted or until
  a line is read from standard input.

  Example:

    adnotify watch -addr 10.0.0.5 -bind-dn amico@test.local \
      DC=srv5,DC=test.local,CN=MicrosoftDNS,DC=DomainDnsZones,DC=test,DC=local
`
