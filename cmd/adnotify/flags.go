package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mitchellh/cli"

	"github.com/KilimcininKorOglu/adnotify/internal/config"
	"github.com/KilimcininKorOglu/adnotify/internal/logging"
	"github.com/KilimcininKorOglu/adnotify/internal/session"
)

// directoryFlags are shared by the commands that talk to a domain
// controller. Values set on the command line override the config file.
type directoryFlags struct {
	configFile string
	address    string
	tls        bool
	insecure   bool
	bindDN     string
	password   string
	timeout    time.Duration
	attrs      stringSlice
	scope      string
	logLevel   string
	logJSON    bool
	noColor    bool
}

// stringSlice is a repeatable string flag.
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func (f *directoryFlags) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&f.configFile, "config", "",
		"Path to a YAML configuration file.")
	fs.StringVar(&f.address, "addr", "",
		"Domain controller `host[:port]`. The port defaults to 389, or 636 with -tls.")
	fs.BoolVar(&f.tls, "tls", false,
		"Connect with LDAPS.")
	fs.BoolVar(&f.insecure, "insecure", false,
		"Skip verification of the server certificate.")
	fs.StringVar(&f.bindDN, "bind-dn", "",
		"DN or user principal to bind as. Anonymous when empty.")
	fs.StringVar(&f.password, "password", "",
		"Bind password. Prompted for when -bind-dn is set and this is empty.")
	fs.DurationVar(&f.timeout, "timeout", 0,
		"Timeout for the bind and the initial search.")
	fs.Var(&f.attrs, "attr",
		"Attribute to read. May be repeated. Defaults to dnsRecord.")
	fs.StringVar(&f.scope, "scope", "",
		"Search scope: base, one or sub.")
	fs.StringVar(&f.logLevel, "log-level", "",
		"Log level: debug, info, warn or error.")
	fs.BoolVar(&f.logJSON, "log-json", false,
		"Write logs as JSON.")
	fs.BoolVar(&f.noColor, "no-color", false,
		"Disable colored output.")
	return fs
}

// load builds the effective configuration: defaults, then the config file,
// then the flags that were set, then target when not empty.
func (f *directoryFlags) load(fs *flag.FlagSet, target string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(f.configFile); err != nil {
			return nil, err
		}
	}
	f.apply(fs, target, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if f.noColor {
		color.NoColor = true
	}
	return cfg, nil
}

// resolver returns a func that completes a reloaded config file the way
// load completes it at startup.
func (f *directoryFlags) resolver(fs *flag.FlagSet, target string) func(*config.Config) error {
	return func(cfg *config.Config) error {
		f.apply(fs, target, cfg)
		return nil
	}
}

// apply copies the flags that were set and target onto cfg and adds the
// default port to a bare host.
func (f *directoryFlags) apply(fs *flag.FlagSet, target string, cfg *config.Config) {
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["addr"] {
		cfg.Directory.Address = f.address
	}
	if set["tls"] {
		cfg.Directory.TLS = f.tls
	}
	if set["insecure"] {
		cfg.Directory.InsecureSkipVerify = f.insecure
	}
	if set["bind-dn"] {
		cfg.Directory.BindDN = f.bindDN
	}
	if set["password"] {
		cfg.Directory.Password = f.password
	}
	if set["timeout"] {
		cfg.Directory.RequestTimeout = f.timeout
	}
	if len(f.attrs) > 0 {
		cfg.Watch.Attributes = f.attrs
	}
	if set["scope"] {
		cfg.Watch.Scope = f.scope
	}
	if set["log-level"] {
		cfg.Logging.Level = f.logLevel
	}
	if set["log-json"] && f.logJSON {
		cfg.Logging.Format = "json"
	}
	if target != "" {
		cfg.Watch.Target = target
	}

	if addr := cfg.Directory.Address; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			cfg.Directory.Address = net.JoinHostPort(addr, config.DefaultPort(cfg.Directory.TLS))
		}
	}
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Name:   "adnotify",
	})
}

// connect dials the domain controller and binds. The password is asked for
// when a bind DN is configured without one.
func connect(ctx context.Context, ui cli.Ui, cfg *config.Config, logger logging.Logger) (*session.Conn, error) {
	dir := cfg.Directory
	if dir.BindDN != "" && dir.Password == "" {
		pw, err := ui.AskSecret(fmt.Sprintf("Password for %s:", dir.BindDN))
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		dir.Password = pw
	}

	opts := session.Options{
		Address:     dir.Address,
		TLS:         dir.TLS,
		DialTimeout: dir.DialTimeout,
		Logger:      logger.Named("session"),
	}
	if dir.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: dir.InsecureSkipVerify,
		}
	}

	conn, err := session.Dial(ctx, opts)
	if err != nil {
		return nil, err
	}

	bctx, cancel := requestContext(ctx, cfg)
	defer cancel()
	if err := conn.Bind(bctx, dir.BindDN, dir.Password); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func requestContext(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Directory.RequestTimeout > 0 {
		return context.WithTimeout(ctx, cfg.Directory.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// singleTarget returns the one positional argument, if any.
func singleTarget(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return args[0], nil
	default:
		return "", errors.New("too many arguments: expected a single DN")
	}
}
