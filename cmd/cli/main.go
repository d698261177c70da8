// Command sg is a terminal client for the slot reservation service.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/slotguard/internal/api"
	"github.com/and161185/slotguard/internal/api/httpapi"
	"github.com/and161185/slotguard/internal/config"
	"github.com/and161185/slotguard/internal/errs"
	"github.com/and161185/slotguard/internal/logging"
	"github.com/and161185/slotguard/internal/session"
)

func usage() {
	fmt.Fprintf(os.Stderr, `sg CLI
Usage:
  sg [-env file] [-api URL] [-store file|bolt|postgres|memory] [-store-path p] [-store-dsn dsn] <cmd> [args]

Commands:
  version
  register   -name <name> -email <email> [-p <password>]   (asks for questions)
  register   -resume                                        (continue after restart)
  login      -u <username> [-p <password>]                  (saves token)
  calendar   [-watch]                                       (watch the countdown)
  reserve    -day <id>
  whoami
  logout
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// app bundles what every command needs.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	client api.Client
	sess   *session.Manager
	in     *bufio.Reader
	out    io.Writer
}

type overrides struct {
	api, store, storePath, storeDSN string
	timeout                         time.Duration
	debug                           bool
}

// apply copies only the flags that were set on the command line.
func (o overrides) apply(fs *flag.FlagSet, c *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api":
			c.APIBase = o.api
		case "store":
			c.Store = o.store
		case "store-path":
			c.StorePath = o.storePath
		case "store-dsn":
			c.StoreDSN = o.storeDSN
		case "timeout":
			c.RequestTimeout = o.timeout
		case "debug":
			if o.debug {
				c.LogLevel, c.LogDev = "debug", true
			}
		}
	})
}

// main dispatches subcommands after loading config and opening the session store.
func main() {
	// global flags
	var o overrides
	envFile := flag.String("env", ".env", "dotenv file")
	flag.StringVar(&o.api, "api", "", "API base URL")
	flag.StringVar(&o.store, "store", "", "session store backend")
	flag.StringVar(&o.storePath, "store-path", "", "session store path")
	flag.StringVar(&o.storeDSN, "store-dsn", "", "PostgreSQL DSN for the session store")
	flag.DurationVar(&o.timeout, "timeout", 0, "per-request timeout")
	flag.BoolVar(&o.debug, "debug", false, "verbose console logs")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	if cmd == "version" {
		fmt.Printf("sg %s (%s)\n", version, buildDate)
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fail(err)
	}
	o.apply(flag.CommandLine, &cfg)
	if err := cfg.Validate(); err != nil {
		fail(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fail(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		fail(err)
	}
	defer closeStore()

	a := &app{
		cfg:    cfg,
		log:    logger,
		client: httpapi.New(cfg.APIBase, cfg.RequestTimeout, httpapi.WithLogger(logger.Named("http"))),
		sess:   session.NewManager(store, cfg.SessionTTL),
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
	if err := a.run(ctx, cmd, flag.Args()[1:]); err != nil {
		closeStore()
		fail(err)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.cmdRegister(ctx, args)
	case "login":
		return a.cmdLogin(ctx, args)
	case "calendar":
		return a.cmdCalendar(ctx, args)
	case "reserve":
		return a.cmdReserve(ctx, args)
	case "whoami":
		return a.cmdWhoami(ctx)
	case "logout":
		return a.cmdLogout(ctx)
	}
	usage()
	return nil
}

// ---- helpers ----

func fail(err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		fmt.Fprintln(os.Stderr, "not signed in: run `sg login`")
	case errors.Is(err, errs.ErrRemoteRejection), errors.Is(err, errs.ErrTransport):
		fmt.Fprintf(os.Stderr, "error: %s\n", errs.Message(err))
	default:
		fmt.Fprintln(os.Stderr, errs.Message(err))
	}
	os.Exit(1)
}
