package main

import (
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

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/agentdesk/internal/app"
	"github.com/charlesng35/agentdesk/pkg/logger"
)

const (
	defaultShutdownTimeout = 15 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// options are the command line flags accepted by the server binary.
type options struct {
	configPath  string
	logLevel    string
	migrateOnly bool
	checkConfig bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	err := run(ctx, os.Args[1:])
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return
	default:
		fmt.Fprintf(os.Stderr, "agentdesk: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("agentdesk-server", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&opts.logLevel, "log-level", "", "override server.log_level")
	fs.BoolVar(&opts.migrateOnly, "migrate", false, "apply database migrations and exit")
	fs.BoolVar(&opts.checkConfig, "check-config", false, "validate the configuration and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args, os.Stdout)
	if err != nil {
		return err
	}

	cfg, err := app.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Server.LogLevel = opts.logLevel
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.WithModule("bootstrap")
	if len(generated) > 0 {
		log.Warn("generated ephemeral secrets; issued tokens will not survive a restart", zap.Strings("keys", generated))
	}

	switch {
	case opts.checkConfig:
		log.Info("configuration valid",
			zap.String("database_driver", cfg.Database.Driver),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("maintenance", cfg.Maintenance.Enabled),
		)
		return nil
	case opts.migrateOnly:
		db, err := initialiseDatabase(cfg)
		if err != nil {
			return err
		}
		log.Info("migrations applied")
		return closeDatabase(db)
	}

	stack, err := bootstrapRuntime(cfg, log)
	if err != nil {
		return err
	}
	return serve(ctx, cfg.Server, stack, log)
}

// serve runs the HTTP server until ctx is cancelled or the listener fails,
// then drains in-flight requests and tears the runtime down.
func serve(ctx context.Context, cfg app.ServerConfig, stack *runtimeStack, log *zap.Logger) (err error) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listenErr := make(chan error, 1)
	go func() {
		defer close(listenErr)
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case lerr := <-listenErr:
		if lerr != nil {
			err = fmt.Errorf("listen: %w", lerr)
		}
		return multierr.Append(err, stack.Shutdown(context.Background(), log))
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if serr := server.Shutdown(shutdownCtx); serr != nil {
		err = multierr.Append(err, fmt.Errorf("graceful shutdown: %w", serr))
	}
	if lerr, ok := <-listenErr; ok && lerr != nil {
		err = multierr.Append(err, fmt.Errorf("listen: %w", lerr))
	}
	err = multierr.Append(err, stack.Shutdown(shutdownCtx, log))

	if err == nil {
		log.Info("server stopped")
	}
	return err
}
