package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TilBlechschmidt/restic-dl/internal/api"
	"github.com/TilBlechschmidt/restic-dl/internal/backend/resticcli"
	"github.com/TilBlechschmidt/restic-dl/internal/config"
	"github.com/TilBlechschmidt/restic-dl/internal/engine"
	"github.com/TilBlechschmidt/restic-dl/internal/passwd"
	"github.com/TilBlechschmidt/restic-dl/internal/session"
	"github.com/TilBlechschmidt/restic-dl/internal/store"
	"github.com/TilBlechschmidt/restic-dl/internal/sweep"
)

var (
	version = "dev"
	commit  = "none"
)

type serverFlags struct {
	address             string
	siteURL             string
	password            string
	sessionLifetimeMins int
	restoreLifetimeDays int
	restoreLocation     string
	keepFullPaths       bool
	repositories        string
	metricsEnabled      bool
	logLevel            string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "restic-dl",
		Short: "restic-dl — read-only HTTP gateway for restic repositories",
	}

	root.AddCommand(newServerCmd())
	root.AddCommand(newHashCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("restic-dl %s (commit: %s)\n", version, commit)
		},
	}
}

func newServerCmd() *cobra.Command {
	flags := &serverFlags{}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.address, "address", config.EnvOrDefault("ADDRESS", "127.0.0.1:9242"), "listen address (ignored when a socket-activated listener is available)")
	f.StringVar(&flags.siteURL, "site-url", config.EnvOrDefault("SITE_URL", ""), "absolute external URL of this instance, used for share links (required)")
	f.StringVar(&flags.password, "password", config.EnvOrDefault("PASSWORD", ""), "site password verifier, as produced by the hash subcommand (required)")
	f.IntVar(&flags.sessionLifetimeMins, "session-lifetime-mins", envOrDefaultInt("SESSION_LIFETIME_MINS", 15), "session cookie lifetime in minutes")
	f.IntVar(&flags.restoreLifetimeDays, "restore-lifetime-days", envOrDefaultInt("RESTORE_LIFETIME_DAYS", 7), "how long restored artifacts are kept before the sweeper removes them")
	f.StringVar(&flags.restoreLocation, "restore-location", config.EnvOrDefault("RESTORE_LOCATION", "./data"), "directory holding in-flight and completed restore artifacts")
	f.BoolVar(&flags.keepFullPaths, "keep-full-paths", config.EnvOrDefault("KEEP_FULL_PATHS", "false") == "true", "preserve the full source path inside restored archives instead of rooting them at the restored directory")
	f.StringVar(&flags.repositories, "repositories", config.EnvOrDefault("REPOSITORIES", ""), "`name::path::verifier` specifiers, separated by '|'")
	f.BoolVar(&flags.metricsEnabled, "metrics", config.EnvOrDefault("METRICS", "false") == "true", "expose a Prometheus /metrics endpoint")
	f.StringVar(&flags.logLevel, "log-level", config.EnvOrDefault("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	return cmd
}

func newHashCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Derive a password verifier for --password or a repository specifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := resolvePassword(args, fromStdin)
			if err != nil {
				return err
			}
			verifier, err := passwd.Hash(password)
			if err != nil {
				return fmt.Errorf("failed to derive verifier: %w", err)
			}
			fmt.Println(verifier)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the password from standard input instead of an argument")
	return cmd
}

func resolvePassword(args []string, fromStdin bool) (string, error) {
	if fromStdin {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return "", fmt.Errorf("hash: no password read from stdin")
		}
		return scanner.Text(), nil
	}
	if len(args) == 0 {
		if v := config.EnvOrDefault("PASSWORD", ""); v != "" {
			return v, nil
		}
	}
	if len(args) != 1 {
		return "", fmt.Errorf("hash: expected exactly one positional password argument, PASSWORD in the environment, or --stdin")
	}
	return args[0], nil
}

func envOrDefaultInt(key string, defaultVal int) int {
	v := config.EnvOrDefault(key, "")
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func runServer(ctx context.Context, flags *serverFlags) error {
	logger, err := buildLogger(flags.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	siteURL, err := url.Parse(flags.siteURL)
	if err != nil {
		return fmt.Errorf("failed to parse --site-url: %w", err)
	}

	repositories, err := config.ParseRepositories(flags.repositories)
	if err != nil {
		return err
	}

	cfg := &config.Config{
		Address:          flags.address,
		SiteURL:          siteURL,
		PasswordVerifier: flags.password,
		SessionLifetime:  time.Duration(flags.sessionLifetimeMins) * time.Minute,
		RestoreLifetime:  time.Duration(flags.restoreLifetimeDays) * 24 * time.Hour,
		RestoreLocation:  flags.restoreLocation,
		KeepFullPaths:    flags.keepFullPaths,
		Repositories:     repositories,
		MetricsEnabled:   flags.metricsEnabled,
		LogLevel:         flags.logLevel,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.PasswordVerifier == "" {
		return fmt.Errorf("--password is required")
	}

	logger.Info("starting restic-dl",
		zap.String("version", version),
		zap.String("address", cfg.Address),
		zap.String("site_url", cfg.SiteURL.String()),
		zap.Int("repositories", len(cfg.Repositories)),
		zap.Bool("keep_full_paths", cfg.KeepFullPaths),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.New(cfg.RestoreLocation)
	if err != nil {
		return fmt.Errorf("failed to open restore store at %q: %w", cfg.RestoreLocation, err)
	}

	resticBackend := resticcli.New()

	siteCache := session.NewSiteCache(cfg.PasswordVerifier, cfg.SessionLifetime)
	repoCache := session.NewRepositoryCache(resticBackend, cfg.Repositories, cfg.SessionLifetime)

	manager := engine.New(st, cfg.KeepFullPaths, logger)

	sweeper, err := sweep.New(st, manager.PurgeLock(), cfg.RestoreLifetime, 30*time.Second, logger)
	if err != nil {
		return fmt.Errorf("failed to create sweeper: %w", err)
	}
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}
	defer func() {
		if err := sweeper.Stop(); err != nil {
			logger.Warn("sweeper shutdown error", zap.Error(err))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		SiteCache:       siteCache,
		Repositories:    repoCache,
		Manager:         manager,
		SiteURL:         cfg.SiteURL,
		SessionLifetime: cfg.SessionLifetime,
		Secure:          cfg.Secure(),
		Logger:          logger,
		MetricsEnabled:  cfg.MetricsEnabled,
	})

	httpSrv := &http.Server{
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // restores can legitimately stream for a long time
		IdleTimeout:  60 * time.Second,
	}

	listener, err := listenerFor(cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to acquire listener: %w", err)
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", listener.Addr().String()))
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down restic-dl")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("restic-dl stopped")
	return nil
}

// listenerFor prefers a systemd-activated socket (LISTEN_FDS set by the
// service manager) so the gateway can be bound to a privileged port or
// managed alongside other sockets without running as root; it falls back to
// a plain TCP listener on addr when no activated socket is present.
func listenerFor(addr string) (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, err
	}
	if len(listeners) > 0 && listeners[0] != nil {
		return listeners[0], nil
	}
	return net.Listen("tcp", addr)
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
