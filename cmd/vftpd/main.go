// Command vftpd serves the local file system over FTP.
//
// Usage:
//
//	vftpd [flags] [port] [-v] [dir]
//
// port defaults to 2121 and dir, the directory sessions start in, to the
// working directory. Without -root the whole host is served; on Windows
// every drive letter appears below "/".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gonzalop/vftpd/internal/config"
	"github.com/gonzalop/vftpd/server"
	"github.com/gonzalop/vftpd/vfs"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	listen := flag.String("listen", "", "TCP address to listen on (e.g. :2121)")
	root := flag.String("root", "", "Serve only this directory")
	verbose := flag.Bool("v", false, "Log every command and response")
	hashPassword := flag.String("hash-password", "", "Print the bcrypt hash of a password and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [port] [-v] [dir]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *hashPassword != "" {
		hash, err := server.HashPassword(*hashPassword)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config from %s: %v", *configPath, err)
		}
	}

	// Override config with command-line flags if provided
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *root != "" {
		cfg.Root = *root
	}
	if *verbose {
		cfg.Logging.Verbose = true
	}
	if err := applyArgs(cfg, flag.Args()); err != nil {
		flag.Usage()
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("vftpd stopped", "error", err)
		os.Exit(1)
	}
}

// applyArgs applies the positional arguments [port] [-v] [dir]. flag stops
// at the first positional argument, so a -v following the port is picked
// up here.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		if port, err := strconv.Atoi(args[0]); err == nil {
			if port <= 0 || port > 65535 {
				return fmt.Errorf("invalid port %d", port)
			}
			cfg.Listen = net.JoinHostPort("", strconv.Itoa(port))
			args = args[1:]
		}
	}
	if i := slices.Index(args, "-v"); i >= 0 {
		cfg.Logging.Verbose = true
		args = slices.Delete(args, i, i+1)
	}
	switch len(args) {
	case 0:
	case 1:
		cfg.StartDir = args[0]
	default:
		return fmt.Errorf("unexpected arguments: %v", args[1:])
	}
	return nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.LogLevel()
	// Protocol traffic is logged at debug level.
	if cfg.Logging.Verbose {
		level = min(level, slog.LevelDebug)
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Logging.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func newResolver(cfg *config.Config) (*vfs.Resolver, error) {
	var opts []vfs.Option
	switch {
	case cfg.Root != "":
		opts = append(opts, vfs.WithBase(cfg.Root))
	case cfg.Volumes == "off":
		// Serve the volume holding the working directory.
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		opts = append(opts, vfs.WithBase(filepath.VolumeName(wd)+string(filepath.Separator)))
	}

	startDir := cfg.StartDir
	if startDir == "" && cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		startDir = wd
	}
	if startDir != "" {
		opts = append(opts, vfs.WithStartDir(startDir))
	}
	return vfs.New(opts...)
}

func newAuthenticator(cfg *config.Config) (server.Authenticator, error) {
	if len(cfg.Auth.Users) > 0 {
		return server.NewPasswordAuth(cfg.Auth.Users, cfg.Auth.Anonymous)
	}
	if !cfg.Auth.Anonymous {
		return nil, errors.New("anonymous login is disabled and no users are configured")
	}
	return server.AnonymousAuth{}, nil
}

// newServer builds the server described by cfg. The returned file is the
// open transfer log, if one is configured.
func newServer(cfg *config.Config, logger *slog.Logger) (*server.Server, *os.File, error) {
	r, err := newResolver(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("file system: %w", err)
	}
	auth, err := newAuthenticator(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("authentication: %w", err)
	}

	opts := []server.Option{
		server.WithFileSystem(server.NewFileSystem(r)),
		server.WithAuthenticator(auth),
		server.WithLogger(logger),
		server.WithEventLogger(server.NewSlogEventLogger(logger, cfg.Logging.Verbose)),
		server.WithMaxConnections(cfg.Limits.MaxConnections),
		server.WithMaxIdleTime(cfg.Limits.IdleTimeout),
		server.WithDataTimeout(cfg.Limits.DataTimeout),
		server.WithBandwidthLimit(cfg.Limits.Bandwidth),
		server.WithGlobalBandwidthLimit(cfg.Limits.GlobalBandwidth),
		server.WithPublicHost(cfg.Passive.PublicHost),
	}
	if cfg.Passive.MinPort > 0 {
		opts = append(opts, server.WithPassivePortRange(cfg.Passive.MinPort, cfg.Passive.MaxPort))
	}
	if eol := cfg.LineEnding(); eol != "" {
		opts = append(opts, server.WithLineEnding(eol))
	}

	var xferlog *os.File
	if cfg.Logging.TransferLog != "" {
		xferlog, err = os.OpenFile(cfg.Logging.TransferLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("transfer log: %w", err)
		}
		opts = append(opts, server.WithTransferLog(xferlog))
	}

	srv, err := server.NewServer(cfg.Listen, opts...)
	if err != nil {
		if xferlog != nil {
			xferlog.Close()
		}
		return nil, nil, err
	}
	return srv, xferlog, nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	srv, xferlog, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	if xferlog != nil {
		defer xferlog.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, server.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return srv.Shutdown()
	})
	return g.Wait()
}
