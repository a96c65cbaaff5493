// Command repackage republishes a Rust .crate archive under a new package name.
//
// The package name is rewritten in every Cargo.toml, references to the crate
// in non-library sources (tests, examples, benches, build scripts) are
// rewritten, and every entry is moved under the new base directory. The input
// file is never modified; the output is written next to it.
//
// Usage:
//
//	repackage [flags] <crate-file> <new-name>
//	repackage fetch [flags] <name> <version> <new-name>
//	repackage serve [flags]
//
// Repackage Flags:
//
//	-old-name string
//	      Expected current crate name (inferred from the file name if empty)
//	-config string
//	      Path to configuration file (YAML or JSON)
//	-publish string
//	      Bucket URL to publish the repackaged crate to (file://, s3://)
//	-force
//	      Overwrite an already published crate
//	-metrics-file string
//	      Write run metrics to this file in textfile format
//	-diff
//	      Print a unified diff between the input and output crate
//	-log-level string
//	      Log level: debug, info, warn, error (default "info")
//	-log-format string
//	      Log format: text, json (default "text")
//
// Fetch accepts the same flags plus:
//
//	-dir string
//	      Directory to download the crate into (default ".")
//	-registry string
//	      Crate download base URL (default "https://static.crates.io/crates")
//
// Serve Flags:
//
//	-config, -listen, -storage, -max-upload-size, -log-level, -log-format
//
// Environment Variables:
//
//	REPACKAGE_LOG_LEVEL               - Log level
//	REPACKAGE_LOG_FORMAT              - Log format
//	REPACKAGE_STORAGE_URL             - Bucket URL for published crates
//	REPACKAGE_METRICS_TEXTFILE        - Metrics textfile path
//	REPACKAGE_UPSTREAM_CARGO_DOWNLOAD - Crate download base URL
//	REPACKAGE_LISTEN                  - Listen address for serve
//	REPACKAGE_MAX_UPLOAD_SIZE         - Largest crate serve accepts
//
// Example:
//
//	# Rename a local crate
//	repackage foo-0.1.0.crate bar
//
//	# Download serde 1.0.0 from crates.io and publish it as my-serde
//	repackage fetch -publish file:///srv/crates serde 1.0.0 my-serde
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/git-pkgs/repackage/internal/config"
	"github.com/git-pkgs/repackage/internal/crate"
	"github.com/git-pkgs/repackage/internal/diff"
	"github.com/git-pkgs/repackage/internal/metrics"
	"github.com/git-pkgs/repackage/internal/repackage"
	"github.com/git-pkgs/repackage/internal/server"
	"github.com/git-pkgs/repackage/internal/storage"
	"github.com/git-pkgs/repackage/internal/upstream"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Commit is set at build time.
	Commit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "fetch":
			os.Args = append(os.Args[:1], os.Args[2:]...)
			exit(runFetch())
			return
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
			runServe()
			return
		case "-version", "--version":
			fmt.Printf("repackage %s (%s)\n", Version, Commit)
			os.Exit(0)
		case "-h", "-help", "--help":
			printUsage()
			os.Exit(0)
		}
	}

	exit(runRepackage())
}

func exit(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `git-pkgs repackage - Republish a .crate under a new name

Usage:
  repackage [flags] <crate-file> <new-name>
  repackage fetch [flags] <name> <version> <new-name>
  repackage serve [flags]

Run 'repackage <command> -help' for more information on a command.

Global Flags:
  -version   Print version and exit
  -help      Show this help message
`)
}

// runFlags are shared by the default command and fetch.
type runFlags struct {
	configPath  *string
	oldName     *string
	publish     *string
	force       *bool
	metricsFile *string
	showDiff    *bool
	logLevel    *string
	logFormat   *string
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	return &runFlags{
		configPath:  fs.String("config", "", "Path to configuration file (YAML or JSON)"),
		oldName:     fs.String("old-name", "", "Expected current crate name (inferred from the file name if empty)"),
		publish:     fs.String("publish", "", "Bucket URL to publish the repackaged crate to (file://, s3://)"),
		force:       fs.Bool("force", false, "Overwrite an already published crate"),
		metricsFile: fs.String("metrics-file", "", "Write run metrics to this file in textfile format"),
		showDiff:    fs.Bool("diff", false, "Print a unified diff between the input and output crate"),
		logLevel:    fs.String("log-level", "", "Log level: debug, info, warn, error"),
		logFormat:   fs.String("log-format", "", "Log format: text, json"),
	}
}

// config resolves the configuration with flags taking precedence over the
// environment, which takes precedence over the file.
func (f *runFlags) config() (*config.Config, error) {
	cfg, err := loadConfig(*f.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.LoadFromEnv()

	if *f.publish != "" {
		cfg.Storage.URL = *f.publish
	}
	if *f.metricsFile != "" {
		cfg.Metrics.Textfile = *f.metricsFile
	}
	if *f.logLevel != "" {
		cfg.Log.Level = *f.logLevel
	}
	if *f.logFormat != "" {
		cfg.Log.Format = *f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runRepackage() error {
	fs := flag.NewFlagSet("repackage", flag.ExitOnError)
	flags := addRunFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "git-pkgs repackage - Republish a .crate under a new name\n\n")
		fmt.Fprintf(os.Stderr, "Usage: repackage [flags] <crate-file> <new-name>\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("expected <crate-file> <new-name>")
	}

	cfg, err := flags.config()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	return run(context.Background(), cfg, logger, fs.Arg(0), *flags.oldName, fs.Arg(1), *flags.force, *flags.showDiff)
}

func runFetch() error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	flags := addRunFlags(fs)
	dir := fs.String("dir", ".", "Directory to download the crate into")
	registry := fs.String("registry", "", "Crate download base URL")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "git-pkgs repackage - Download a crate and republish it under a new name\n\n")
		fmt.Fprintf(os.Stderr, "Usage: repackage fetch [flags] <name> <version> <new-name>\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() != 3 {
		fs.Usage()
		return errors.New("expected <name> <version> <new-name>")
	}
	name, version, newName := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	cfg, err := flags.config()
	if err != nil {
		return err
	}
	if *registry != "" {
		cfg.Upstream.CargoDownload = *registry
	}
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := upstream.New(
		upstream.WithUserAgent("git-pkgs-repackage/"+Version),
		upstream.WithLogger(logger),
	)
	dl, err := fetcher.DownloadCrate(ctx, cfg.Upstream.CargoDownload, name, version, *dir)
	if err != nil {
		return err
	}
	logger.Info("downloaded crate", "url", dl.URL, "path", dl.Path, "size", dl.Size, "sha256", dl.SHA256)

	// The downloaded file name always carries the crate's own name.
	oldName := *flags.oldName
	if oldName == "" {
		oldName = name
	}
	return run(ctx, cfg, logger, dl.Path, oldName, newName, *flags.force, *flags.showDiff)
}

// run repackages one crate file and performs the optional publish, diff and
// metrics steps.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, input, oldName, newName string, force, showDiff bool) error {
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
			}
		}()
	}

	res, err := repackage.DotCrate(input, oldName, newName, repackage.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("%s: %w", repackage.Kind(err), err)
	}

	if showDiff {
		oldBase := crate.BaseDir(filepath.Base(input))
		newBase := crate.BaseDir(filepath.Base(res.Output))
		result, err := diff.CompareCrates(input, oldBase, res.Output, newBase)
		if err != nil {
			return fmt.Errorf("comparing crates: %w", err)
		}
		if err := diff.Write(os.Stdout, result); err != nil {
			return fmt.Errorf("writing diff: %w", err)
		}
	}

	if cfg.Storage.URL != "" {
		if err := publish(ctx, cfg.Storage.URL, logger, res, force); err != nil {
			return err
		}
	}
	return nil
}

func publish(ctx context.Context, bucketURL string, logger *slog.Logger, res *repackage.Result, force bool) error {
	bucket, err := storage.OpenBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() { _ = bucket.Close() }()

	f, err := os.Open(res.Output)
	if err != nil {
		return fmt.Errorf("opening repackaged crate: %w", err)
	}
	defer func() { _ = f.Close() }()

	a, err := storage.Publish(ctx, bucket, res.NewName, res.Version, filepath.Base(res.Output), f, force)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyPublished) {
			return fmt.Errorf("%w (use -force to overwrite)", err)
		}
		return err
	}

	logger.Info("published crate",
		"bucket", bucket.URL(),
		"path", a.Path,
		"purl", a.PURL,
		"size", a.Size,
		"sha256", a.SHA256)
	return nil
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (YAML or JSON)")
	listen := fs.String("listen", "", "Address to listen on")
	storageURL := fs.String("storage", "", "Bucket URL for published crates (file://, s3://)")
	maxUpload := fs.String("max-upload-size", "", "Largest crate accepted, e.g. 50MB")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "Log format: text, json")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "git-pkgs repackage - HTTP repackaging service\n\n")
		fmt.Fprintf(os.Stderr, "Usage: repackage serve [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[1:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	cfg.LoadFromEnv()

	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *storageURL != "" {
		cfg.Storage.URL = *storageURL
	}
	if *maxUpload != "" {
		cfg.Server.MaxUploadSize = *maxUpload
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.Default(), nil
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}

	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
