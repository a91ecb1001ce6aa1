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
	"syscall"
	"time"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/config"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/server"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/metrics"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}
	switch args[0] {
	case "--version", "-v", "version":
		fmt.Printf("hero-recognize %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return 0
	case "--help", "-h", "help":
		printUsage()
		return 0
	case "recognize", "serve":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		return 2
	}

	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML configuration file")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	// Logs go to stderr: stdout carries results and the MCP stream.
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		return 1
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFile(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(ctx, cfg.MetricsAddr, log)
		defer shutdown()
	}

	rec, err := buildRecognizer(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build recognizer", logger.Error(err))
		fmt.Fprintf(os.Stderr, "hero-recognize: %v\n", err)
		return 1
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.Warn(ctx, "failed to release recognizer", logger.Error(err))
		}
	}()

	switch cmd {
	case "recognize":
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: hero-recognize recognize [--config file] <screenshot>")
			return 2
		}
		return recognize(ctx, rec, fs.Arg(0), os.Stdout)
	default:
		log.Info(ctx, "serving MCP on stdio",
			logger.String("version", Version),
			logger.String("build_time", BuildTime),
			logger.String("commit", GitCommit))
		srv := server.New(rec,
			server.WithLogger(log.Named("server")),
			server.WithOCRLanguages(cfg.OCRLanguages...),
			server.WithVersion(Version))
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "server error", logger.Error(err))
			return 1
		}
		return 0
	}
}

// recognize writes one hero per line with its provenance and confidence.
// The request runs as a job so an interrupt returns at once while the
// workers wind down.
func recognize(ctx context.Context, rec frameRecognizer, path string, out io.Writer) int {
	img, err := imaging.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hero-recognize: %v\n", err)
		return 1
	}
	job := rec.Submit(ctx, img)
	rep, err := job.Wait(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hero-recognize: request %s: %v\n", job.ID(), err)
		return 1
	}
	for _, e := range rep.Result.Entries {
		fmt.Fprintf(out, "%s\t%s\t%.3f\n", e.Name, e.Provenance, e.Confidence)
	}
	return 0
}

// serveMetrics exposes /metrics until the returned function is called.
func serveMetrics(ctx context.Context, addr string, log logger.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		log.Info(ctx, "starting metrics listener", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics listener failed", logger.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func printUsage() {
	fmt.Println("hero-recognize - enemy hero recognition for hero-selection screenshots")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  hero-recognize recognize [--config file] <screenshot>")
	fmt.Println("  hero-recognize serve [--config file]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config file    YAML configuration (default $HERO_CONFIG)")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  HERO_<KEY>=value     Override any configuration key, e.g. HERO_LOG_LEVEL=debug")
	fmt.Println("  HERO_METRICS_ADDR    Serve Prometheus metrics, e.g. :9090")
	fmt.Println()
	fmt.Println("serve speaks the MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
