package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	asyncapi "github.com/hedisam/tmpdrop/server/api/async"
	restapi "github.com/hedisam/tmpdrop/server/api/rest"
	"github.com/hedisam/tmpdrop/server/internal/audit"
	"github.com/hedisam/tmpdrop/server/internal/blobstorage/filesystem"
	"github.com/hedisam/tmpdrop/server/internal/clientip"
	"github.com/hedisam/tmpdrop/server/internal/config"
	"github.com/hedisam/tmpdrop/server/internal/idgen"
	"github.com/hedisam/tmpdrop/server/internal/interceptors"
	"github.com/hedisam/tmpdrop/server/internal/metrics"
	"github.com/hedisam/tmpdrop/server/internal/sniff"
	"github.com/hedisam/tmpdrop/server/internal/transcode"
)

const (
	appName = "tmpdrop-server"

	logFileLayout   = "20060102-150405"
	shutdownTimeout = time.Second * 10
)

// Options defines a set of config options.
type Options struct {
	EnvFile     string
	ConfigFile  string
	TraceStdout bool
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.AddHook(&interceptors.TraceHook{})

	var opts Options
	pflag.StringVar(&opts.EnvFile, "env-file", "", "Env file to load before reading the environment (default .env when present)")
	pflag.StringVar(&opts.ConfigFile, "config", "", "Optional TOML config file; environment variables take precedence")
	pflag.BoolVar(&opts.TraceStdout, "trace-stdout", false, "Print finished trace spans to stdout")
	pflag.Parse()

	cfg, err := config.Load(config.LoadOptions{
		EnvFile:    opts.EnvFile,
		ConfigFile: opts.ConfigFile,
	})
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	closeLogFile := mustOpenLogFile(logger, cfg.LogDirectory)
	defer closeLogFile()

	logger.WithFields(cfg.Fields()).Info("Loaded configuration")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)

	fileStorage, err := filesystem.New(logger, cfg.Directory, cfg.MaxFileSize)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize filesystem")
	}
	defer fileStorage.Close()

	cache, err := transcode.New(logger, cfg.ConvertDirectory, cfg.MaxConvertibleImageSize, cfg.MaxFileSize, m)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize transcode cache")
	}
	defer cache.Close()

	minter, err := idgen.New(cfg.IDChars, cfg.IDLength, fileStorage.Exists, idgen.WithReserved(restapi.ReservedIDs...))
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize id minter")
	}

	resolver, err := clientip.NewResolver(cfg.TrustProxy)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize client identity resolver")
	}

	// a nil ledger records nothing
	var ledger restapi.AuditLedger = (*audit.Ledger)(nil)
	if cfg.AuditDatabase != "" {
		db, err := audit.Open(logger, cfg.AuditDatabase)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open audit ledger")
		}
		defer db.Close()

		queue := audit.NewQueue(logger, db, audit.DefaultQueueSize)
		go queue.Run(ctx)
		// runs before db.Close so queued events are written
		defer queue.Close()
		ledger = queue
	}

	sweeper := asyncapi.NewSweeper(logger, fileStorage, cache, cfg.FileExpires, cfg.SweepInterval, m)
	go sweeper.Run(ctx)

	uploadServer := restapi.NewUploadServer(logger, fileStorage, minter, resolver, ledger, m, cfg.RequireContentLength)
	fileServer := restapi.NewFileServer(logger, fileStorage, cache, resolver, ledger, m, cfg.IDPattern(), sniff.Sniff)

	mux := http.NewServeMux()
	restapi.RegisterRoutes(logger, mux, uploadServer, fileServer)

	shutdown := mustInitTracer(logger, appName, opts.TraceStdout)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.WithError(err).Error("Failed to shutdown tracer")
		}
	}()
	handler := otelhttp.NewHandler(mux, appName)
	handler = interceptors.InterceptWithDefaultMetrics(prometheus.DefaultRegisterer, handler)

	// Expose the registered metrics via HTTP
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: time.Second * 10,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		logger.WithError(err).WithField("addr", srv.Addr).Error("Failed to listen")
		return
	}

	logger.WithField("addr", ln.Addr().String()).Info("Starting server")
	err = serve(ctx, logger, srv, ln)
	if err != nil {
		logger.WithError(err).Error("Server failed with error")
		return
	}
	logger.Info("Server stopped")
}

// serve runs srv on ln until ctx is done, then shuts it down. It returns once in-flight requests
// have finished or shutdownTimeout has passed.
func serve(ctx context.Context, logger *logrus.Logger, srv *http.Server, ln net.Listener) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Failed to shutdown server gracefully")
		}
	}()

	err := srv.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// mustOpenLogFile tees the log output into a timestamped file in dir, if dir is set.
func mustOpenLogFile(logger *logrus.Logger, dir string) func() {
	if dir == "" {
		return func() {}
	}

	path := filepath.Join(dir, time.Now().Format(logFileLayout)+".log")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		logger.WithError(err).WithField("path", path).Fatal("Failed to open log file")
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	logger.WithField("path", path).Info("Logging to file")

	return func() {
		logger.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

func mustInitTracer(logger *logrus.Logger, appName string, toStdout bool) func(context.Context) error {
	var w io.Writer = io.Discard
	if toStdout {
		w = os.Stdout
	}
	exp, err := interceptors.NewSTDOUTExporter(w)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize STDOUT trace exporter")
	}

	tp, err := interceptors.RegisterTraceProvider(appName, exp)
	if err != nil {
		logger.WithError(err).Fatal("Failed to register trace provider")
	}

	return tp.Shutdown
}
