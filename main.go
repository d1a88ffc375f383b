package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freekieb7/kiln/auth"
	"github.com/freekieb7/kiln/config"
	"github.com/freekieb7/kiln/filesystem"
	"github.com/freekieb7/kiln/http"
	"github.com/freekieb7/kiln/logging"
	"github.com/freekieb7/kiln/schedule"
	"github.com/freekieb7/kiln/telemetry"
	"github.com/freekieb7/kiln/transport"
)

func main() {
	path := flag.String("config", "kiln.ini", "path to the configuration file")
	flag.Parse()

	if err := run(*path); err != nil {
		slog.Error("kiln stopped", "error", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: config.String(cfg, "telemetry", "service", "kiln"),
		Endpoint:    config.String(cfg, "telemetry", "endpoint", ""),
		Insecure:    config.Bool(cfg, "telemetry", "insecure", true),
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	logOpts := logging.Options{Level: config.String(cfg, "log", "level", "info")}
	if providers.Logger != nil {
		logOpts.Provider = providers.Logger
	}
	logger := logging.NewLogger(logOpts)
	slog.SetDefault(logger)

	metrics, err := telemetry.NewMetrics(providers.Meter.Meter(telemetry.ScopeName))
	if err != nil {
		return err
	}

	var accessLog *logging.AccessLog
	if file := config.String(cfg, "log", "access", ""); file != "" {
		if accessLog, err = logging.OpenAccessLog(file, config.Bool(cfg, "log", "timestamps", true)); err != nil {
			return err
		}
		defer accessLog.Close()
	}

	access := auth.New(logger)
	if err := access.Configure(cfg); err != nil {
		return err
	}

	fs := filesystem.NewLocalFileSystem(logger)
	router := http.NewRouter(cfg, fs, logger)
	engine := &http.Engine{
		Parser:    http.Parser{Retries: config.Int(cfg, "settings", "timeout", http.ReadRetries)},
		Router:    &router,
		Responder: http.Responder{FS: fs},
		Access:    access,
		Log:       accessLog,
		Logger:    logger,
		Metrics:   metrics,
		Dump:      config.Bool(cfg, "log", "dump", false),
	}

	ln, err := listen(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ln.Shutdown()

	server := http.NewServer(engine.Handler(
		http.RecoverMiddleware(logger),
		http.TracingMiddleware(providers.Tracer.Tracer(telemetry.ScopeName)),
		http.MetricsMiddleware(metrics),
	), logger)
	server.Workers = config.Int(cfg, "settings", "workers", http.WorkerPoolSize)
	server.Metrics = metrics

	scheduler := schedule.NewScheduler(logger)
	if err := scheduler.AddJob(schedule.NewJob("access-refresh").
		WithInterval(config.Duration(cfg, "access", "refresh", 30*time.Second)).
		WithTasks(func(context.Context) error { return access.Refresh() })); err != nil {
		return err
	}
	if err := scheduler.AddJob(schedule.NewJob("slot-report").
		WithInterval(time.Minute).
		WithTasks(func(context.Context) error {
			logger.Debug("worker slots", "active", server.Active(), "capacity", server.Capacity())
			return nil
		})); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := scheduler.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if addr := config.String(cfg, "telemetry", "metrics", ""); addr != "" {
		g.Go(func() error {
			return telemetry.ServeMetrics(gctx, addr, providers)
		})
	}

	g.Go(func() error {
		return server.Serve(gctx, ln)
	})

	return g.Wait()
}

func listen(ctx context.Context, cfg config.Reader, logger *slog.Logger) (*transport.Conn, error) {
	address := config.String(cfg, "settings", "address", "0.0.0.0")
	port, err := config.Port(cfg, "settings", "port", 8080)
	if err != nil {
		return nil, err
	}

	flags := transport.Server | transport.TCP
	opts := []transport.Option{
		transport.WithLogger(logger),
		transport.WithPollInterval(config.Duration(cfg, "settings", "poll", transport.DefaultPollInterval)),
	}
	if config.Bool(cfg, "settings", "secure", false) {
		flags |= transport.Secure
		opts = append(opts, transport.WithKeyPair(
			config.String(cfg, "settings", "keyfile", ""),
			config.String(cfg, "settings", "certfile", ""),
		))
	}

	ln, err := transport.Open(ctx, address, port, flags, opts...)
	if err != nil {
		return nil, err
	}

	if user := config.String(cfg, "settings", "user", ""); user != "" && port < 1024 {
		if err := transport.DropPrivileges(user); err != nil {
			ln.Shutdown()
			return nil, err
		}
		logger.Info("dropped privileges", "user", user)
	}

	return ln, nil
}
