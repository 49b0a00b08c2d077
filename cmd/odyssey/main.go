package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-stock/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-stock/internal/app"
	"github.com/odyssey-erp/odyssey-stock/internal/observability"
	"github.com/odyssey-erp/odyssey-stock/jobs"
)

const usage = `usage: odyssey [command]

commands:
  serve                     run the HTTP API (default)
  migrate                   create missing tables and exit
  reorder [--json]          print products below their reorder minimum
  jobs trigger <task>       enqueue a background task
  jobs stats                print default queue statistics
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	var code int
	switch command {
	case "serve":
		code = serve(ctx, stop, cfg, logger)
	case "migrate":
		code = migrate(ctx, cfg, logger)
	case "reorder":
		code = reorderReport(ctx, cfg, logger, args)
	case "jobs":
		code = jobsCommand(ctx, cfg, args)
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		code = 2
	}
	stop()
	os.Exit(code)
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) int {
	metrics := observability.NewMetrics()
	container, err := app.Build(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer container.Close()

	var jobHandler *jobs.Handler
	if opts, ok := container.RedisOpts(); ok {
		inspector := asynq.NewInspector(opts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		client, err := jobs.NewClient(opts)
		if err != nil {
			logger.Error("jobs client", slog.Any("error", err))
			return 1
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, client, logger)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      container.Router(jobHandler),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.StorageBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	if cfg.StorageBackend != app.BackendPostgres {
		logger.Info("nothing to migrate", slog.String("backend", cfg.StorageBackend))
		return 0
	}
	cfg.AutoMigrate = true
	container, err := app.Build(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("migrate", slog.Any("error", err))
		return 1
	}
	container.Close()
	logger.Info("schema up to date")
	return 0
}

func reorderReport(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("reorder", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	container, err := app.Build(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer container.Close()
	return cli.NewReorderCLI(container.Services.Reorder).BelowMinimumCommand(ctx, cli.ReportOptions{JSONOutput: *jsonOut})
}

func jobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		return 2
	}
	jc, err := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = jc.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(os.Stderr, "jobs trigger: task name required")
			return 2
		}
		info, err := jc.Trigger(ctx, args[1])
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			return 1
		}
		_, _ = fmt.Fprintf(os.Stdout, "enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jc.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			return 1
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		return 2
	}
	return 0
}
