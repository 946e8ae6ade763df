// Command alertd runs the alert delivery service: the HTTP API, provider
// callbacks and the scheduled-alert sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/xpertseller/alertkit/pkg/async"
	"github.com/xpertseller/alertkit/pkg/config"
	"github.com/xpertseller/alertkit/pkg/httpserver"
	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/requestid"
	"github.com/xpertseller/alertkit/svc/alerting"
	"github.com/xpertseller/alertkit/svc/alerting/api"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("alertd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.AppEnv, cfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	handler := api.New(app.service,
		api.WithLogger(log),
		api.WithCallbacks(cfg.Callbacks),
		api.WithHealthChecks(app.checks...),
		api.WithInbox(app.inbox),
	)

	scheduler, err := alerting.NewScheduler(app.service, cfg.scheduleSpec(),
		alerting.WithSchedulerLogger(log))
	if err != nil {
		return err
	}

	server := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(addr net.Addr) {
			log.InfoContext(ctx, "alertd ready", slog.String("addr", addr.String()))
			if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				log.WarnContext(ctx, "sd_notify failed", logger.Error(err))
			}
		}),
		httpserver.WithStopHook(func() {
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		}),
	)

	// Any component exiting with an error stops the rest.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	supervise := func(name string, fn func(context.Context) error) *async.Future[struct{}] {
		return async.Async(ctx, name, func(ctx context.Context, name string) (struct{}, error) {
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				err = fmt.Errorf("%s: %w", name, err)
				cancel(err)
				return struct{}{}, err
			}
			return struct{}{}, nil
		})
	}

	futures := []*async.Future[struct{}]{
		supervise("http", func(ctx context.Context) error { return server.Run(ctx, handler.Router()) }),
		supervise("scheduler", scheduler.Run),
	}
	for name, fn := range app.background {
		futures = append(futures, supervise(name, fn))
	}

	_, err = async.WaitAll(futures...)
	return err
}
