// Package httpserver runs an http.Handler with configurable timeouts and
// graceful shutdown when the context is canceled.
//
//	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	err := srv.Run(ctx, router)
//
// HealthCheckHandler exposes named readiness checks as JSON.
package httpserver
