// Package logger builds *slog.Logger instances for the alert service and
// provides attribute helpers so that field names stay consistent across
// packages (alert_id, attempt_id, recipient_id, channel, error).
//
// New wraps the chosen slog handler with LogHandlerDecorator, which appends
// attributes stored in the context with WithContextAttrs and any registered
// ContextExtractor values to every record:
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "alertd"))
//	ctx = logger.WithContextAttrs(ctx, logger.AlertID(alert.ID))
//	log.InfoContext(ctx, "dispatch started", logger.Channel(ch))
//
// Error and Errors return an empty attribute for nil errors, so
// log.Info("done", logger.Error(err)) needs no nil check.
package logger
