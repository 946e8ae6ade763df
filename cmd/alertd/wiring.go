package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xpertseller/alertkit/pkg/broadcast"
	"github.com/xpertseller/alertkit/pkg/config"
	"github.com/xpertseller/alertkit/pkg/email"
	"github.com/xpertseller/alertkit/pkg/httpserver"
	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/mongo"
	"github.com/xpertseller/alertkit/pkg/notifications"
	"github.com/xpertseller/alertkit/pkg/opensearch"
	"github.com/xpertseller/alertkit/pkg/pg"
	"github.com/xpertseller/alertkit/pkg/ratelimit"
	"github.com/xpertseller/alertkit/pkg/redis"
	"github.com/xpertseller/alertkit/pkg/webhook"
	"github.com/xpertseller/alertkit/svc/alerting"
	"github.com/xpertseller/alertkit/svc/alerting/channels"
	"github.com/xpertseller/alertkit/svc/alerting/events"
	"github.com/xpertseller/alertkit/svc/alerting/filetemplates"
	"github.com/xpertseller/alertkit/svc/alerting/mongostore"
	"github.com/xpertseller/alertkit/svc/alerting/sqlstore"
)

const templateCacheSize = 256

// application holds everything run needs from the composition root.
type application struct {
	service    *alerting.Service
	inbox      *notifications.Manager
	checks     []httpserver.Check
	background map[string]func(context.Context) error

	closers []func() error
	log     *slog.Logger
}

func (a *application) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *application) closer(c io.Closer) {
	a.onClose(c.Close)
}

// close releases resources in reverse order of acquisition.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", logger.Error(err))
		}
	}
}

func build(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *application, err error) {
	app := &application{
		background: make(map[string]func(context.Context) error),
		log:        log,
	}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	ledger, err := buildLedger(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	var store *mongostore.Store
	if cfg.TemplateSource == driverMongo || cfg.RecipientSource == driverMongo {
		if store, err = buildMongo(ctx, app); err != nil {
			return nil, err
		}
	}

	templates, err := buildTemplates(cfg, app, store)
	if err != nil {
		return nil, err
	}

	var directory alerting.RecipientDirectory = alerting.NewMemoryDirectory()
	switch cfg.RecipientSource {
	case driverMemory:
	case driverMongo:
		directory = store
	default:
		return nil, fmt.Errorf("unknown recipient source %q", cfg.RecipientSource)
	}

	rateStore, err := buildRateStore(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	topics := broadcast.NewTopics[notifications.Notification](broadcast.WithLogger(log))
	app.closer(topics)
	app.inbox = notifications.NewManager(
		notifications.NewMemoryStorage(),
		notifications.NewTopicDeliverer(topics),
		notifications.WithManagerLogger(log),
	)

	transports := buildTransports(cfg, app)

	observers, err := buildObservers(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	opts := []alerting.ServiceOption{
		alerting.WithLogger(log),
		alerting.WithObservers(observers...),
	}
	if store != nil {
		opts = append(opts, alerting.WithRecommendationSource(store))
	}

	app.service, err = alerting.NewService(alerting.Dependencies{
		Registry:   registry,
		Ledger:     ledger,
		Templates:  templates,
		Directory:  directory,
		Transports: transports,
		RateStore:  rateStore,
	}, opts...)
	if err != nil {
		return nil, err
	}
	app.inbox.AddReadHook(app.service.DashboardReadHook())

	return app, nil
}

func buildRegistry(cfg appConfig) (*alerting.Registry, error) {
	if cfg.RegistryPath != "" {
		return alerting.LoadRegistry(cfg.RegistryPath)
	}
	return alerting.NewRegistry(alerting.DefaultChannels()...)
}

func buildLedger(ctx context.Context, cfg appConfig, app *application) (alerting.Ledger, error) {
	switch cfg.LedgerDriver {
	case driverMemory:
		app.log.Warn("using in-memory ledger, alerts are lost on restart")
		return alerting.NewMemoryLedger(), nil

	case driverSQLite:
		db, err := sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		app.closer(db)
		app.checks = append(app.checks, httpserver.Check{Name: "sqlite", Fn: db.PingContext})
		return migratedStore(ctx, app, db, sqlstore.SQLite)

	case driverPostgres:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		app.onClose(func() error { pool.Close(); return nil })
		app.checks = append(app.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})

		db := pg.OpenDB(pool)
		app.closer(db)
		return migratedStore(ctx, app, db, sqlstore.Postgres)
	}
	return nil, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
}

func migratedStore(ctx context.Context, app *application, db *sql.DB, dialect sqlstore.Dialect) (*sqlstore.Store, error) {
	store, err := sqlstore.New(db, dialect)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, app.log); err != nil {
		return nil, err
	}
	return store, nil
}

func buildMongo(ctx context.Context, app *application) (*mongostore.Store, error) {
	var cfg mongo.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	client, err := mongo.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.onClose(func() error { return client.Disconnect(context.Background()) })
	app.checks = append(app.checks, httpserver.Check{Name: "mongodb", Fn: mongo.Healthcheck(client)})

	store := mongostore.New(client.Database(cfg.Database))
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func buildTemplates(cfg appConfig, app *application, store *mongostore.Store) (alerting.TemplateStore, error) {
	switch cfg.TemplateSource {
	case driverFile:
		files, err := filetemplates.Open(cfg.TemplatesPath,
			filetemplates.WithLogger(app.log),
			filetemplates.WithOnReload(func(ids []string) {
				app.log.Info("templates reloaded", slog.Int("count", len(ids)))
			}),
		)
		if err != nil {
			return nil, err
		}
		app.background["templates"] = files.Watch
		return files, nil

	case driverMongo:
		return alerting.NewCachedTemplates(store, templateCacheSize, cfg.TemplateCacheTTL), nil
	}
	return nil, fmt.Errorf("unknown template source %q", cfg.TemplateSource)
}

func buildRateStore(ctx context.Context, cfg appConfig, app *application) (ratelimit.Store, error) {
	switch cfg.RateLimitStore {
	case driverMemory:
		store := ratelimit.NewMemoryStore()
		app.closer(store)
		return store, nil

	case driverRedis:
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		app.closer(client)
		app.checks = append(app.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		return ratelimit.NewRedisStore(client, ratelimit.WithKeyPrefix(cfg.ServiceName+":ratelimit:"))
	}
	return nil, fmt.Errorf("unknown rate limit store %q", cfg.RateLimitStore)
}

// buildTransports registers a transport for every provider that is
// configured. Channels without one fail their attempts with
// ErrNoTransport and fall through to the next channel in the plan.
func buildTransports(cfg appConfig, app *application) alerting.Transports {
	log := app.log
	throttled := func(t alerting.Transport) alerting.Transport {
		return channels.NewThrottle(t, cfg.ProviderRPS, cfg.ProviderBurst)
	}

	transports := alerting.Transports{
		alerting.ChannelDashboard: channels.NewDashboard(app.inbox,
			channels.WithNotificationTTL(cfg.NotificationTTL)),
	}

	if sender, err := buildEmailSender(cfg); err != nil {
		log.Warn("email channel disabled", logger.Error(err))
	} else {
		transports[alerting.ChannelEmail] = throttled(channels.NewEmail(sender))
	}

	var twilioCfg channels.TwilioConfig
	if err := config.Load(&twilioCfg); err != nil {
		log.Warn("twilio channels disabled", logger.Error(err))
	} else if twilioCfg.Enabled() {
		client, err := channels.NewTwilioClient(twilioCfg)
		if err != nil {
			log.Warn("twilio channels disabled", logger.Error(err))
		} else {
			twilioLog := channels.WithTwilioLogger(log.With(logger.Component("twilio")))
			if twilioCfg.SMSFrom != "" {
				transports[alerting.ChannelSMS] = throttled(
					channels.NewSMS(client.Api, twilioCfg.SMSFrom, twilioCfg.StatusCallbackURL, twilioLog))
			}
			if twilioCfg.WhatsAppFrom != "" {
				transports[alerting.ChannelWhatsApp] = throttled(
					channels.NewWhatsApp(client.Api, twilioCfg.WhatsAppFrom, twilioCfg.StatusCallbackURL, twilioLog))
			}
		}
	}

	var telegramCfg channels.TelegramConfig
	if err := config.Load(&telegramCfg); err == nil && telegramCfg.Token != "" {
		bot, err := channels.NewTelegramBot(telegramCfg)
		if err != nil {
			log.Warn("telegram channel disabled", logger.Error(err))
		} else {
			transports[alerting.ChannelTelegram] = throttled(channels.NewTelegram(bot))
		}
	}

	slackOpts := []channels.WebhookOption{
		channels.WithWebhookTimeout(cfg.SendTimeout),
		channels.WithWebhookBreaker(webhook.NewCircuitBreaker(5, 2, cfg.SendTimeout*3)),
	}
	if cfg.WebhookSecret != "" {
		slackOpts = append(slackOpts, channels.WithWebhookSecret(cfg.WebhookSecret))
	}
	transports[alerting.ChannelSlack] = throttled(channels.NewWebhook(webhook.NewSender(), slackOpts...))

	return transports
}

func buildEmailSender(cfg appConfig) (email.EmailSender, error) {
	var emailCfg email.Config
	if err := config.Load(&emailCfg); err != nil {
		return nil, err
	}
	if emailCfg.PostmarkServerToken != "" {
		return email.NewPostmarkClient(emailCfg)
	}
	if cfg.AppEnv == "production" {
		return nil, errors.New("POSTMARK_SERVER_TOKEN is not set")
	}
	return email.NewDevSender(emailCfg.DevOutputDir), nil
}

func buildObservers(ctx context.Context, cfg appConfig, app *application) ([]alerting.Observer, error) {
	var observers []alerting.Observer

	var amqpCfg events.AMQPConfig
	if err := config.Load(&amqpCfg); err != nil {
		return nil, err
	}
	if amqpCfg.Enabled() {
		publisher, err := events.DialPublisher(amqpCfg)
		if err != nil {
			return nil, err
		}
		app.closer(publisher)
		observers = append(observers, publisher)
	}

	var searchCfg opensearch.Config
	if err := config.Load(&searchCfg); err != nil {
		return nil, err
	}
	if searchCfg.Enabled() {
		client, err := opensearch.New(ctx, searchCfg)
		if err != nil {
			return nil, err
		}
		app.checks = append(app.checks, httpserver.Check{Name: "opensearch", Fn: opensearch.Healthcheck(client)})
		observers = append(observers, events.NewIndexer(client, searchCfg.Index))
	}

	return observers, nil
}
