package main

import (
	"time"

	"github.com/xpertseller/alertkit/pkg/httpserver"
	"github.com/xpertseller/alertkit/svc/alerting"
	"github.com/xpertseller/alertkit/svc/alerting/api"
)

// Driver names accepted by the *_DRIVER / *_SOURCE / *_STORE variables.
const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
	driverMongo    = "mongo"
	driverFile     = "file"
	driverRedis    = "redis"
)

type appConfig struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"alertd"`

	LedgerDriver    string `env:"LEDGER_DRIVER" envDefault:"memory"`
	SQLitePath      string `env:"SQLITE_PATH" envDefault:"./data/alerts.db"`
	RegistryPath    string `env:"REGISTRY_PATH"`
	TemplateSource  string `env:"TEMPLATE_SOURCE" envDefault:"file"`
	TemplatesPath   string `env:"TEMPLATES_PATH" envDefault:"./templates.yaml"`
	RecipientSource string `env:"RECIPIENT_SOURCE" envDefault:"memory"`
	RateLimitStore  string `env:"RATE_LIMIT_STORE" envDefault:"memory"`

	ScheduleSpec     string        `env:"SCHEDULE_SPEC" envDefault:"@every 30s"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
	TemplateCacheTTL time.Duration `env:"TEMPLATE_CACHE_TTL" envDefault:"1m"`
	NotificationTTL  time.Duration `env:"NOTIFICATION_TTL" envDefault:"720h"`
	ProviderRPS      float64       `env:"PROVIDER_RPS" envDefault:"10"`
	ProviderBurst    int           `env:"PROVIDER_BURST" envDefault:"20"`
	WebhookSecret    string        `env:"WEBHOOK_SIGNING_SECRET"`

	HTTP      httpserver.Config
	Callbacks api.CallbackConfig
}

func (c appConfig) scheduleSpec() string {
	if c.ScheduleSpec == "" {
		return alerting.DefaultScheduleSpec
	}
	return c.ScheduleSpec
}
