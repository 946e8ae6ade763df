package opensearch

type Config struct {
	Addresses  []string `env:"OPENSEARCH_ADDRESSES" envSeparator:","`
	Username   string   `env:"OPENSEARCH_USERNAME"`
	Password   string   `env:"OPENSEARCH_PASSWORD"`
	MaxRetries int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	// Index receives delivery events.
	Index string `env:"OPENSEARCH_INDEX" envDefault:"alert-deliveries"`
}

// Enabled reports whether any address is configured.
func (c Config) Enabled() bool {
	return len(c.Addresses) > 0
}
