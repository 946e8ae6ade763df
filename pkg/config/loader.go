package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type configCache struct {
	mu     sync.Mutex
	values map[string]any
}

var (
	globalCache = &configCache{values: make(map[string]any)}

	defaultEnvLoaded sync.Once
)

// Option tunes a single Load call.
type Option func(*loadOptions)

type loadOptions struct {
	prefix  string
	noCache bool
}

// WithPrefix parses variables with the given prefix, e.g. "NOTIFY_" turns
// `env:"TOKEN"` into NOTIFY_TOKEN. Each prefix is cached separately.
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) { o.prefix = prefix }
}

// WithoutCache forces a fresh parse and does not store the result.
func WithoutCache() Option {
	return func(o *loadOptions) { o.noCache = true }
}

// Load parses environment variables into v based on its `env` struct tags.
// A .env file in the working directory is applied once per process if present.
// Results are cached per type (and prefix), so subsequent calls are cheap.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T, opts ...Option) error {
	defaultEnvLoaded.Do(func() {
		// .env is optional
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	key := o.prefix + typeName[T]()

	if !o.noCache {
		globalCache.mu.Lock()
		defer globalCache.mu.Unlock()
		if cached, ok := globalCache.values[key]; ok {
			*v = cached.(T)
			return nil
		}
	}

	if err := env.ParseWithOptions(v, env.Options{Prefix: o.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	if !o.noCache {
		globalCache.values[key] = *v
	}
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// LoadFile decodes a YAML document at path into v. Unknown fields are rejected
// so typos in hand-edited files surface at startup.
func LoadFile[T any](path string, v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrReadingFile, err)
	}
	return DecodeYAML(data, v)
}

// DecodeYAML decodes a YAML document into v with unknown fields rejected.
func DecodeYAML[T any](data []byte, v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrParsingFile, err)
	}
	return nil
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return t.PkgPath() + "." + t.String()
}
