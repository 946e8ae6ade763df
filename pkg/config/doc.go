// Package config loads typed configuration from environment variables
// (caarlos0/env tags, optional .env file via godotenv) and from YAML files.
//
// Every infrastructure package owns its Config struct; the process entry point
// calls Load once per struct:
//
//	var pgCfg pg.Config
//	config.MustLoad(&pgCfg)
//
// File-based configuration such as the channel registry is decoded with
// LoadFile, which rejects unknown keys.
package config
