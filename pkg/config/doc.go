// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv, which reads optional .env files into
// the process environment, with github.com/caarlos0/env/v11, which parses the
// environment into structs annotated with `env` and `envDefault` tags. Every
// package of the control plane owns its Config struct; the binary loads each
// of them once through Load and passes the values to constructors.
//
// Parsed values are cached per type, so repeated Load calls are cheap and
// consistent for the lifetime of the process. Reset clears the cache, which
// is mostly useful in tests.
//
//	var cfg ratelimiter.Config
//	config.MustLoad(&cfg)
package config
