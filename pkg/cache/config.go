package cache

// config.go defines the functional options accepted by New. The option
// surface is small: a single byte budget, a metrics registry and a logger
// -- the strict-LRU policy has no TTL or shard dimension to configure.
//
// © 2025 pandora authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type config struct {
	registry *prometheus.Registry
	logger   *zap.Logger
}

func defaultConfig() config {
	return config{logger: zap.NewNop()}
}

// Option customizes a Cache at construction time.
type Option func(*config)

// WithMetrics registers the cache's Prometheus collectors against reg. If
// omitted, metrics are tracked internally but never exported.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithLogger attaches a zap.Logger used for eviction and capacity warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
