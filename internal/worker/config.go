// Package worker consumes activity events and keeps the GPX track cache warm.
package worker

import (
	"time"
)

// Config holds configuration for the track builder.
type Config struct {
	// Concurrency bounds how many events are processed at once.
	// Default: 4
	Concurrency int

	// JobTimeout is the timeout for each event.
	// Default: 30 seconds
	JobTimeout time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		JobTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = def.JobTimeout
	}
	return c
}
