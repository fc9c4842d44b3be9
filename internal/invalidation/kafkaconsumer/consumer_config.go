package kafkaconsumer

import (
	"time"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	RetryBackoff        time.Duration
	DedupeSize          int
	InitialOffsetOldest bool
}

// FromConfig fills the sarama group timings around the service settings.
// Newest offsets are used: a fresh replica starts with an empty cache and has
// nothing older to drop.
func FromConfig(c config.InvalidationCfg) Config {
	return Config{
		Brokers:          c.Brokers,
		Topic:            c.Topic,
		GroupID:          c.GroupID,
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		RetryBackoff:     2 * time.Second,
		DedupeSize:       4096,
	}
}
