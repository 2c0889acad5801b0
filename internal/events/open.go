package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Transport providers.
const (
	ProviderPubSub = "pubsub"
	ProviderNATS   = "nats"
	ProviderNone   = "none"
)

// ErrNoTransport is returned by OpenSubscriber when no provider is configured.
var ErrNoTransport = errors.New("no event transport configured")

// TransportConfig selects and configures a transport.
type TransportConfig struct {
	Provider       string
	ProjectID      string
	Topic          string
	Subscription   string
	NATSURL        string
	MaxOutstanding int
	Logger         zerolog.Logger
}

func (c TransportConfig) pubsub() PubSubConfig {
	return PubSubConfig{
		ProjectID:      c.ProjectID,
		Topic:          c.Topic,
		Subscription:   c.Subscription,
		MaxOutstanding: c.MaxOutstanding,
		Logger:         c.Logger,
	}
}

// OpenPublisher returns the publisher for cfg.Provider. An empty or "none"
// provider yields Nop.
func OpenPublisher(ctx context.Context, cfg TransportConfig) (Publisher, error) {
	switch cfg.Provider {
	case "", ProviderNone:
		return Nop{}, nil
	case ProviderPubSub:
		return NewPubSubPublisher(ctx, cfg.pubsub())
	case ProviderNATS:
		return NewNATSPublisher(cfg.NATSURL, cfg.Logger)
	default:
		return nil, fmt.Errorf("unknown event provider %q", cfg.Provider)
	}
}

// OpenSubscriber returns the subscriber for cfg.Provider.
func OpenSubscriber(ctx context.Context, cfg TransportConfig) (Subscriber, error) {
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, ErrNoTransport
	case ProviderPubSub:
		return NewPubSubSubscriber(ctx, cfg.pubsub())
	case ProviderNATS:
		return NewNATSSubscriber(cfg.NATSURL, cfg.Logger)
	default:
		return nil, fmt.Errorf("unknown event provider %q", cfg.Provider)
	}
}
