package events

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Message attributes set on every Pub/Sub message.
const (
	AttrType       = "event_type"
	AttrActivityID = "activity_id"
)

// PubSubConfig holds configuration for the Pub/Sub transport.
type PubSubConfig struct {
	ProjectID string
	// Topic is used by the publisher.
	Topic string
	// Subscription is used by the subscriber.
	Subscription string
	// MaxOutstanding bounds in-flight messages on the subscriber.
	MaxOutstanding int
	Logger         zerolog.Logger
}

// PubSubPublisher publishes events to a Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    zerolog.Logger
}

// NewPubSubPublisher creates a Pub/Sub publisher.
func NewPubSubPublisher(ctx context.Context, cfg PubSubConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.Topic),
		logger:    cfg.Logger,
	}, nil
}

// Publish sends e and waits for the server acknowledgement.
func (p *PubSubPublisher) Publish(ctx context.Context, e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			AttrType:       string(e.Type),
			AttrActivityID: e.ActivityID,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}

	p.logger.Debug().
		Str("message_id", id).
		Str("event_type", string(e.Type)).
		Str("activity_id", e.ActivityID).
		Msg("published event")
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// PubSubSubscriber receives events from a Pub/Sub subscription.
type PubSubSubscriber struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	logger           zerolog.Logger
}

// NewPubSubSubscriber creates a Pub/Sub subscriber.
func NewPubSubSubscriber(ctx context.Context, cfg PubSubConfig) (*PubSubSubscriber, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.Subscription)

	maxOutstanding := cfg.MaxOutstanding
	if maxOutstanding <= 0 {
		maxOutstanding = 10
	}
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubSubscriber{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.Subscription,
		logger:           cfg.Logger,
	}, nil
}

// Receive blocks until ctx is done, acking messages whose handler succeeds.
// Undecodable messages are acked so they are not redelivered.
func (s *PubSubSubscriber) Receive(ctx context.Context, h Handler) error {
	s.logger.Info().
		Str("subscription", s.subscriptionName).
		Msg("starting pubsub receiver")

	return s.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := s.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		e, err := Decode(msg.Data)
		if err != nil {
			logger.Warn().Err(err).Msg("dropping undecodable message")
			msg.Ack()
			return
		}
		if err := h(ctx, e); err != nil {
			logger.Error().Err(err).Str("event_type", string(e.Type)).Msg("event handler failed")
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close closes the Pub/Sub client.
func (s *PubSubSubscriber) Close() error {
	return s.client.Close()
}
