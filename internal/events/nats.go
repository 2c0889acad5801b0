package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// JetStream layout for activity events.
const (
	StreamName     = "ACTIVITIES"
	subjectPattern = "activity.>"
	durableName    = "track-builder"
)

func connectNATS(url string) (*nats.Conn, nats.JetStreamContext, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPattern},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("ensure stream %s: %w", StreamName, err)
		}
	}

	return conn, js, nil
}

// Subject returns the JetStream subject for an event type. Type values are
// already dotted subjects under activity.
func Subject(t Type) string {
	return string(t)
}

// NATSPublisher publishes events to JetStream.
type NATSPublisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger zerolog.Logger
}

// NewNATSPublisher connects to NATS and ensures the activity stream exists.
func NewNATSPublisher(url string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, js, err := connectNATS(url)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn, js: js, logger: logger}, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	ack, err := p.js.Publish(Subject(e.Type), data, nats.Context(ctx), nats.MsgId(e.ID))
	if err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}
	p.logger.Debug().
		Str("stream", ack.Stream).
		Uint64("seq", ack.Sequence).
		Str("event_type", string(e.Type)).
		Msg("published event")
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NATSSubscriber consumes events from JetStream with a durable consumer.
type NATSSubscriber struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger zerolog.Logger
}

// NewNATSSubscriber connects to NATS for consuming activity events.
func NewNATSSubscriber(url string, logger zerolog.Logger) (*NATSSubscriber, error) {
	conn, js, err := connectNATS(url)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: conn, js: js, logger: logger}, nil
}

// Receive subscribes and blocks until ctx is done.
func (s *NATSSubscriber) Receive(ctx context.Context, h Handler) error {
	sub, err := s.js.Subscribe(subjectPattern, func(msg *nats.Msg) {
		e, err := Decode(msg.Data)
		if err != nil {
			s.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping undecodable message")
			_ = msg.Term()
			return
		}
		if err := h(ctx, e); err != nil {
			s.logger.Error().Err(err).Str("event_type", string(e.Type)).Msg("event handler failed")
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durableName),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subjectPattern, err)
	}

	<-ctx.Done()
	return sub.Unsubscribe()
}

// Close drains and closes the connection.
func (s *NATSSubscriber) Close() error {
	return s.conn.Drain()
}
