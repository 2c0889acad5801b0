package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrunning/smartrunning/internal/events"
)

func TestEncodeDecode(t *testing.T) {
	e := events.New(events.ActivityCreated, "act_1", "usr_1")
	assert.Regexp(t, `^evt_`, e.ID)

	data, err := events.Encode(e)
	require.NoError(t, err)

	got, err := events.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.ActivityID, got.ActivityID)
	assert.True(t, e.OccurredAt.Equal(got.OccurredAt))
}

func TestDecode_Errors(t *testing.T) {
	_, err := events.Decode([]byte(`{"type":"activity.exploded"}`))
	assert.ErrorIs(t, err, events.ErrUnknownType)

	_, err = events.Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "activity.deleted", events.Subject(events.ActivityDeleted))
}

func TestNop(t *testing.T) {
	var p events.Publisher = events.Nop{}
	assert.NoError(t, p.Publish(context.Background(), events.New(events.ActivityUpdated, "a", "u")))
	assert.NoError(t, p.Close())
}

func TestMemory_PublishReceive(t *testing.T) {
	bus := events.NewMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []events.Type
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Receive(ctx, func(_ context.Context, e events.Event) error {
			mu.Lock()
			got = append(got, e.Type)
			mu.Unlock()
			return nil
		})
	}()

	require.NoError(t, bus.Publish(ctx, events.New(events.ActivityCreated, "a", "u")))
	require.NoError(t, bus.Publish(ctx, events.New(events.ActivityDeleted, "a", "u")))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Close())
	<-done

	assert.Len(t, bus.Published(), 2)
	assert.Equal(t, []events.Type{events.ActivityCreated, events.ActivityDeleted}, got)
}

func TestOpenPublisher(t *testing.T) {
	for _, provider := range []string{"", events.ProviderNone} {
		pub, err := events.OpenPublisher(context.Background(), events.TransportConfig{Provider: provider})
		require.NoError(t, err)
		assert.IsType(t, events.Nop{}, pub)
	}

	_, err := events.OpenPublisher(context.Background(), events.TransportConfig{Provider: "kafka"})
	assert.ErrorContains(t, err, "unknown event provider")
}

func TestOpenSubscriber_None(t *testing.T) {
	_, err := events.OpenSubscriber(context.Background(), events.TransportConfig{Provider: events.ProviderNone})
	assert.ErrorIs(t, err, events.ErrNoTransport)

	_, err = events.OpenSubscriber(context.Background(), events.TransportConfig{Provider: "kafka"})
	assert.ErrorContains(t, err, "unknown event provider")
}
