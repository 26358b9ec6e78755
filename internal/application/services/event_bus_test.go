package services

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/formengine/internal/domain/events"
)

func TestEventBus_SubscribePublish(t *testing.T) {
	bus := NewEventBus()
	var got []string

	unsubA := bus.Subscribe(events.FieldChanged, func(_ context.Context, p interface{}) error {
		got = append(got, "a:"+p.(string))
		return nil
	})
	bus.Subscribe(events.FieldChanged, func(_ context.Context, p interface{}) error {
		got = append(got, "b:"+p.(string))
		return nil
	})
	assert.Equal(t, 2, bus.HandlerCount(events.FieldChanged))

	require.NoError(t, bus.Publish(context.Background(), events.FieldChanged, "x"))
	assert.Equal(t, []string{"a:x", "b:x"}, got)

	unsubA()
	unsubA()
	assert.Equal(t, 1, bus.HandlerCount(events.FieldChanged))

	got = nil
	require.NoError(t, bus.Publish(context.Background(), events.FieldChanged, "y"))
	assert.Equal(t, []string{"b:y"}, got)

	bus.Clear()
	assert.Zero(t, bus.HandlerCount(events.FieldChanged))
}

func TestEventBus_HandlerError(t *testing.T) {
	bus := NewEventBus()
	boom := stderrors.New("boom")
	bus.Subscribe(events.RecordSubmitted, func(context.Context, interface{}) error { return boom })

	err := bus.Publish(context.Background(), events.RecordSubmitted, nil)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, bus.Publish(context.Background(), events.EntitySelected, nil))
}
