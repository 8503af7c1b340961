package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusDispatchesToAllHandlers(t *testing.T) {
	bus := NewEventBus(uploadLogger())

	var order []string
	bus.Subscribe(EventTypeNotify, func(ctx context.Context, e *Event) error {
		order = append(order, "first")
		return errors.New("handler blew up")
	})
	bus.Subscribe(EventTypeNotify, func(ctx context.Context, e *Event) error {
		order = append(order, "second")
		return nil
	})

	bus.Publish(context.Background(), &Event{Type: EventTypeNotify})

	// 处理器错误只记日志，不中断后续处理器
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEventBusFillsIdentity(t *testing.T) {
	bus := NewEventBus(uploadLogger())

	var got *Event
	bus.Subscribe(EventTypeNotify, func(ctx context.Context, e *Event) error {
		got = e
		return nil
	})

	bus.Publish(context.Background(), &Event{Type: EventTypeNotify})

	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestEventBusIgnoresUnsubscribedTypes(t *testing.T) {
	bus := NewEventBus(uploadLogger())

	called := false
	bus.Subscribe(EventTypeIncomingCall, func(ctx context.Context, e *Event) error {
		called = true
		return nil
	})

	bus.Publish(context.Background(), &Event{Type: EventTypeCallEnded})
	assert.False(t, called)
}
