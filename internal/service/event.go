package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	EventTypeIncomingCall EventType = "incoming_call" // 来电信号
	EventTypeCallEnded    EventType = "call_ended"    // 通话结束信号
	EventTypeNotify       EventType = "notify"        // 本地通知投递
)

// Event 事件
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
}

// EventHandler 事件处理器
type EventHandler func(ctx context.Context, event *Event) error

// EventBus 进程内事件总线
//
// 同步分发，处理器错误只记日志不中断其他处理器。
type EventBus struct {
	logger   *Logger
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewEventBus 创建事件总线实例
func NewEventBus(logger *Logger) *EventBus {
	return &EventBus{
		logger:   logger,
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe 订阅事件
func (b *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish 发布事件
func (b *EventBus) Publish(ctx context.Context, event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error("event handler failed for %s event %s: %v", event.Type, event.ID, err)
		}
	}
}

// RedisBridge redis pub/sub桥接
//
// 外部投递的实时信号（来电、通话结束）经由redis频道进入事件总线。
type RedisBridge struct {
	client  *redis.Client
	bus     *EventBus
	channel string
	logger  *Logger
}

// NewRedisBridge 创建桥接实例
func NewRedisBridge(client *redis.Client, bus *EventBus, channel string, logger *Logger) *RedisBridge {
	return &RedisBridge{client: client, bus: bus, channel: channel, logger: logger}
}

// Run 订阅redis频道并转发到事件总线，阻塞直到上下文取消
func (rb *RedisBridge) Run(ctx context.Context) error {
	pubsub := rb.client.Subscribe(ctx, rb.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				rb.logger.Warn("dropping malformed realtime message on %s: %v", rb.channel, err)
				continue
			}
			rb.bus.Publish(ctx, &event)
		}
	}
}
