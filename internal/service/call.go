package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// PushPayload 已解析的推送/实时信号载荷
//
// 投递、重试和平台注册都属于外部协作方，这里只消费解析结果。
type PushPayload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Type     string `json:"type"`
	CallerID uint   `json:"caller_id"`
	CalleeID uint   `json:"callee_id"`
	Tag      string `json:"tag"`
}

// Profile 展示用的用户资料
type Profile struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// ProfileLookup 用户资料查询接口
type ProfileLookup interface {
	Lookup(ctx context.Context, userID uint) (*Profile, error)
}

// Notifier 本地通知投递接口，镜像推送载荷以保证OS通知与应用内响铃一致
type Notifier interface {
	Notify(ctx context.Context, payload *PushPayload) error
	Dismiss(tag string)
}

// IncomingCall 响铃中的来电
type IncomingCall struct {
	Tag        string    `json:"tag"`
	CallerID   uint      `json:"caller_id"`
	CallerName string    `json:"caller_name"`
	Initials   string    `json:"initials"`
	AvatarURL  string    `json:"avatar_url"`
	StartedAt  time.Time `json:"started_at"`
}

// JoinFunc 接听后的通话房间接入，由外部通话服务提供
type JoinFunc func(ctx context.Context, tag string, callerID uint) error

// CallFlow 来电信号与响铃生命周期
//
// 同一tag的重复信号（推送与实时行变更可能各到一次）只响铃一次。
// 资料缺失回占位名，铃声加载失败静默继续，接听挂断永不被阻塞。
type CallFlow struct {
	profiles  ProfileLookup
	notifier  Notifier
	ringtones *RingtoneService
	join      JoinFunc
	logger    *Logger

	mu     sync.Mutex
	active map[string]*IncomingCall
}

// NewCallFlow 创建来电流程实例
func NewCallFlow(profiles ProfileLookup, notifier Notifier, ringtones *RingtoneService, join JoinFunc, logger *Logger) *CallFlow {
	return &CallFlow{
		profiles:  profiles,
		notifier:  notifier,
		ringtones: ringtones,
		join:      join,
		logger:    logger,
		active:    make(map[string]*IncomingCall),
	}
}

// HandleIncoming 处理一条来电信号
func (f *CallFlow) HandleIncoming(ctx context.Context, payload *PushPayload) {
	f.mu.Lock()
	if _, ringing := f.active[payload.Tag]; ringing {
		f.mu.Unlock()
		f.logger.Debug("duplicate incoming call signal for tag %s, ignoring", payload.Tag)
		return
	}

	call := &IncomingCall{
		Tag:       payload.Tag,
		CallerID:  payload.CallerID,
		StartedAt: time.Now(),
	}
	f.active[payload.Tag] = call
	f.mu.Unlock()

	profile, err := f.profiles.Lookup(ctx, payload.CallerID)
	if err != nil || profile == nil {
		// 资料缺失不中断来电，回退到占位名
		if err != nil {
			f.logger.Warn("failed to look up caller %d: %v", payload.CallerID, err)
		}
		call.CallerName = fmt.Sprintf("用户%d", payload.CallerID)
	} else {
		call.CallerName = profile.Name
		call.AvatarURL = profile.AvatarURL
	}
	call.Initials = initials(call.CallerName)

	f.ringtones.PlayIncoming(ctx, payload.CalleeID)

	if err := f.notifier.Notify(ctx, payload); err != nil {
		f.logger.Warn("failed to raise local notification for call %s: %v", payload.Tag, err)
	}
}

// HandleEnded 对端结束通话，停止响铃并撤下通知
func (f *CallFlow) HandleEnded(tag string) {
	f.dismiss(tag)
}

// Answer 接听：停止铃声、撤下通知并接入通话房间
func (f *CallFlow) Answer(ctx context.Context, tag string) error {
	f.mu.Lock()
	call, ok := f.active[tag]
	if ok {
		delete(f.active, tag)
	}
	f.mu.Unlock()

	if !ok {
		return NewError(ErrNotFound, fmt.Sprintf("no ringing call with tag %s", tag), nil)
	}

	f.ringtones.StopIncoming()
	f.notifier.Dismiss(tag)

	if f.join == nil {
		return nil
	}
	return f.join(ctx, tag, call.CallerID)
}

// Decline 拒接：停止铃声、撤下通知；未知tag为no-op，用户不会卡在响铃态
func (f *CallFlow) Decline(tag string) {
	f.dismiss(tag)
}

// Active 当前响铃中的来电
func (f *CallFlow) Active(tag string) (*IncomingCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call, ok := f.active[tag]
	return call, ok
}

func (f *CallFlow) dismiss(tag string) {
	f.mu.Lock()
	_, ok := f.active[tag]
	if ok {
		delete(f.active, tag)
	}
	f.mu.Unlock()

	if ok {
		f.ringtones.StopIncoming()
	}
	f.notifier.Dismiss(tag)
}

// BindEvents 把来电流程挂到事件总线上
func (f *CallFlow) BindEvents(bus *EventBus) {
	bus.Subscribe(EventTypeIncomingCall, func(ctx context.Context, event *Event) error {
		f.HandleIncoming(ctx, payloadFromEvent(event))
		return nil
	})
	bus.Subscribe(EventTypeCallEnded, func(ctx context.Context, event *Event) error {
		if tag, ok := event.Data["tag"].(string); ok {
			f.HandleEnded(tag)
		}
		return nil
	})
}

// payloadFromEvent 从事件数据还原推送载荷
func payloadFromEvent(event *Event) *PushPayload {
	payload := &PushPayload{Type: string(event.Type)}
	if v, ok := event.Data["title"].(string); ok {
		payload.Title = v
	}
	if v, ok := event.Data["body"].(string); ok {
		payload.Body = v
	}
	if v, ok := event.Data["tag"].(string); ok {
		payload.Tag = v
	}
	if v, ok := event.Data["caller_id"].(float64); ok {
		payload.CallerID = uint(v)
	}
	if v, ok := event.Data["callee_id"].(float64); ok {
		payload.CalleeID = uint(v)
	}
	return payload
}

// initials 取姓名前两个字符作为占位头像缩写
func initials(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) == 0 {
		return "?"
	}
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return string(runes)
}
