package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisNotifier 经redis频道把本地通知投递给实时层
//
// 通知内容镜像推送载荷，推送延迟或重复时OS通知与应用内响铃保持一致。
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *Logger
}

// NewRedisNotifier 创建通知投递实例
func NewRedisNotifier(client *redis.Client, channel string, logger *Logger) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// Notify 投递本地通知
func (n *RedisNotifier) Notify(ctx context.Context, payload *PushPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %v", err)
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %v", err)
	}
	return nil
}

// Dismiss 撤下指定tag的通知
func (n *RedisNotifier) Dismiss(tag string) {
	data, _ := json.Marshal(map[string]string{"action": "dismiss", "tag": tag})
	if err := n.client.Publish(context.Background(), n.channel, data).Err(); err != nil {
		n.logger.Warn("failed to publish notification dismissal for %s: %v", tag, err)
	}
}

// RedisRingtonePlayer 经redis频道向实时层下发铃声播放/停止指令
type RedisRingtonePlayer struct {
	client  *redis.Client
	channel string
	logger  *Logger
}

// NewRedisRingtonePlayer 创建铃声指令投递实例
func NewRedisRingtonePlayer(client *redis.Client, channel string, logger *Logger) *RedisRingtonePlayer {
	return &RedisRingtonePlayer{client: client, channel: channel, logger: logger}
}

// Play 下发播放指令
func (p *RedisRingtonePlayer) Play(asset string) error {
	data, _ := json.Marshal(map[string]string{"action": "play", "asset": asset})
	if err := p.client.Publish(context.Background(), p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish ringtone play command: %v", err)
	}
	return nil
}

// Stop 下发停止指令
func (p *RedisRingtonePlayer) Stop() {
	data, _ := json.Marshal(map[string]string{"action": "stop"})
	if err := p.client.Publish(context.Background(), p.channel, data).Err(); err != nil {
		p.logger.Warn("failed to publish ringtone stop command: %v", err)
	}
}
