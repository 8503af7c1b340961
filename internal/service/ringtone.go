package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"familytree_go/internal/model"
)

// Ringtone 内置铃声
type Ringtone struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Asset string `json:"asset"`
}

// DefaultRingtones 内置铃声目录
var DefaultRingtones = []Ringtone{
	{ID: "classic", Name: "经典", Asset: "ringtones/classic.mp3"},
	{ID: "chime", Name: "风铃", Asset: "ringtones/chime.mp3"},
	{ID: "melody", Name: "旋律", Asset: "ringtones/melody.mp3"},
}

const (
	maxCustomRingtoneSize = 2 << 20 // 自定义铃声大小上限2MB
	previewDuration       = 3 * time.Second
	ringtoneCacheTTL      = 5 * time.Minute
)

// RingtonePlayer 铃声播放能力接口，由平台层实现
type RingtonePlayer interface {
	Play(asset string) error
	Stop()
}

// RingtonePrefStore 铃声偏好持久化接口
type RingtonePrefStore interface {
	GetSetting(ctx context.Context, userID uint) (*model.RingtoneSetting, error)
	SaveSetting(ctx context.Context, setting *model.RingtoneSetting) error
}

// RingtoneService 铃声偏好与试听
//
// 同一时间至多一个试听实例：开始新的试听先停掉旧的，
// 未手动停止时3秒后自动停止。
type RingtoneService struct {
	prefs  RingtonePrefStore
	cache  *Cache
	player RingtonePlayer
	upload *UploadService
	logger *Logger

	mu           sync.Mutex
	previewTimer *time.Timer
	previewDur   time.Duration
}

// NewRingtoneService 创建铃声服务实例
func NewRingtoneService(prefs RingtonePrefStore, cache *Cache, player RingtonePlayer, upload *UploadService, logger *Logger) *RingtoneService {
	return &RingtoneService{
		prefs:      prefs,
		cache:      cache,
		player:     player,
		upload:     upload,
		logger:     logger,
		previewDur: previewDuration,
	}
}

// Catalog 内置铃声目录
func (s *RingtoneService) Catalog() []Ringtone {
	return DefaultRingtones
}

// Preference 获取用户铃声偏好，无记录时回默认铃声
func (s *RingtoneService) Preference(ctx context.Context, userID uint) *model.RingtoneSetting {
	key := fmt.Sprintf("ringtone:%d", userID)
	if cached, ok := s.cache.Get(key); ok {
		if setting, ok := cached.(*model.RingtoneSetting); ok {
			return setting
		}
	}

	setting, err := s.prefs.GetSetting(ctx, userID)
	if err != nil || setting == nil {
		// 偏好缺失或读取失败都回默认，不打断来电流程
		if err != nil {
			s.logger.Warn("failed to load ringtone preference for user %d: %v", userID, err)
		}
		setting = &model.RingtoneSetting{UserID: userID, RingtoneID: DefaultRingtones[0].ID}
	}

	s.cache.Set(key, setting, ringtoneCacheTTL)
	return setting
}

// SetPreference 设置内置铃声偏好
func (s *RingtoneService) SetPreference(ctx context.Context, userID uint, ringtoneID string) error {
	if findRingtone(ringtoneID) == nil {
		return NewError(ErrInvalidInput, fmt.Sprintf("unknown ringtone %q", ringtoneID), nil)
	}

	setting, err := s.prefs.GetSetting(ctx, userID)
	if err != nil || setting == nil {
		setting = &model.RingtoneSetting{UserID: userID}
	}
	setting.RingtoneID = ringtoneID
	setting.CustomURL = ""

	if err := s.prefs.SaveSetting(ctx, setting); err != nil {
		return NewError(ErrDatabase, "failed to save ringtone preference", err)
	}
	s.cache.Delete(fmt.Sprintf("ringtone:%d", userID))
	return nil
}

// SetCustomRingtone 上传用户自定义铃声并设为偏好，大小受限
func (s *RingtoneService) SetCustomRingtone(ctx context.Context, userID uint, data []byte, ext string) error {
	if len(data) > maxCustomRingtoneSize {
		return NewError(ErrInvalidInput, "custom ringtone exceeds the 2MB limit", nil)
	}

	url, err := s.upload.UploadToR2(ctx, data, fmt.Sprintf("ringtones/%d", userID), "", ext, "audio/mpeg")
	if err != nil {
		return err
	}

	setting, gerr := s.prefs.GetSetting(ctx, userID)
	if gerr != nil || setting == nil {
		setting = &model.RingtoneSetting{UserID: userID, RingtoneID: DefaultRingtones[0].ID}
	}
	setting.CustomURL = url

	if err := s.prefs.SaveSetting(ctx, setting); err != nil {
		return NewError(ErrDatabase, "failed to save ringtone preference", err)
	}
	s.cache.Delete(fmt.Sprintf("ringtone:%d", userID))
	return nil
}

// AssetFor 解析用户当前生效的铃声资源
func (s *RingtoneService) AssetFor(ctx context.Context, userID uint) string {
	setting := s.Preference(ctx, userID)
	if setting.CustomURL != "" {
		return setting.CustomURL
	}
	if rt := findRingtone(setting.RingtoneID); rt != nil {
		return rt.Asset
	}
	return DefaultRingtones[0].Asset
}

// Preview 试听铃声：先停掉正在进行的试听，超时自动停止
func (s *RingtoneService) Preview(asset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.player.Stop()
	if s.previewTimer != nil {
		s.previewTimer.Stop()
	}

	if err := s.player.Play(asset); err != nil {
		return NewError(ErrEncodeFailed, fmt.Sprintf("failed to play ringtone %q", asset), err)
	}

	s.previewTimer = time.AfterFunc(s.previewDur, s.StopPreview)
	return nil
}

// StopPreview 停止试听
func (s *RingtoneService) StopPreview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.previewTimer != nil {
		s.previewTimer.Stop()
		s.previewTimer = nil
	}
	s.player.Stop()
}

// PlayIncoming 播放来电铃声；资源加载失败只记日志，不阻塞接听挂断
func (s *RingtoneService) PlayIncoming(ctx context.Context, userID uint) {
	asset := s.AssetFor(ctx, userID)
	if err := s.player.Play(asset); err != nil {
		s.logger.Warn("failed to play incoming ringtone %q, continuing silently: %v", asset, err)
	}
}

// StopIncoming 停止来电铃声
func (s *RingtoneService) StopIncoming() {
	s.player.Stop()
}

func findRingtone(id string) *Ringtone {
	for i := range DefaultRingtones {
		if DefaultRingtones[i].ID == id {
			return &DefaultRingtones[i]
		}
	}
	return nil
}
