package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"familytree_go/internal/model"
)

// RingtoneRepository 铃声偏好持久化，实现service.RingtonePrefStore
type RingtoneRepository struct {
	db *DB
}

// NewRingtoneRepository 创建铃声仓储实例
func NewRingtoneRepository(db *DB) *RingtoneRepository {
	return &RingtoneRepository{db: db}
}

// GetSetting 读取用户铃声偏好，无记录时返回nil
func (r *RingtoneRepository) GetSetting(ctx context.Context, userID uint) (*model.RingtoneSetting, error) {
	var setting model.RingtoneSetting
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ringtone setting for user %d: %v", userID, err)
	}
	return &setting, nil
}

// SaveSetting 保存用户铃声偏好
func (r *RingtoneRepository) SaveSetting(ctx context.Context, setting *model.RingtoneSetting) error {
	if err := r.db.WithContext(ctx).Save(setting).Error; err != nil {
		return fmt.Errorf("failed to save ringtone setting for user %d: %v", setting.UserID, err)
	}
	return nil
}
