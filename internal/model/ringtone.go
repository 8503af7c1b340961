package model

import (
	"gorm.io/gorm"
)

// RingtoneSetting 用户来电铃声偏好
//
// RingtoneID 为内置铃声目录中的编号；CustomURL 非空时优先使用用户上传的铃声。
type RingtoneSetting struct {
	gorm.Model
	UserID     uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	RingtoneID string `gorm:"size:50;not null;default:'classic'" json:"ringtone_id"`
	CustomURL  string `gorm:"size:500" json:"custom_url,omitempty"`
}

// TableName 指定表名
func (RingtoneSetting) TableName() string {
	return "ringtone_settings"
}
