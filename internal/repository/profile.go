package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"familytree_go/internal/model"
	"familytree_go/internal/service"
)

// 资料缓存过期时间
const profileCacheTTL = 5 * time.Minute

// ProfileRepository 用户资料查询，实现service.ProfileLookup
//
// 来电流程里资料查询在响铃路径上，加一层进程内缓存避免重复信号反复打库。
type ProfileRepository struct {
	db    *DB
	cache *service.Cache
}

// NewProfileRepository 创建资料仓储实例
func NewProfileRepository(db *DB, cache *service.Cache) *ProfileRepository {
	return &ProfileRepository{db: db, cache: cache}
}

// Lookup 按用户id解析展示资料，不存在时返回nil
func (r *ProfileRepository) Lookup(ctx context.Context, userID uint) (*service.Profile, error) {
	key := fmt.Sprintf("profile:%d", userID)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			if profile, ok := cached.(*service.Profile); ok {
				return profile, nil
			}
		}
	}

	var user model.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up user %d: %v", userID, err)
	}

	profile := &service.Profile{Name: user.Username, AvatarURL: user.AvatarURL}
	if r.cache != nil {
		r.cache.Set(key, profile, profileCacheTTL)
	}
	return profile, nil
}
