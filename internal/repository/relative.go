package repository

import (
	"context"
	"fmt"

	"familytree_go/internal/model"
)

// RelativeRepository 个人亲属记录持久化
type RelativeRepository struct {
	db *DB
}

// NewRelativeRepository 创建亲属仓储实例
func NewRelativeRepository(db *DB) *RelativeRepository {
	return &RelativeRepository{db: db}
}

// ListByUser 列出用户的全部亲属记录
func (r *RelativeRepository) ListByUser(ctx context.Context, userID uint) ([]model.Relative, error) {
	var relatives []model.Relative
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&relatives).Error; err != nil {
		return nil, fmt.Errorf("failed to list relatives: %v", err)
	}
	return relatives, nil
}

// Create 创建亲属记录
func (r *RelativeRepository) Create(ctx context.Context, relative *model.Relative) error {
	if err := r.db.WithContext(ctx).Create(relative).Error; err != nil {
		return fmt.Errorf("failed to create relative: %v", err)
	}
	return nil
}

// Update 更新亲属记录
func (r *RelativeRepository) Update(ctx context.Context, relative *model.Relative) error {
	if err := r.db.WithContext(ctx).Save(relative).Error; err != nil {
		return fmt.Errorf("failed to update relative %d: %v", relative.ID, err)
	}
	return nil
}

// Delete 删除用户名下的亲属记录
func (r *RelativeRepository) Delete(ctx context.Context, userID, id uint) error {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Relative{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete relative %d: %v", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("relative %d not found", id)
	}
	return nil
}
