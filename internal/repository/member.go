package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"familytree_go/internal/model"
)

// MemberRepository 家族成员持久化，实现graph.Persister
type MemberRepository struct {
	db *DB
}

// NewMemberRepository 创建成员仓储实例
func NewMemberRepository(db *DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// ListMembers 按拥有者加载全部成员
func (r *MemberRepository) ListMembers(ctx context.Context, ownerID uint) ([]model.Member, error) {
	var members []model.Member
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to list members: %v", err)
	}
	return members, nil
}

// GetMember 按id查找成员
func (r *MemberRepository) GetMember(ctx context.Context, id uint) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get member %d: %v", id, err)
	}
	return &member, nil
}

// CreateMember 创建成员记录
func (r *MemberRepository) CreateMember(ctx context.Context, m *model.Member) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create member: %v", err)
	}
	return nil
}

// SaveMember 保存成员全部字段
func (r *MemberRepository) SaveMember(ctx context.Context, m *model.Member) error {
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("failed to save member %d: %v", m.ID, err)
	}
	return nil
}

// SavePosition 仅保存布局位置，拖动期间高频调用
func (r *MemberRepository) SavePosition(ctx context.Context, id uint, x, y float64) error {
	err := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"pos_x": x, "pos_y": y}).Error
	if err != nil {
		return fmt.Errorf("failed to save position of member %d: %v", id, err)
	}
	return nil
}

// CommitChanges 在单个事务内保存与删除成员
//
// 合并确认和节点删除的原子性边界：任一步失败则整体回滚，
// 调用方内存状态只在本方法成功返回后才更新。
func (r *MemberRepository) CommitChanges(ctx context.Context, updated []*model.Member, deleteIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range updated {
			if err := tx.Save(m).Error; err != nil {
				return fmt.Errorf("failed to save member %d: %v", m.ID, err)
			}
		}
		if len(deleteIDs) > 0 {
			if err := tx.Delete(&model.Member{}, deleteIDs).Error; err != nil {
				return fmt.Errorf("failed to delete members %v: %v", deleteIDs, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit changes transaction failed: %v", err)
	}
	return nil
}
