package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"familytree_go/internal/model"
	"familytree_go/internal/service"
)

// Persister 图谱持久化接口，由repository层实现
type Persister interface {
	ListMembers(ctx context.Context, ownerID uint) ([]model.Member, error)
	CreateMember(ctx context.Context, m *model.Member) error
	SaveMember(ctx context.Context, m *model.Member) error
	SavePosition(ctx context.Context, id uint, x, y float64) error
	// CommitChanges 在单个事务内保存若干成员并删除若干成员，
	// 任一步失败则整体回滚。合并确认和节点删除都走这条路径。
	CommitChanges(ctx context.Context, updated []*model.Member, deleteIDs []uint) error
}

// 节点布局常量，逻辑单位
const (
	NodeWidth  = 80.0
	NodeHeight = 80.0

	generationGap = 160.0 // 相邻辈分的纵向间距
	spouseGap     = 200.0 // 配偶节点的横向间距
)

// Store 家族图谱内存存储
//
// 以单个拥有者为范围加载全部成员，编辑操作先改内存再持久化；
// 合并确认例外：先持久化成功再应用到内存（见merge.go）。
type Store struct {
	ownerID   uint
	persister Persister
	logger    *service.Logger
	mu        sync.RWMutex
	members   map[uint]*model.Member
}

// NewStore 创建图谱存储实例
func NewStore(ownerID uint, persister Persister, logger *service.Logger) *Store {
	return &Store{
		ownerID:   ownerID,
		persister: persister,
		logger:    logger,
		members:   make(map[uint]*model.Member),
	}
}

// Load 从持久层加载图谱并修复不对称的配偶关系
func (s *Store) Load(ctx context.Context) error {
	list, err := s.persister.ListMembers(ctx, s.ownerID)
	if err != nil {
		return service.NewError(service.ErrDatabase, "failed to load family graph", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.members = make(map[uint]*model.Member, len(list))
	for i := range list {
		m := list[i]
		s.members[m.ID] = &m
	}

	s.repairSpouseLinks(ctx)
	return nil
}

// repairSpouseLinks 修复不对称的SpouseID
//
// A.SpouseID=B 而 B.SpouseID≠A 时，以UpdatedAt较新的一方为准：
// A较新则补写B的回指，否则清除A的指向。悬空指向一律清除。
func (s *Store) repairSpouseLinks(ctx context.Context) {
	var dirty []*model.Member

	for _, m := range s.members {
		if m.SpouseID == nil {
			continue
		}
		spouse, ok := s.members[*m.SpouseID]
		if !ok {
			s.logger.Warn("member %d has dangling spouse reference %d, clearing", m.ID, *m.SpouseID)
			m.SpouseID = nil
			dirty = append(dirty, m)
			continue
		}
		if spouse.SpouseID != nil && *spouse.SpouseID == m.ID {
			continue
		}
		if m.UpdatedAt.After(spouse.UpdatedAt) {
			s.logger.Warn("asymmetric spouse link %d->%d, restoring back reference", m.ID, spouse.ID)
			id := m.ID
			spouse.SpouseID = &id
			dirty = append(dirty, spouse)
		} else {
			s.logger.Warn("asymmetric spouse link %d->%d, clearing stale side", m.ID, spouse.ID)
			m.SpouseID = nil
			dirty = append(dirty, m)
		}
	}

	for _, m := range dirty {
		if err := s.persister.SaveMember(ctx, m); err != nil {
			s.logger.Error("failed to persist spouse repair for member %d: %v", m.ID, err)
		}
	}
}

// Get 按id查找成员
func (s *Store) Get(id uint) (*model.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	return m, ok
}

// Members 返回全部成员快照，按id排序
func (s *Store) Members() []*model.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Member, 0, len(s.members))
	for _, m := range s.members {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Len 成员数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// AddRoot 创建不依附任何锚点的成员，作为图谱的起始节点
func (s *Store) AddRoot(ctx context.Context, draft *model.Member) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft.OwnerID = s.ownerID
	if err := s.persister.CreateMember(ctx, draft); err != nil {
		return nil, service.NewError(service.ErrDatabase, "failed to create member", err)
	}

	s.members[draft.ID] = draft
	return draft, nil
}

// AddParent 为锚点成员添加父/母节点
func (s *Store) AddParent(ctx context.Context, anchorID uint, draft *model.Member) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, ok := s.members[anchorID]
	if !ok {
		return nil, service.NewError(service.ErrNotFound, fmt.Sprintf("member %d not found", anchorID), nil)
	}

	draft.OwnerID = s.ownerID
	draft.ChildrenIDs = appendUnique(draft.ChildrenIDs, anchorID)
	draft.PosX = anchor.PosX
	draft.PosY = anchor.PosY - generationGap
	if err := s.persister.CreateMember(ctx, draft); err != nil {
		return nil, service.NewError(service.ErrDatabase, "failed to create parent member", err)
	}

	anchor.ParentIDs = appendUnique(anchor.ParentIDs, draft.ID)
	if err := s.persister.SaveMember(ctx, anchor); err != nil {
		return nil, service.NewError(service.ErrDatabase, "failed to link parent member", err)
	}

	s.members[draft.ID] = draft
	return draft, nil
}

// AddSpouse 为锚点成员添加配偶节点，双向写入配偶关系
func (s *Store) AddSpouse(ctx context.Context, anchorID uint, draft *model.Member) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, ok := s.members[anchorID]
	if !ok {
		return nil, service.NewError(service.ErrNotFound, fmt.Sprintf("member %d not found", anchorID), nil)
	}
	if anchor.SpouseID != nil {
		return nil, service.NewError(service.ErrInvalidInput, fmt.Sprintf("member %d already has a spouse", anchorID), nil)
	}

	draft.OwnerID = s.ownerID
	anchorIDCopy := anchorID
	draft.SpouseID = &anchorIDCopy
	// 男左女右的布局约定，夫妻连线依赖这个方向
	if draft.Gender == model.GenderMale {
		draft.PosX = anchor.PosX - spouseGap
	} else {
		draft.PosX = anchor.PosX + spouseGap
	}
	draft.PosY = anchor.PosY
	if err := s.persister.CreateMember(ctx, draft); err != nil {
		return nil, service.NewError(service.ErrDatabase, "failed to create spouse member", err)
	}

	draftID := draft.ID
	anchor.SpouseID = &draftID
	if err := s.persister.SaveMember(ctx, anchor); err != nil {
		return nil, service.NewError(service.ErrDatabase, "failed to link spouse member", err)
	}

	s.members[draft.ID] = draft
	return draft, nil
}

// AddChild 为锚点成员添加子女节点，配偶在场时同时记为另一位家长
func (s *Store) AddChild(ctx context.Context, anchorID uint, draft *model.Member) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, ok := s.members[anchorID]
	if !ok {
		return nil, service.NewError(service.ErrNotFound, fmt.Sprintf("member %d not found", anchorID), nil)
	}

	parents := []*model.Member{anchor}
	if anchor.SpouseID != nil {
		if spouse, ok := s.members[*anchor.SpouseID]; ok {
			parents = append(parents, spouse)
		}
	}

	draft.OwnerID = s.ownerID
	for _, p := range parents {
		draft.ParentIDs = appendUnique(draft.ParentIDs, p.ID)
	}
	draft.PosX = anchor.PosX
	draft.PosY = anchor.PosY + generationGap
	if err := s.persister.CreateMember(ctx, draft); err != nil {
		return nil, service.NewError(service.ErrDatabase, "failed to create child member", err)
	}

	for _, p := range parents {
		p.ChildrenIDs = appendUnique(p.ChildrenIDs, draft.ID)
		if err := s.persister.SaveMember(ctx, p); err != nil {
			return nil, service.NewError(service.ErrDatabase, "failed to link child member", err)
		}
	}

	s.members[draft.ID] = draft
	return draft, nil
}

// Move 将成员移动到指定位置
func (s *Store) Move(ctx context.Context, id uint, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return service.NewError(service.ErrNotFound, fmt.Sprintf("member %d not found", id), nil)
	}

	m.PosX = x
	m.PosY = y
	if err := s.persister.SavePosition(ctx, id, x, y); err != nil {
		return service.NewError(service.ErrDatabase, "failed to save position", err)
	}
	return nil
}

// MoveBy 按位移拖动成员；配偶对处于锁定状态时配偶同步平移
//
// 返回实际移动的成员id列表。
func (s *Store) MoveBy(ctx context.Context, id uint, dx, dy float64, locks *SpouseLock) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return nil, service.NewError(service.ErrNotFound, fmt.Sprintf("member %d not found", id), nil)
	}

	moved := []*model.Member{m}
	if locks != nil {
		if spouseID := locks.GetLockedSpouseID(m.ID, m.SpouseID); spouseID != nil {
			if spouse, ok := s.members[*spouseID]; ok {
				moved = append(moved, spouse)
			}
		}
	}

	var movedIDs []uint
	for _, mm := range moved {
		mm.PosX += dx
		mm.PosY += dy
		if err := s.persister.SavePosition(ctx, mm.ID, mm.PosX, mm.PosY); err != nil {
			return movedIDs, service.NewError(service.ErrDatabase, "failed to save position", err)
		}
		movedIDs = append(movedIDs, mm.ID)
	}
	return movedIDs, nil
}

// Delete 删除成员并清理邻居节点上的悬空引用，整体在一个事务内提交
func (s *Store) Delete(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[id]; !ok {
		return service.NewError(service.ErrNotFound, fmt.Sprintf("member %d not found", id), nil)
	}

	var updated []*model.Member
	for _, m := range s.members {
		if m.ID == id {
			continue
		}
		changed := false
		if m.SpouseID != nil && *m.SpouseID == id {
			m.SpouseID = nil
			changed = true
		}
		if m.HasParent(id) {
			m.ParentIDs = removeID(m.ParentIDs, id)
			changed = true
		}
		if m.HasChild(id) {
			m.ChildrenIDs = removeID(m.ChildrenIDs, id)
			changed = true
		}
		if changed {
			updated = append(updated, m)
		}
	}

	if err := s.persister.CommitChanges(ctx, updated, []uint{id}); err != nil {
		return service.NewError(service.ErrDatabase, "failed to delete member", err)
	}

	delete(s.members, id)
	return nil
}

// applyMerge 将已提交的合并计划应用到内存，只在事务成功后调用
func (s *Store) applyMerge(plan *mergePlan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range plan.updated {
		s.members[m.ID] = m
	}
	for _, id := range plan.deleteIDs {
		delete(s.members, id)
	}
}

func appendUnique(ids []uint, id uint) []uint {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []uint, id uint) []uint {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
