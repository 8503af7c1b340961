package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"familytree_go/internal/model"
	"familytree_go/internal/service"
)

// MergeMode 合并模式状态
type MergeMode int

const (
	MergeModeInactive   MergeMode = iota // 未激活
	MergeModeActive                      // 选择中
	MergeModeConfirming                  // 提交中
)

// MergeSuggestion 疑似重复成员的合并建议，随图谱快照派生、不落库
type MergeSuggestion struct {
	SourceID   uint         `json:"source_id"`
	TargetID   uint         `json:"target_id"`
	SourceName string       `json:"source_name"`
	TargetName string       `json:"target_name"`
	Gender     model.Gender `json:"gender"`
	Reason     string       `json:"reason"`
}

// MergeSession 合并流程状态机
//
// Inactive -> Active(有序选择) -> Confirming -> Inactive。
// 选择顺序即合并语义：首个选中的成员是主节点，其余被吸收后删除。
// 确认前引擎对图谱只读，提交走单个事务，失败整体回滚。
type MergeSession struct {
	store  *Store
	logger *service.Logger

	mu        sync.Mutex
	mode      MergeMode
	selection []uint
}

// NewMergeSession 创建合并会话
func NewMergeSession(store *Store, logger *service.Logger) *MergeSession {
	return &MergeSession{store: store, logger: logger}
}

// Enter 进入合并模式，清空上一轮选择
func (ms *MergeSession) Enter() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.mode = MergeModeActive
	ms.selection = nil
}

// Cancel 退出合并模式，丢弃选择与建议，不触碰图谱
func (ms *MergeSession) Cancel() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.mode == MergeModeConfirming {
		return
	}
	ms.mode = MergeModeInactive
	ms.selection = nil
}

// Mode 当前状态
func (ms *MergeSession) Mode() MergeMode {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.mode
}

// Selection 当前有序选择的副本
func (ms *MergeSession) Selection() []uint {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := make([]uint, len(ms.selection))
	copy(out, ms.selection)
	return out
}

// ToggleSelect 切换成员的选中状态，保持选择顺序
func (ms *MergeSession) ToggleSelect(id uint) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.mode != MergeModeActive {
		return service.NewError(service.ErrInvalidInput, "merge mode is not active", nil)
	}
	if _, ok := ms.store.Get(id); !ok {
		return service.NewError(service.ErrNotFound, fmt.Sprintf("member %d not found", id), nil)
	}

	for i, v := range ms.selection {
		if v == id {
			ms.selection = append(ms.selection[:i], ms.selection[i+1:]...)
			return nil
		}
	}
	ms.selection = append(ms.selection, id)
	return nil
}

// SetPrimary 将已选中的成员显式指定为主节点（移到选择首位）
func (ms *MergeSession) SetPrimary(id uint) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.mode != MergeModeActive {
		return service.NewError(service.ErrInvalidInput, "merge mode is not active", nil)
	}
	for i, v := range ms.selection {
		if v == id {
			ms.selection = append(ms.selection[:i], ms.selection[i+1:]...)
			ms.selection = append([]uint{id}, ms.selection...)
			return nil
		}
	}
	return service.NewError(service.ErrInvalidInput, fmt.Sprintf("member %d is not selected", id), nil)
}

// Suggestions 基于当前选择重新计算合并建议
//
// 对每个已选成员，在未选成员里寻找姓名相近或亲缘上下文一致的候选。
func (ms *MergeSession) Suggestions() []MergeSuggestion {
	ms.mu.Lock()
	if ms.mode != MergeModeActive || len(ms.selection) == 0 {
		ms.mu.Unlock()
		return nil
	}
	selected := make(map[uint]bool, len(ms.selection))
	order := make([]uint, len(ms.selection))
	copy(order, ms.selection)
	for _, id := range ms.selection {
		selected[id] = true
	}
	ms.mu.Unlock()

	members := ms.store.Members()

	var suggestions []MergeSuggestion
	for _, srcID := range order {
		src, ok := ms.store.Get(srcID)
		if !ok {
			continue
		}
		for _, candidate := range members {
			if selected[candidate.ID] {
				continue
			}
			if reason, ok := similarity(src, candidate); ok {
				suggestions = append(suggestions, MergeSuggestion{
					SourceID:   src.ID,
					TargetID:   candidate.ID,
					SourceName: src.Name,
					TargetName: candidate.Name,
					Gender:     src.Gender,
					Reason:     reason,
				})
			}
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].SourceID != suggestions[j].SourceID {
			return suggestions[i].SourceID < suggestions[j].SourceID
		}
		return suggestions[i].TargetID < suggestions[j].TargetID
	})
	return suggestions
}

// Confirm 提交合并
//
// 选择不足两人时拒绝且不做任何修改；提交期间重复调用被忽略。
// 先在内存里构建完整合并计划，再通过持久层单事务提交，
// 成功后才应用到内存图谱，保证读者不会看到半合并状态。
func (ms *MergeSession) Confirm(ctx context.Context) error {
	ms.mu.Lock()
	if ms.mode == MergeModeConfirming {
		ms.mu.Unlock()
		return nil
	}
	if ms.mode != MergeModeActive {
		ms.mu.Unlock()
		return service.NewError(service.ErrInvalidInput, "merge mode is not active", nil)
	}
	if len(ms.selection) < 2 {
		ms.mu.Unlock()
		return service.NewError(service.ErrInvalidSelection, "merge requires at least two selected members", nil)
	}
	selection := make([]uint, len(ms.selection))
	copy(selection, ms.selection)
	ms.mode = MergeModeConfirming
	ms.mu.Unlock()

	plan, err := ms.buildPlan(selection)
	if err != nil {
		ms.setMode(MergeModeActive)
		return err
	}

	if err := ms.store.persister.CommitChanges(ctx, plan.updated, plan.deleteIDs); err != nil {
		ms.setMode(MergeModeActive)
		return service.NewError(service.ErrDatabase, "merge transaction failed, nothing applied", err)
	}

	ms.store.applyMerge(plan)
	ms.logger.Info("merged %d members into %d", len(selection), selection[0])

	ms.mu.Lock()
	ms.mode = MergeModeInactive
	ms.selection = nil
	ms.mu.Unlock()
	return nil
}

// ApplySuggestion 应用一条建议：等价于选中两个成员后确认
func (ms *MergeSession) ApplySuggestion(ctx context.Context, s MergeSuggestion) error {
	ms.mu.Lock()
	if ms.mode != MergeModeActive {
		ms.mu.Unlock()
		return service.NewError(service.ErrInvalidInput, "merge mode is not active", nil)
	}
	ms.ensureSelectedLocked(s.SourceID)
	ms.ensureSelectedLocked(s.TargetID)
	ms.mu.Unlock()

	return ms.Confirm(ctx)
}

func (ms *MergeSession) ensureSelectedLocked(id uint) {
	for _, v := range ms.selection {
		if v == id {
			return
		}
	}
	ms.selection = append(ms.selection, id)
}

func (ms *MergeSession) setMode(mode MergeMode) {
	ms.mu.Lock()
	ms.mode = mode
	ms.mu.Unlock()
}

// mergePlan 暂存的合并计划：主节点与被改写邻居的新副本，以及待删除id
type mergePlan struct {
	updated   []*model.Member
	deleteIDs []uint
}

// buildPlan 在成员副本上构建合并计划，构建过程不修改图谱
func (ms *MergeSession) buildPlan(selection []uint) (*mergePlan, error) {
	ms.store.mu.RLock()
	defer ms.store.mu.RUnlock()

	primaryID := selection[0]
	selected := make(map[uint]bool, len(selection))
	for _, id := range selection {
		selected[id] = true
	}

	src, ok := ms.store.members[primaryID]
	if !ok {
		return nil, service.NewError(service.ErrNotFound, fmt.Sprintf("member %d not found", primaryID), nil)
	}
	primary := cloneMember(src)

	// 主节点吸收所有被选成员的亲缘边，去重并剔除自引用
	var parentUnion, childUnion []uint
	var spouseID *uint
	for _, id := range selection {
		m, ok := ms.store.members[id]
		if !ok {
			return nil, service.NewError(service.ErrNotFound, fmt.Sprintf("member %d not found", id), nil)
		}
		for _, pid := range m.ParentIDs {
			if !selected[pid] {
				parentUnion = appendUnique(parentUnion, pid)
			}
		}
		for _, cid := range m.ChildrenIDs {
			if !selected[cid] {
				childUnion = appendUnique(childUnion, cid)
			}
		}
		// 被选成员自己的配偶指向选择内部时在合并后成为自引用，丢弃
		if spouseID == nil && m.SpouseID != nil && !selected[*m.SpouseID] {
			sid := *m.SpouseID
			spouseID = &sid
		}
	}
	primary.ParentIDs = parentUnion
	primary.ChildrenIDs = childUnion
	primary.SpouseID = spouseID

	updated := map[uint]*model.Member{primary.ID: primary}

	// 改写第三方成员指向被吸收节点的边
	for _, m := range ms.store.members {
		if selected[m.ID] {
			continue
		}

		clone := cloneMember(m)
		changed := false

		clone.ParentIDs, changed = rewriteIDs(clone.ParentIDs, selected, primaryID, clone.ID, changed)
		clone.ChildrenIDs, changed = rewriteIDs(clone.ChildrenIDs, selected, primaryID, clone.ID, changed)

		if clone.SpouseID != nil && selected[*clone.SpouseID] {
			if spouseID != nil && *spouseID == clone.ID {
				// 主节点最终配偶，保持对称回指
				pid := primaryID
				clone.SpouseID = &pid
			} else {
				// 多个配偶竞争同一主节点时只保留第一个，其余清除
				ms.logger.Warn("clearing spouse link of member %d absorbed by merge into %d", clone.ID, primaryID)
				clone.SpouseID = nil
			}
			changed = true
		}

		if changed {
			updated[clone.ID] = clone
		}
	}

	// 主节点配偶未受改写触发时也要保证回指
	if spouseID != nil {
		if _, done := updated[*spouseID]; !done {
			if spouse, ok := ms.store.members[*spouseID]; ok {
				clone := cloneMember(spouse)
				pid := primaryID
				clone.SpouseID = &pid
				updated[clone.ID] = clone
			}
		}
	}

	plan := &mergePlan{deleteIDs: selection[1:]}
	for _, m := range updated {
		plan.updated = append(plan.updated, m)
	}
	sort.Slice(plan.updated, func(i, j int) bool { return plan.updated[i].ID < plan.updated[j].ID })
	return plan, nil
}

// rewriteIDs 将指向被吸收节点的id改写为主节点id，去重并剔除自引用
func rewriteIDs(ids []uint, selected map[uint]bool, primaryID, selfID uint, changed bool) ([]uint, bool) {
	var out []uint
	for _, id := range ids {
		if selected[id] {
			id = primaryID
			changed = true
		}
		if id == selfID {
			continue
		}
		out = appendUnique(out, id)
	}
	if len(out) != len(ids) {
		changed = true
	}
	return out, changed
}

func cloneMember(m *model.Member) *model.Member {
	clone := *m
	clone.ParentIDs = append([]uint(nil), m.ParentIDs...)
	clone.ChildrenIDs = append([]uint(nil), m.ChildrenIDs...)
	if m.SpouseID != nil {
		id := *m.SpouseID
		clone.SpouseID = &id
	}
	return &clone
}

// similarity 判断两个成员是否疑似同一人，返回展示给用户的原因
func similarity(a, b *model.Member) (string, bool) {
	if a.Gender != b.Gender {
		return "", false
	}

	var reasons []string

	na := strings.ToLower(strings.TrimSpace(a.Name))
	nb := strings.ToLower(strings.TrimSpace(b.Name))
	switch {
	case na != "" && na == nb:
		reasons = append(reasons, "姓名相同")
	case na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na) || levenshtein(na, nb) <= 2):
		reasons = append(reasons, "姓名相近")
	}

	if len(a.ParentIDs) > 0 && sameIDSet(a.ParentIDs, b.ParentIDs) {
		reasons = append(reasons, "父母相同")
	}

	if len(reasons) == 0 {
		return "", false
	}
	return strings.Join(reasons, "，"), true
}

func sameIDSet(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uint]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}

// levenshtein 按rune计算编辑距离
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
