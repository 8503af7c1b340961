package graph

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"familytree_go/internal/model"
	"familytree_go/internal/service"
)

// memPersister 测试用内存持久层
type memPersister struct {
	mu         sync.Mutex
	nextID     uint
	members    map[uint]model.Member
	commits    int
	failCommit bool
}

func newMemPersister(seed ...model.Member) *memPersister {
	p := &memPersister{members: make(map[uint]model.Member)}
	for _, m := range seed {
		p.members[m.ID] = m
		if m.ID > p.nextID {
			p.nextID = m.ID
		}
	}
	return p
}

func (p *memPersister) ListMembers(ctx context.Context, ownerID uint) ([]model.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var list []model.Member
	for _, m := range p.members {
		if m.OwnerID == ownerID {
			list = append(list, m)
		}
	}
	return list, nil
}

func (p *memPersister) CreateMember(ctx context.Context, m *model.Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	m.ID = p.nextID
	p.members[m.ID] = *m
	return nil
}

func (p *memPersister) SaveMember(ctx context.Context, m *model.Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[m.ID] = *m
	return nil
}

func (p *memPersister) SavePosition(ctx context.Context, id uint, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.members[id]
	m.PosX, m.PosY = x, y
	p.members[id] = m
	return nil
}

func (p *memPersister) CommitChanges(ctx context.Context, updated []*model.Member, deleteIDs []uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCommit {
		return errors.New("commit failed")
	}
	for _, m := range updated {
		p.members[m.ID] = *m
	}
	for _, id := range deleteIDs {
		delete(p.members, id)
	}
	p.commits++
	return nil
}

func testLogger() *service.Logger {
	return service.NewLogger(&service.LoggerConfig{Level: service.LogLevelFatal, Output: io.Discard})
}

func seedMember(id uint, name string, gender model.Gender) model.Member {
	return model.Member{
		Model:   gorm.Model{ID: id, UpdatedAt: time.Now()},
		OwnerID: 1,
		Name:    name,
		Gender:  gender,
	}
}

func loadStore(t *testing.T, p *memPersister) *Store {
	t.Helper()
	store := NewStore(1, p, testLogger())
	require.NoError(t, store.Load(context.Background()))
	return store
}

func TestAddSpouseSymmetric(t *testing.T) {
	p := newMemPersister(seedMember(1, "张伟", model.GenderMale))
	store := loadStore(t, p)

	spouse, err := store.AddSpouse(context.Background(), 1, &model.Member{Name: "李娜", Gender: model.GenderFemale})
	require.NoError(t, err)

	anchor, ok := store.Get(1)
	require.True(t, ok)
	require.NotNil(t, anchor.SpouseID)
	require.NotNil(t, spouse.SpouseID)
	assert.Equal(t, spouse.ID, *anchor.SpouseID)
	assert.Equal(t, anchor.ID, *spouse.SpouseID)

	// 女方布局在右侧
	assert.Greater(t, spouse.PosX, anchor.PosX)
}

func TestAddSpouseMalePositionedLeft(t *testing.T) {
	p := newMemPersister(seedMember(1, "李娜", model.GenderFemale))
	store := loadStore(t, p)

	spouse, err := store.AddSpouse(context.Background(), 1, &model.Member{Name: "张伟", Gender: model.GenderMale})
	require.NoError(t, err)

	anchor, _ := store.Get(1)
	assert.Less(t, spouse.PosX, anchor.PosX)
	assert.Equal(t, anchor.PosY, spouse.PosY)
}

func TestAddSpouseRejectsSecondSpouse(t *testing.T) {
	p := newMemPersister(seedMember(1, "张伟", model.GenderMale))
	store := loadStore(t, p)

	_, err := store.AddSpouse(context.Background(), 1, &model.Member{Name: "李娜", Gender: model.GenderFemale})
	require.NoError(t, err)

	_, err = store.AddSpouse(context.Background(), 1, &model.Member{Name: "王芳", Gender: model.GenderFemale})
	require.Error(t, err)
	assert.Equal(t, service.ErrInvalidInput, service.CodeOf(err))
}

func TestAddChildLinksBothParents(t *testing.T) {
	p := newMemPersister(seedMember(1, "张伟", model.GenderMale))
	store := loadStore(t, p)

	spouse, err := store.AddSpouse(context.Background(), 1, &model.Member{Name: "李娜", Gender: model.GenderFemale})
	require.NoError(t, err)

	child, err := store.AddChild(context.Background(), 1, &model.Member{Name: "张小明", Gender: model.GenderMale})
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint{1, spouse.ID}, child.ParentIDs)
	father, _ := store.Get(1)
	mother, _ := store.Get(spouse.ID)
	assert.Contains(t, father.ChildrenIDs, child.ID)
	assert.Contains(t, mother.ChildrenIDs, child.ID)

	// 子女布局在下一辈
	assert.Greater(t, child.PosY, father.PosY)
}

func TestAddParentLinksAnchor(t *testing.T) {
	p := newMemPersister(seedMember(1, "张小明", model.GenderMale))
	store := loadStore(t, p)

	parent, err := store.AddParent(context.Background(), 1, &model.Member{Name: "张伟", Gender: model.GenderMale})
	require.NoError(t, err)

	anchor, _ := store.Get(1)
	assert.Contains(t, anchor.ParentIDs, parent.ID)
	assert.Contains(t, parent.ChildrenIDs, uint(1))
	assert.Less(t, parent.PosY, anchor.PosY)
}

func TestLoadRepairsAsymmetricSpouseLink(t *testing.T) {
	// 1指向2，2没有回指；1更新时间较新，应补写2的回指
	one := seedMember(1, "张伟", model.GenderMale)
	two := seedMember(2, "李娜", model.GenderFemale)
	two.UpdatedAt = one.UpdatedAt.Add(-time.Hour)
	spouseID := uint(2)
	one.SpouseID = &spouseID

	store := loadStore(t, newMemPersister(one, two))

	repaired, ok := store.Get(2)
	require.True(t, ok)
	require.NotNil(t, repaired.SpouseID)
	assert.Equal(t, uint(1), *repaired.SpouseID)
}

func TestLoadClearsStaleSpouseLink(t *testing.T) {
	// 1指向2但2那边较新，应清除1的过期指向
	one := seedMember(1, "张伟", model.GenderMale)
	two := seedMember(2, "李娜", model.GenderFemale)
	one.UpdatedAt = two.UpdatedAt.Add(-time.Hour)
	spouseID := uint(2)
	one.SpouseID = &spouseID

	store := loadStore(t, newMemPersister(one, two))

	cleared, _ := store.Get(1)
	assert.Nil(t, cleared.SpouseID)
	other, _ := store.Get(2)
	assert.Nil(t, other.SpouseID)
}

func TestLoadClearsDanglingSpouseReference(t *testing.T) {
	one := seedMember(1, "张伟", model.GenderMale)
	ghost := uint(99)
	one.SpouseID = &ghost

	store := loadStore(t, newMemPersister(one))

	m, _ := store.Get(1)
	assert.Nil(t, m.SpouseID)
}

func TestDeleteStripsReferences(t *testing.T) {
	p := newMemPersister(seedMember(1, "张伟", model.GenderMale))
	store := loadStore(t, p)

	spouse, err := store.AddSpouse(context.Background(), 1, &model.Member{Name: "李娜", Gender: model.GenderFemale})
	require.NoError(t, err)
	child, err := store.AddChild(context.Background(), 1, &model.Member{Name: "张小明", Gender: model.GenderMale})
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), spouse.ID))

	_, ok := store.Get(spouse.ID)
	assert.False(t, ok)
	anchor, _ := store.Get(1)
	assert.Nil(t, anchor.SpouseID)
	kid, _ := store.Get(child.ID)
	assert.NotContains(t, kid.ParentIDs, spouse.ID)
	assert.Equal(t, 1, p.commits)
}

func TestDeleteFailedCommitKeepsGraph(t *testing.T) {
	p := newMemPersister(seedMember(1, "张伟", model.GenderMale))
	store := loadStore(t, p)
	p.failCommit = true

	err := store.Delete(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, service.ErrDatabase, service.CodeOf(err))

	_, ok := store.Get(1)
	assert.True(t, ok)
}

func TestMoveByDragsLockedSpouseTogether(t *testing.T) {
	p := newMemPersister(seedMember(1, "张伟", model.GenderMale))
	store := loadStore(t, p)

	spouse, err := store.AddSpouse(context.Background(), 1, &model.Member{Name: "李娜", Gender: model.GenderFemale})
	require.NoError(t, err)

	locks := NewSpouseLock("", testLogger())

	// 缺省锁定：拖动一方，配偶整体平移
	beforeSpouse, _ := store.Get(spouse.ID)
	spouseX, spouseY := beforeSpouse.PosX, beforeSpouse.PosY

	moved, err := store.MoveBy(context.Background(), 1, 30, -10, locks)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, spouse.ID}, moved)

	after, _ := store.Get(spouse.ID)
	assert.Equal(t, spouseX+30, after.PosX)
	assert.Equal(t, spouseY-10, after.PosY)
}

func TestMoveByUnlockedSpouseStays(t *testing.T) {
	p := newMemPersister(seedMember(1, "张伟", model.GenderMale))
	store := loadStore(t, p)

	spouse, err := store.AddSpouse(context.Background(), 1, &model.Member{Name: "李娜", Gender: model.GenderFemale})
	require.NoError(t, err)

	locks := NewSpouseLock("", testLogger())
	locks.SetLock(1, spouse.ID, false)

	before, _ := store.Get(spouse.ID)
	x, y := before.PosX, before.PosY

	moved, err := store.MoveBy(context.Background(), 1, 30, -10, locks)
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, moved)

	after, _ := store.Get(spouse.ID)
	assert.Equal(t, x, after.PosX)
	assert.Equal(t, y, after.PosY)
}

func TestMoveByNotFound(t *testing.T) {
	store := loadStore(t, newMemPersister())
	_, err := store.MoveBy(context.Background(), 42, 1, 1, nil)
	require.Error(t, err)
	assert.Equal(t, service.ErrNotFound, service.CodeOf(err))
}
