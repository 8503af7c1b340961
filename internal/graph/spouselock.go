package graph

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"sync"

	"familytree_go/internal/service"
)

// SpouseLock 配偶联动锁注册表
//
// 注意反向语义：集合里存的是「已解锁」的配偶对，缺省即锁定。
// 拖动一方时锁定的配偶对会整体平移，这是默认行为；
// 如果按常规思路把集合当成「已锁定」来实现，拖动行为会悄悄反转。
type SpouseLock struct {
	path     string
	logger   *service.Logger
	mu       sync.RWMutex
	unlocked map[string]struct{}
}

// NewSpouseLock 创建注册表并加载本地持久化状态
//
// 持久化内容损坏时按空集合处理（回退到全部锁定），不阻塞启动。
func NewSpouseLock(path string, logger *service.Logger) *SpouseLock {
	l := &SpouseLock{
		path:     path,
		logger:   logger,
		unlocked: make(map[string]struct{}),
	}
	l.load()
	return l
}

// PairKey 配偶对的规范化键：两个id转为字符串后按字典序排序拼接
//
// 保证 (A,B) 和 (B,A) 命中同一条目。
func PairKey(a, b uint) string {
	as := strconv.FormatUint(uint64(a), 10)
	bs := strconv.FormatUint(uint64(b), 10)
	if bs < as {
		as, bs = bs, as
	}
	return as + ":" + bs
}

// IsPairLocked 判断配偶对是否锁定；b为0（无配偶）时恒为false
func (l *SpouseLock) IsPairLocked(a, b uint) bool {
	if b == 0 {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, unlocked := l.unlocked[PairKey(a, b)]
	return !unlocked
}

// ToggleLock 翻转配偶对的锁定状态
func (l *SpouseLock) ToggleLock(a, b uint) {
	l.mu.Lock()
	key := PairKey(a, b)
	if _, unlocked := l.unlocked[key]; unlocked {
		delete(l.unlocked, key)
	} else {
		l.unlocked[key] = struct{}{}
	}
	l.mu.Unlock()
	l.save()
}

// SetLock 显式设置锁定状态
func (l *SpouseLock) SetLock(a, b uint, locked bool) {
	l.mu.Lock()
	key := PairKey(a, b)
	if locked {
		delete(l.unlocked, key)
	} else {
		l.unlocked[key] = struct{}{}
	}
	l.mu.Unlock()
	l.save()
}

// GetLockedSpouseID 配偶对锁定时返回配偶id，否则返回nil
//
// 拖动处理器据此决定是否对配偶节点施加相同位移。
func (l *SpouseLock) GetLockedSpouseID(memberID uint, spouseID *uint) *uint {
	if spouseID == nil {
		return nil
	}
	if l.IsPairLocked(memberID, *spouseID) {
		return spouseID
	}
	return nil
}

// load 从本地文件恢复解锁集合
func (l *SpouseLock) load() {
	if l.path == "" {
		return
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("failed to read spouse lock state, falling back to all locked: %v", err)
		}
		return
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		// 损坏的持久化状态按ErrStorageCorrupt语义处理：回退默认，不上抛
		l.logger.Warn("spouse lock state corrupt, falling back to all locked: %v", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range keys {
		l.unlocked[key] = struct{}{}
	}
}

// save 将解锁集合写回本地文件，失败只记日志
func (l *SpouseLock) save() {
	if l.path == "" {
		return
	}

	l.mu.RLock()
	keys := make([]string, 0, len(l.unlocked))
	for key := range l.unlocked {
		keys = append(keys, key)
	}
	l.mu.RUnlock()
	sort.Strings(keys)

	data, err := json.Marshal(keys)
	if err != nil {
		l.logger.Warn("failed to encode spouse lock state: %v", err)
		return
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		l.logger.Warn("failed to persist spouse lock state: %v", err)
	}
}
