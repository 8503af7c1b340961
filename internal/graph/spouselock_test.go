package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKeyOrderInsensitive(t *testing.T) {
	assert.Equal(t, PairKey(3, 7), PairKey(7, 3))
	// 键按字符串字典序排序，"10" < "2"
	assert.Equal(t, "10:2", PairKey(2, 10))
}

func TestPairLockedByDefault(t *testing.T) {
	locks := NewSpouseLock("", testLogger())
	assert.True(t, locks.IsPairLocked(1, 2))
}

func TestIsPairLockedNoSpouse(t *testing.T) {
	locks := NewSpouseLock("", testLogger())
	assert.False(t, locks.IsPairLocked(1, 0))
}

func TestToggleLockInvolution(t *testing.T) {
	locks := NewSpouseLock("", testLogger())

	locks.ToggleLock(1, 2)
	assert.False(t, locks.IsPairLocked(1, 2))
	assert.False(t, locks.IsPairLocked(2, 1))

	locks.ToggleLock(2, 1)
	assert.True(t, locks.IsPairLocked(1, 2))
}

func TestSetLockExplicit(t *testing.T) {
	locks := NewSpouseLock("", testLogger())

	locks.SetLock(1, 2, false)
	assert.False(t, locks.IsPairLocked(1, 2))
	locks.SetLock(1, 2, true)
	assert.True(t, locks.IsPairLocked(1, 2))
}

func TestGetLockedSpouseID(t *testing.T) {
	locks := NewSpouseLock("", testLogger())
	spouseID := uint(2)

	assert.Nil(t, locks.GetLockedSpouseID(1, nil))

	got := locks.GetLockedSpouseID(1, &spouseID)
	require.NotNil(t, got)
	assert.Equal(t, uint(2), *got)

	locks.SetLock(1, 2, false)
	assert.Nil(t, locks.GetLockedSpouseID(1, &spouseID))
}

func TestLockStatePersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks.json")

	locks := NewSpouseLock(path, testLogger())
	locks.ToggleLock(1, 2)
	locks.ToggleLock(5, 3)

	reloaded := NewSpouseLock(path, testLogger())
	assert.False(t, reloaded.IsPairLocked(1, 2))
	assert.False(t, reloaded.IsPairLocked(3, 5))
	assert.True(t, reloaded.IsPairLocked(7, 8))
}

func TestCorruptLockStateFallsBackToLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	locks := NewSpouseLock(path, testLogger())
	assert.True(t, locks.IsPairLocked(1, 2))

	// 恢复后仍可正常写入
	locks.ToggleLock(1, 2)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var keys []string
	require.NoError(t, json.Unmarshal(data, &keys))
	assert.Equal(t, []string{"1:2"}, keys)
}
