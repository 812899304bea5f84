package usercontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkotake/ojoagent/internal/models"
)

func TestGetAuth_MissingReturnsFalse(t *testing.T) {
	uc := newUserContext(1)
	_, ok := uc.GetAuth("hydrooj", time.Now())
	assert.False(t, ok)
}

func TestSetAuthThenGetAuth_RoundTrips(t *testing.T) {
	uc := newUserContext(1)
	now := time.Now()
	uc.SetAuth("hydrooj", "sid=abc", "cookie-jar", now)

	entry, ok := uc.GetAuth("hydrooj", now)
	require.True(t, ok)
	assert.Equal(t, "sid=abc", entry.Token)
	assert.Equal(t, "cookie-jar", entry.HTTPSession)
}

func TestGetAuth_ExpiresAfterTTL(t *testing.T) {
	uc := newUserContext(1)
	created := time.Now()
	uc.SetAuth("hydrooj", "sid=abc", nil, created)

	_, ok := uc.GetAuth("hydrooj", created.Add(models.AuthCacheTTL+time.Second))
	assert.False(t, ok)
}

func TestClearAuth_RemovesEntry(t *testing.T) {
	uc := newUserContext(1)
	now := time.Now()
	uc.SetAuth("hydrooj", "sid=abc", nil, now)
	uc.ClearAuth("hydrooj")

	_, ok := uc.GetAuth("hydrooj", now)
	assert.False(t, ok)
}

func TestActiveTaskCount_IncrementsAndDecrements(t *testing.T) {
	uc := newUserContext(1)
	assert.EqualValues(t, 1, uc.IncrementActiveTasks())
	assert.EqualValues(t, 2, uc.IncrementActiveTasks())
	assert.EqualValues(t, 1, uc.DecrementActiveTasks())
	assert.EqualValues(t, 1, uc.ActiveTaskCount())
}

func TestManager_GetReturnsSamePointerForSameUser(t *testing.T) {
	m := NewManager(10)
	a := m.Get(42)
	b := m.Get(42)
	assert.Same(t, a, b)
}

func TestManager_DifferentUsersGetDifferentContexts(t *testing.T) {
	m := NewManager(10)
	a := m.Get(1)
	b := m.Get(2)
	assert.NotSame(t, a, b)
}

func TestManager_EvictsLeastRecentlyUsedBeyondCapacity(t *testing.T) {
	m := NewManager(2)
	m.Get(1)
	m.Get(2)
	m.Get(3) // evicts user 1

	assert.Equal(t, 2, m.Len())
	assert.False(t, m.cache.Contains(1))
}

func TestManager_CrossTaskAuthSharing(t *testing.T) {
	m := NewManager(10)
	now := time.Now()

	taskA := m.Get(7)
	taskA.SetAuth("hydrooj", "sid=shared", nil, now)

	taskB := m.Get(7)
	entry, ok := taskB.GetAuth("hydrooj", now)
	require.True(t, ok)
	assert.Equal(t, "sid=shared", entry.Token)
}
