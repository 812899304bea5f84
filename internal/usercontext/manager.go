package usercontext

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxUsers bounds how many UserContexts stay resident before the
// least-recently-used one is evicted. Set generously above the worker
// pool's max_global_tasks (spec §6.1 default 50). Eviction goes by
// recency of Get alone and does not consult a context's active-task
// count: a task already running keeps its own pointer, but that user's
// next Get after an eviction builds a fresh context with an empty auth
// cache.
const DefaultMaxUsers = 500

// Manager hands out the single shared UserContext for each user id,
// bounded by an LRU so a long-lived process doesn't accumulate one
// entry per user forever (spec §11 domain stack: golang-lru/v2 "bounds
// the process-wide auth-cache map across users").
type Manager struct {
	mu    sync.Mutex
	cache *lru.Cache[int64, *UserContext]
}

// NewManager builds a Manager bounded to maxUsers resident contexts (use
// DefaultMaxUsers when 0).
func NewManager(maxUsers int) *Manager {
	if maxUsers <= 0 {
		maxUsers = DefaultMaxUsers
	}
	cache, err := lru.New[int64, *UserContext](maxUsers)
	if err != nil {
		// Only returns an error for a non-positive size, which the guard
		// above already rules out.
		panic(err)
	}
	return &Manager{cache: cache}
}

// Get returns the shared UserContext for userID, creating one on first
// use. Every caller for the same userID gets the same pointer, which is
// what makes the cross-task auth-reuse rule (spec §4.7) hold: two
// concurrent tasks belonging to the same user always find the same
// cached auth entries.
func (m *Manager) Get(userID int64) *UserContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	if uc, ok := m.cache.Get(userID); ok {
		return uc
	}
	uc := newUserContext(userID)
	m.cache.Add(userID, uc)
	return uc
}

// Len reports how many UserContexts are currently resident.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}
