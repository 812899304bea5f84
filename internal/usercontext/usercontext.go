// Package usercontext is the User Context layer (C7): a per-user object
// holding cached adapter auth sessions and an in-flight task counter,
// shared across every concurrent task belonging to that user (spec
// §4.7).
package usercontext

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkotake/ojoagent/internal/models"
)

// UserContext is keyed by user id; one instance is shared by every
// concurrent task for that user (spec §4.7 "Cross-task auth reuse
// rule: two concurrent tasks of the same user against the same adapter
// must share the cached auth").
type UserContext struct {
	userID int64

	mu   sync.Mutex
	auth map[string]models.AuthCacheEntry

	activeTaskCount atomic.Int64
}

func newUserContext(userID int64) *UserContext {
	return &UserContext{userID: userID, auth: make(map[string]models.AuthCacheEntry)}
}

// UserID returns the user this context belongs to.
func (u *UserContext) UserID() int64 { return u.userID }

// GetAuth returns the cached entry for adapterName if present and not
// older than models.AuthCacheTTL (spec §4.7).
func (u *UserContext) GetAuth(adapterName string, now time.Time) (models.AuthCacheEntry, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	entry, ok := u.auth[adapterName]
	if !ok {
		return models.AuthCacheEntry{}, false
	}
	if entry.Expired(models.AuthCacheTTL, now) {
		delete(u.auth, adapterName)
		return models.AuthCacheEntry{}, false
	}
	return entry, true
}

// SetAuth caches token/session for adapterName, stamped with now.
func (u *UserContext) SetAuth(adapterName, token string, httpSession any, now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.auth[adapterName] = models.AuthCacheEntry{Token: token, HTTPSession: httpSession, CreatedAt: now}
}

// ClearAuth invalidates any cached entry for adapterName.
func (u *UserContext) ClearAuth(adapterName string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.auth, adapterName)
}

// IncrementActiveTasks records a task dispatch for this user and returns
// the new count (spec §4.7).
func (u *UserContext) IncrementActiveTasks() int64 {
	return u.activeTaskCount.Add(1)
}

// DecrementActiveTasks records a task termination for this user and
// returns the new count.
func (u *UserContext) DecrementActiveTasks() int64 {
	return u.activeTaskCount.Add(-1)
}

// ActiveTaskCount reports the current in-flight task count for this user.
func (u *UserContext) ActiveTaskCount() int64 {
	return u.activeTaskCount.Load()
}
