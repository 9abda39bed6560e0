package services

import (
	"context"
	"sync"

	"github.com/tbourn/claimbot/internal/repo"
)

// Ledger pairs the claim registry with the collection manager. The two are
// kept in lock-step: every path that changes one changes the other while
// holding the acting user's lock, so no reader of a user's state (for
// example the orphan scan) can observe half of an update.
type Ledger struct {
	Registry    *ClaimRegistry
	Collections *CollectionManager

	locks userLocks
}

// NewLedger wraps already-loaded stores.
func NewLedger(reg *ClaimRegistry, cols *CollectionManager) *Ledger {
	return &Ledger{Registry: reg, Collections: cols}
}

// LoadLedger loads both documents from s. Either document failing to decode
// aborts the load.
func LoadLedger(ctx context.Context, s repo.Store) (*Ledger, error) {
	reg, err := LoadClaimRegistry(ctx, s)
	if err != nil {
		return nil, err
	}
	cols, err := LoadCollectionManager(ctx, s)
	if err != nil {
		return nil, err
	}
	return NewLedger(reg, cols), nil
}

// lockUser serializes multi-store updates for one user and returns the unlock.
func (l *Ledger) lockUser(userID string) func() {
	return l.locks.lock(userID)
}

// userLocks is a reference-counted set of per-user mutexes.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func (u *userLocks) lock(key string) func() {
	u.mu.Lock()
	if u.m == nil {
		u.m = make(map[string]*userLock)
	}
	l, ok := u.m[key]
	if !ok {
		l = &userLock{}
		u.m[key] = l
	}
	l.refs++
	u.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		u.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.m, key)
		}
		u.mu.Unlock()
	}
}
