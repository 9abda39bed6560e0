package services

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/observability"
	"github.com/tbourn/claimbot/internal/repo"
)

// CollectionManager owns each user's ordered list of claimed posts.
// Persistence follows the same discipline as ClaimRegistry.
type CollectionManager struct {
	store repo.Store
	log   zerolog.Logger

	mu   sync.RWMutex
	cols domain.Collections

	saveMu sync.Mutex
}

// LoadCollectionManager builds a manager from the collections document in s.
func LoadCollectionManager(ctx context.Context, s repo.Store) (*CollectionManager, error) {
	cols, err := repo.LoadCollections(ctx, s)
	if err != nil {
		return nil, err
	}
	return &CollectionManager{
		store: s,
		cols:  cols,
		log:   log.With().Str("component", "collection_manager").Logger(),
	}, nil
}

// Append adds post to the end of userID's collection, creating it if needed,
// and saves.
func (m *CollectionManager) Append(ctx context.Context, userID string, post domain.Post) error {
	m.mu.Lock()
	m.cols[userID] = append(m.cols[userID], post)
	m.mu.Unlock()

	return m.persist(ctx)
}

// Remove deletes the first record of userID's collection that identifies the
// same post (see domain.Post.SameAs) and saves. It reports whether a record
// was removed; nothing is written when none matched.
func (m *CollectionManager) Remove(ctx context.Context, userID string, post domain.Post) (bool, error) {
	m.mu.Lock()
	seq := m.cols[userID]
	idx := -1
	for i := range seq {
		if seq[i].SameAs(post) {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false, nil
	}
	next := make([]domain.Post, 0, len(seq)-1)
	next = append(next, seq[:idx]...)
	next = append(next, seq[idx+1:]...)
	m.cols[userID] = next
	m.mu.Unlock()

	return true, m.persist(ctx)
}

// AssignMessageIDs stamps ids, in order, onto userID's records that carry no
// message id, walking the collection in claim order. It stops when either
// runs out, saves when anything changed and reports how many were stamped.
func (m *CollectionManager) AssignMessageIDs(ctx context.Context, userID string, ids []string) (int, error) {
	m.mu.Lock()
	seq := append([]domain.Post(nil), m.cols[userID]...)
	n := 0
	for i := range seq {
		if n == len(ids) {
			break
		}
		if seq[i].MessageID == "" {
			seq[i] = seq[i].WithMessageID(ids[n])
			n++
		}
	}
	if n > 0 {
		m.cols[userID] = seq
	}
	m.mu.Unlock()

	if n == 0 {
		return 0, nil
	}
	return n, m.persist(ctx)
}

// List returns a copy of userID's collection in claim order. Later mutations
// are not reflected; call List again to observe them.
func (m *CollectionManager) List(userID string) []domain.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Post(nil), m.cols[userID]...)
}

// Count returns the size of userID's collection.
func (m *CollectionManager) Count(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cols[userID])
}

// Users returns every user id with a collection entry, sorted.
func (m *CollectionManager) Users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.cols))
	for u := range m.cols {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a deep copy of all collections.
func (m *CollectionManager) Snapshot() domain.Collections {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cols.Clone()
}

func (m *CollectionManager) persist(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	if err := repo.SaveCollections(context.WithoutCancel(ctx), m.store, m.Snapshot()); err != nil {
		observability.PersistFailures.WithLabelValues(repo.KeyCollections).Inc()
		m.log.Error().Err(err).Msg("collections document not saved; memory and disk diverge")
		return &PersistenceError{Document: repo.KeyCollections, Err: err}
	}
	return nil
}
