package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/repo"
)

// ----- In-memory store -----

type memStore struct {
	mu    sync.Mutex
	docs  map[string][]byte
	fail  map[string]error
	saves map[string]int
}

func newMemStore() *memStore {
	return &memStore{docs: map[string][]byte{}, fail: map[string]error{}, saves: map[string]int{}}
}

func (m *memStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[key]
	if !ok {
		return nil, repo.ErrDocumentNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *memStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[key]; err != nil {
		return err
	}
	m.saves[key]++
	m.docs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) failSaves(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[key] = err
}

func (m *memStore) saveCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[key]
}

var errDiskFull = errors.New("disk full")

// ----- Fixtures -----

func post(n string) domain.Post {
	return domain.Post{
		Image:      "https://img.example/" + n + ".png",
		Characters: "char_" + n,
		Source:     "src",
		Artist:     "artist",
		Date:       "2024-01-02",
	}
}

func newTestLedger(t *testing.T, s repo.Store) *Ledger {
	t.Helper()
	l, err := LoadLedger(context.Background(), s)
	require.NoError(t, err)
	return l
}

// seedClaims claims n posts for userID on messages "<prefix>1".."<prefix>n".
func seedClaims(t *testing.T, svc *ClaimService, userID, prefix string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		id := prefix + string(rune('0'+i))
		require.NoError(t, svc.Claim(context.Background(), id, userID, post(id)))
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
