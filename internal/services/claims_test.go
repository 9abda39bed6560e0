package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/claimbot/internal/repo"
)

func TestClaimRegistry_ClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	reg, err := LoadClaimRegistry(ctx, s)
	require.NoError(t, err)

	require.NoError(t, reg.Claim(ctx, "m1", "u1"))
	assert.True(t, reg.IsClaimed("m1"))
	owner, ok := reg.Owner("m1")
	assert.True(t, ok)
	assert.Equal(t, "u1", owner)

	assert.ErrorIs(t, reg.Claim(ctx, "m1", "u2"), ErrAlreadyClaimed)
	owner, _ = reg.Owner("m1")
	assert.Equal(t, "u1", owner, "losing claim must not change the owner")

	// persisted
	claims, err := repo.LoadClaims(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["m1"])

	require.NoError(t, reg.Release(ctx, "m1"))
	assert.False(t, reg.IsClaimed("m1"))

	saves := s.saveCount(repo.KeyClaims)
	require.NoError(t, reg.Release(ctx, "m1"))
	assert.Equal(t, saves, s.saveCount(repo.KeyClaims), "releasing an unclaimed message must not write")
}

func TestClaimRegistry_ReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	reg, err := LoadClaimRegistry(ctx, newMemStore())
	require.NoError(t, err)
	require.NoError(t, reg.Claim(ctx, "m1", "u1"))

	released, err := reg.ReleaseIfOwner(ctx, "m1", "u2")
	require.NoError(t, err)
	assert.False(t, released)
	assert.True(t, reg.IsClaimed("m1"))

	released, err = reg.ReleaseIfOwner(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, reg.IsClaimed("m1"))
}

func TestClaimRegistry_ClaimsOfSorted(t *testing.T) {
	ctx := context.Background()
	reg, err := LoadClaimRegistry(ctx, newMemStore())
	require.NoError(t, err)
	for _, id := range []string{"m3", "m1", "m2"} {
		require.NoError(t, reg.Claim(ctx, id, "u1"))
	}
	require.NoError(t, reg.Claim(ctx, "m9", "u2"))

	assert.Equal(t, []string{"m1", "m2", "m3"}, reg.ClaimsOf("u1"))
	assert.Empty(t, reg.ClaimsOf("nobody"))
	assert.Equal(t, 4, reg.Len())
}

func TestClaimRegistry_SaveFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	reg, err := LoadClaimRegistry(ctx, s)
	require.NoError(t, err)

	s.failSaves(repo.KeyClaims, errDiskFull)
	err = reg.Claim(ctx, "m1", "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, repo.KeyClaims, pe.Document)

	assert.True(t, reg.IsClaimed("m1"), "in-memory claim stays in place")
}

func TestClaimRegistry_LoadCorrupt(t *testing.T) {
	s := newMemStore()
	s.docs[repo.KeyClaims] = []byte("{not json")
	_, err := LoadClaimRegistry(context.Background(), s)
	assert.ErrorIs(t, err, repo.ErrCorruptDocument)
}

func TestCollectionManager_AppendRemove(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	m, err := LoadCollectionManager(ctx, s)
	require.NoError(t, err)

	a, b := post("a").WithMessageID("m1"), post("b").WithMessageID("m2")
	require.NoError(t, m.Append(ctx, "u1", a))
	require.NoError(t, m.Append(ctx, "u1", b))
	assert.Equal(t, 2, m.Count("u1"))
	assert.Equal(t, []string{"u1"}, m.Users())

	list := m.List("u1")
	list[0].Image = "mutated"
	assert.Equal(t, a.Image, m.List("u1")[0].Image, "List returns a copy")

	removed, err := m.Remove(ctx, "u1", a)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"m2"}, []string{m.List("u1")[0].MessageID})

	saves := s.saveCount(repo.KeyCollections)
	removed, err = m.Remove(ctx, "u1", a)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, saves, s.saveCount(repo.KeyCollections))

	cols, err := repo.LoadCollections(ctx, s)
	require.NoError(t, err)
	assert.Len(t, cols["u1"], 1)
}

func TestCollectionManager_RemoveFirstMatchOnly(t *testing.T) {
	ctx := context.Background()
	m, err := LoadCollectionManager(ctx, newMemStore())
	require.NoError(t, err)

	legacy := post("dup")
	require.NoError(t, m.Append(ctx, "u1", legacy))
	require.NoError(t, m.Append(ctx, "u1", legacy))

	removed, err := m.Remove(ctx, "u1", legacy)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 1, m.Count("u1"))
}
