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

// ClaimRegistry owns the message id → user id mapping and enforces that a
// message is claimed at most once.
//
// Claim performs its check-and-set under a single lock before any I/O, so of
// several concurrent attempts on one message exactly one observes it unclaimed.
// The document is saved afterwards, serialized by saveMu; each save snapshots
// the latest in-memory state, so a slow save can never overwrite a newer one.
type ClaimRegistry struct {
	store repo.Store
	log   zerolog.Logger

	mu     sync.RWMutex
	claims domain.Claims

	saveMu sync.Mutex
}

// LoadClaimRegistry builds a registry from the claims document in s.
// A corrupt document is returned as an error; it is never treated as empty.
func LoadClaimRegistry(ctx context.Context, s repo.Store) (*ClaimRegistry, error) {
	claims, err := repo.LoadClaims(ctx, s)
	if err != nil {
		return nil, err
	}
	return &ClaimRegistry{
		store:  s,
		claims: claims,
		log:    log.With().Str("component", "claim_registry").Logger(),
	}, nil
}

// IsClaimed reports whether messageID has an owner.
func (r *ClaimRegistry) IsClaimed(messageID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.claims[messageID]
	return ok
}

// Owner returns the user that claimed messageID.
func (r *ClaimRegistry) Owner(messageID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.claims[messageID]
	return u, ok
}

// Claim assigns messageID to userID. It returns ErrAlreadyClaimed without
// touching state when the message is taken. On success the registry is saved
// before returning; a save failure is returned as a *PersistenceError while
// the in-memory claim stays in place.
func (r *ClaimRegistry) Claim(ctx context.Context, messageID, userID string) error {
	r.mu.Lock()
	if _, taken := r.claims[messageID]; taken {
		r.mu.Unlock()
		return ErrAlreadyClaimed
	}
	r.claims[messageID] = userID
	r.mu.Unlock()

	return r.persist(ctx)
}

// Release deletes the claim on messageID. Releasing an unclaimed message is
// not an error and does not write.
func (r *ClaimRegistry) Release(ctx context.Context, messageID string) error {
	r.mu.Lock()
	if _, ok := r.claims[messageID]; !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.claims, messageID)
	r.mu.Unlock()

	return r.persist(ctx)
}

// ReleaseIfOwner deletes the claim on messageID only when userID owns it.
// It reports whether a claim was removed.
func (r *ClaimRegistry) ReleaseIfOwner(ctx context.Context, messageID, userID string) (bool, error) {
	r.mu.Lock()
	if owner, ok := r.claims[messageID]; !ok || owner != userID {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.claims, messageID)
	r.mu.Unlock()

	return true, r.persist(ctx)
}

// ClaimsOf returns the message ids claimed by userID in ascending order.
// This is a linear scan; the registry has no reverse index.
func (r *ClaimRegistry) ClaimsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for msgID, owner := range r.claims {
		if owner == userID {
			out = append(out, msgID)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of claims.
func (r *ClaimRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.claims)
}

// Snapshot returns a copy of the whole mapping.
func (r *ClaimRegistry) Snapshot() domain.Claims {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.claims.Clone()
}

// persist saves the current mapping. Saves are not cancellable: once state
// has changed in memory the write is attempted even if the caller gave up.
func (r *ClaimRegistry) persist(ctx context.Context) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	if err := repo.SaveClaims(context.WithoutCancel(ctx), r.store, r.Snapshot()); err != nil {
		observability.PersistFailures.WithLabelValues(repo.KeyClaims).Inc()
		r.log.Error().Err(err).Msg("claims document not saved; memory and disk diverge")
		return &PersistenceError{Document: repo.KeyClaims, Err: err}
	}
	return nil
}
