package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/observability"
)

// ClaimService handles a claim request on a posted message.
//
// Semantics:
//   - A claimed message is rejected with ErrAlreadyClaimed and nothing changes.
//   - Otherwise the registry marks the claim (atomically, see ClaimRegistry),
//     is saved, and the post, stamped with the message id, is appended to the
//     claimer's collection and saved.
//   - If either save fails the in-memory stores still move together and the
//     returned error matches ErrPersistence.
type ClaimService struct {
	ledger *Ledger
	log    zerolog.Logger
}

// NewClaimService returns a ClaimService over ledger.
func NewClaimService(ledger *Ledger) *ClaimService {
	return &ClaimService{
		ledger: ledger,
		log:    log.With().Str("component", "claim_service").Logger(),
	}
}

// IsClaimed reports whether messageID already has an owner.
func (s *ClaimService) IsClaimed(messageID string) bool {
	return s.ledger.Registry.IsClaimed(messageID)
}

// Claim assigns the post on messageID to userID.
func (s *ClaimService) Claim(ctx context.Context, messageID, userID string, post domain.Post) error {
	messageID = strings.TrimSpace(messageID)
	userID = strings.TrimSpace(userID)
	if messageID == "" || userID == "" || strings.TrimSpace(post.Image) == "" {
		return ErrInvalidClaim
	}

	// Fast path; the authoritative check is the registry's check-and-set.
	if s.ledger.Registry.IsClaimed(messageID) {
		observability.ClaimsTotal.WithLabelValues(observability.OutcomeAlreadyClaimed).Inc()
		return ErrAlreadyClaimed
	}

	unlock := s.ledger.lockUser(userID)
	defer unlock()

	regErr := s.ledger.Registry.Claim(ctx, messageID, userID)
	if errors.Is(regErr, ErrAlreadyClaimed) {
		observability.ClaimsTotal.WithLabelValues(observability.OutcomeAlreadyClaimed).Inc()
		return ErrAlreadyClaimed
	}

	// The claim is marked in memory from here on; the collection must follow
	// even when the registry save failed.
	colErr := s.ledger.Collections.Append(ctx, userID, post.WithMessageID(messageID))

	if err := errors.Join(regErr, colErr); err != nil {
		observability.ClaimsTotal.WithLabelValues(observability.OutcomeSaveFailed).Inc()
		s.log.Error().Err(err).
			Str("message_id", messageID).
			Str("user_id", userID).
			Msg("claim applied in memory but not fully persisted")
		return err
	}

	observability.ClaimsTotal.WithLabelValues(observability.OutcomeClaimed).Inc()
	s.log.Info().Str("message_id", messageID).Str("user_id", userID).Msg("post claimed")
	return nil
}

// OfferBook remembers which post was offered on which message so a later
// claim can recover the Post. It holds at most capacity entries and evicts
// the oldest offer first. Offers live only in memory.
type OfferBook struct {
	mu       sync.Mutex
	capacity int
	posts    map[string]domain.Post
	order    []string
}

// NewOfferBook returns an OfferBook holding up to capacity offers.
func NewOfferBook(capacity int) *OfferBook {
	if capacity < 1 {
		capacity = 1
	}
	return &OfferBook{capacity: capacity, posts: make(map[string]domain.Post)}
}

// Put records post as offered on messageID.
func (b *OfferBook) Put(messageID string, post domain.Post) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.posts[messageID]; !exists {
		b.order = append(b.order, messageID)
	}
	b.posts[messageID] = post

	for len(b.posts) > b.capacity && len(b.order) > 0 {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.posts, oldest)
	}
	// Drop ids left behind by Delete once they dominate the queue.
	if len(b.order) > 2*b.capacity {
		live := b.order[:0]
		for _, id := range b.order {
			if _, ok := b.posts[id]; ok {
				live = append(live, id)
			}
		}
		b.order = live
	}
}

// Get returns the post offered on messageID.
func (b *OfferBook) Get(messageID string) (domain.Post, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.posts[messageID]
	return p, ok
}

// Delete forgets the offer on messageID.
func (b *OfferBook) Delete(messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.posts, messageID)
}

// Len returns the number of live offers.
func (b *OfferBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.posts)
}
