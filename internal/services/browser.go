package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/observability"
)

// Direction is a pagination move.
type Direction int

const (
	First Direction = iota
	Prev
	Next
	Last
)

var directionNames = [...]string{First: "first", Prev: "prev", Next: "next", Last: "last"}

func (d Direction) String() string {
	if d < First || d > Last {
		return "unknown"
	}
	return directionNames[d]
}

// ParseDirection maps "first", "prev", "next" or "last" to a Direction.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range directionNames {
		if s == name {
			return Direction(i), nil
		}
	}
	return First, ErrInvalidDirection
}

// BrowserView is the render state of a session after a transition.
// Page is zero-based; one post per page.
type BrowserView struct {
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	Page      int         `json:"page"`
	MaxPage   int         `json:"max_page"`
	Total     int         `json:"total"`
	Post      domain.Post `json:"post"`
	Empty     bool        `json:"empty"`
}

// AtFirst reports whether first/prev controls should be disabled.
func (v BrowserView) AtFirst() bool { return v.Page <= 0 }

// AtLast reports whether next/last controls should be disabled.
func (v BrowserView) AtLast() bool { return v.Page >= v.MaxPage }

type browserSession struct {
	id     string
	userID string

	mu    sync.Mutex
	posts []domain.Post
	page  int

	closed atomic.Bool

	// guarded by Browser.mu
	lastActive time.Time
}

func (s *browserSession) view() BrowserView {
	if len(s.posts) == 0 {
		return BrowserView{SessionID: s.id, UserID: s.userID, Empty: true}
	}
	return BrowserView{
		SessionID: s.id,
		UserID:    s.userID,
		Page:      s.page,
		MaxPage:   len(s.posts) - 1,
		Total:     len(s.posts),
		Post:      s.posts[s.page],
	}
}

// Browser manages paginated views over users' collections.
//
// A session pages over a snapshot of the owner's collection. Only the owner
// may drive it. Sessions idle for longer than the idle timeout expire; expiry
// is checked on every access and by Sweep.
type Browser struct {
	ledger *Ledger
	idle   time.Duration
	now    func() time.Time
	log    zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*browserSession
}

// NewBrowser returns a Browser over ledger with the given idle timeout.
func NewBrowser(ledger *Ledger, idle time.Duration) *Browser {
	return &Browser{
		ledger:   ledger,
		idle:     idle,
		now:      time.Now,
		log:      log.With().Str("component", "browser").Logger(),
		sessions: make(map[string]*browserSession),
	}
}

// Open starts a session on userID's collection at page 0.
// It returns ErrEmptyCollection when there is nothing to show.
func (b *Browser) Open(ctx context.Context, userID string) (BrowserView, error) {
	posts := b.ledger.Collections.List(userID)
	if len(posts) == 0 {
		return BrowserView{UserID: userID, Empty: true}, ErrEmptyCollection
	}
	s := &browserSession{
		id:     uuid.NewString(),
		userID: userID,
		posts:  posts,
	}

	b.mu.Lock()
	s.lastActive = b.now()
	b.sessions[s.id] = s
	n := len(b.sessions)
	b.mu.Unlock()

	observability.BrowserSessions.Set(float64(n))
	b.log.Debug().Str("session_id", s.id).Str("user_id", userID).Int("total", len(posts)).Msg("browser opened")
	return s.view(), nil
}

// Navigate moves the cursor. Moves past either end are no-ops that still
// return the current view.
func (b *Browser) Navigate(ctx context.Context, sessionID, actorID string, dir Direction) (BrowserView, error) {
	if dir < First || dir > Last {
		return BrowserView{}, ErrInvalidDirection
	}
	s, err := b.acquire(sessionID, actorID)
	if err != nil {
		return BrowserView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return BrowserView{}, ErrSessionExpired
	}

	maxPage := len(s.posts) - 1
	switch dir {
	case First:
		s.page = 0
	case Prev:
		s.page = max(0, s.page-1)
	case Next:
		s.page = min(maxPage, s.page+1)
	case Last:
		s.page = maxPage
	}
	return s.view(), nil
}

// Clear removes the post on the current page from the owner's collection and
// releases its claim, then refreshes the session from the collection. When the
// collection becomes empty the session is closed and an Empty view returned;
// otherwise the cursor clamps to the new last page.
//
// Persistence failures are returned (matching ErrPersistence) together with
// the view, since the in-memory change has already happened.
func (b *Browser) Clear(ctx context.Context, sessionID, actorID string) (BrowserView, error) {
	s, err := b.acquire(sessionID, actorID)
	if err != nil {
		return BrowserView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return BrowserView{}, ErrSessionExpired
	}
	if len(s.posts) == 0 {
		b.close(s)
		return s.view(), ErrEmptyCollection
	}

	target := s.posts[s.page]
	errs := b.removeAndRelease(ctx, s.userID, target)

	s.posts = b.ledger.Collections.List(s.userID)
	if len(s.posts) == 0 {
		b.close(s)
		return s.view(), errors.Join(errs...)
	}
	s.page = min(s.page, len(s.posts)-1)
	return s.view(), errors.Join(errs...)
}

// removeAndRelease updates both stores for one cleared post under the user's
// lock and returns any save failures.
func (b *Browser) removeAndRelease(ctx context.Context, userID string, target domain.Post) []error {
	unlock := b.ledger.lockUser(userID)
	defer unlock()

	var errs []error
	if target.MessageID == "" {
		// Label old records first so the cleared one releases its own claim.
		if _, err := b.ledger.backfillLocked(ctx, userID); err != nil {
			errs = append(errs, err)
		}
		for _, p := range b.ledger.Collections.List(userID) {
			if p.SameAs(target) {
				target = p
				break
			}
		}
	}
	removed, err := b.ledger.Collections.Remove(ctx, userID, target)
	if err != nil {
		errs = append(errs, err)
	}
	if !removed {
		b.log.Debug().Str("user_id", userID).Str("image", target.Image).Msg("cleared post was already gone")
	}
	if target.MessageID != "" {
		if _, err := b.ledger.Registry.ReleaseIfOwner(ctx, target.MessageID, userID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.releaseOrphans(ctx, userID); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// releaseOrphans releases claims held by userID whose message id no longer
// appears in the user's collection. It is a linear scan over the registry.
// While the user still holds records without a message id that could not be
// backfilled, their claims cannot be told apart from orphans, so nothing is
// released. Callers must hold the user's lock.
func (b *Browser) releaseOrphans(ctx context.Context, userID string) error {
	orphans, legacy := b.ledger.unmatched(userID)
	if len(orphans) == 0 {
		return nil
	}
	if legacy > 0 {
		b.log.Warn().
			Str("user_id", userID).
			Int("candidates", len(orphans)).
			Int("legacy_records", legacy).
			Msg("orphan scan skipped: records without message id")
		return nil
	}

	var errs []error
	for _, msgID := range orphans {
		if _, err := b.ledger.Registry.ReleaseIfOwner(ctx, msgID, userID); err != nil {
			errs = append(errs, err)
			continue
		}
		b.log.Info().Str("user_id", userID).Str("message_id", msgID).Msg("released orphaned claim")
	}
	return errors.Join(errs...)
}

// Close tears down a session. Unknown ids are ignored.
func (b *Browser) Close(sessionID string) {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	b.mu.Unlock()
	if ok {
		b.close(s)
	}
}

// Sweep closes every session idle for longer than the timeout and returns
// how many were closed.
func (b *Browser) Sweep() int {
	now := b.now()
	b.mu.Lock()
	var expired []string
	for id, s := range b.sessions {
		if now.Sub(s.lastActive) > b.idle {
			s.closed.Store(true)
			delete(b.sessions, id)
			expired = append(expired, id)
		}
	}
	n := len(b.sessions)
	b.mu.Unlock()

	if len(expired) > 0 {
		observability.BrowserSessions.Set(float64(n))
		b.log.Debug().Int("expired", len(expired)).Msg("browser sessions swept")
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done.
func (b *Browser) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = b.idle / 2
	}
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			b.Sweep()
		}
	}
}

// Active returns the number of open sessions.
func (b *Browser) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// acquire resolves a session for actorID and marks it active. Unknown or
// idle-expired sessions yield ErrSessionExpired; a session owned by someone
// else yields ErrUnauthorized without touching its state.
func (b *Browser) acquire(sessionID, actorID string) (*browserSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, ErrSessionExpired
	}
	now := b.now()
	if now.Sub(s.lastActive) > b.idle {
		s.closed.Store(true)
		delete(b.sessions, sessionID)
		observability.BrowserSessions.Set(float64(len(b.sessions)))
		return nil, ErrSessionExpired
	}
	if s.userID != actorID {
		return nil, ErrUnauthorized
	}
	s.lastActive = now
	return s, nil
}

func (b *Browser) close(s *browserSession) {
	s.closed.Store(true)
	b.mu.Lock()
	delete(b.sessions, s.id)
	n := len(b.sessions)
	b.mu.Unlock()
	observability.BrowserSessions.Set(float64(n))
}
