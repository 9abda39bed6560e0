package services

import (
	"context"
	"errors"
	"sort"
)

// RepairReport summarizes a Repair run.
type RepairReport struct {
	Backfilled int             `json:"backfilled" yaml:"backfilled"`
	Released   int             `json:"released"   yaml:"released"`
	Restored   int             `json:"restored"   yaml:"restored"`
	Remaining  []Inconsistency `json:"remaining"  yaml:"remaining"`
}

// unmatched returns the claims of userID with no record carrying their
// message id, and the number of userID's records without a message id.
// Callers must hold the user's lock.
func (l *Ledger) unmatched(userID string) (claims []string, legacy int) {
	held := make(map[string]struct{})
	for _, p := range l.Collections.List(userID) {
		if p.MessageID == "" {
			legacy++
			continue
		}
		held[p.MessageID] = struct{}{}
	}
	for _, msgID := range l.Registry.ClaimsOf(userID) {
		if _, ok := held[msgID]; !ok {
			claims = append(claims, msgID)
		}
	}
	return claims, legacy
}

// BackfillMessageIDs gives records written without a message id the id of
// the claim they belong to. A user is only backfilled when the number of
// such records equals the number of their unmatched claims; ids are then
// paired in message order with records in claim order, since a post is
// claimed after the message offering it was sent. Users with differing
// counts are left alone and still reported by CheckConsistency.
func (l *Ledger) BackfillMessageIDs(ctx context.Context) (int, error) {
	total := 0
	var errs []error
	for _, userID := range l.Collections.Users() {
		n, err := l.backfillUser(ctx, userID)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

func (l *Ledger) backfillUser(ctx context.Context, userID string) (int, error) {
	unlock := l.lockUser(userID)
	defer unlock()
	return l.backfillLocked(ctx, userID)
}

// backfillLocked is BackfillMessageIDs for one user. Callers must hold the
// user's lock.
func (l *Ledger) backfillLocked(ctx context.Context, userID string) (int, error) {
	claims, legacy := l.unmatched(userID)
	if legacy == 0 || legacy != len(claims) {
		return 0, nil
	}
	sort.Slice(claims, func(i, j int) bool { return messageOrder(claims[i], claims[j]) })
	return l.Collections.AssignMessageIDs(ctx, userID, claims)
}

// Repair backfills message ids, then resolves what CheckConsistency reports:
// claims of users with no matching record and no unlabelled records are
// released, and records whose message is unclaimed are claimed back for
// their holder. Records whose message belongs to someone else are left and
// returned in Remaining.
func (l *Ledger) Repair(ctx context.Context) (RepairReport, error) {
	var rep RepairReport
	var errs []error

	n, err := l.BackfillMessageIDs(ctx)
	rep.Backfilled = n
	if err != nil {
		errs = append(errs, err)
	}

	for _, inc := range CheckConsistency(l) {
		switch inc.Kind {
		case ClaimWithoutRecord:
			ok, err := l.repairClaim(ctx, inc)
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				rep.Released++
			}
		case RecordWithoutClaim:
			ok, err := l.repairRecord(ctx, inc)
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				rep.Restored++
			}
		}
	}
	rep.Remaining = CheckConsistency(l)
	return rep, errors.Join(errs...)
}

func (l *Ledger) repairClaim(ctx context.Context, inc Inconsistency) (bool, error) {
	unlock := l.lockUser(inc.UserID)
	defer unlock()
	if _, legacy := l.unmatched(inc.UserID); legacy > 0 {
		return false, nil
	}
	return l.Registry.ReleaseIfOwner(ctx, inc.MessageID, inc.UserID)
}

func (l *Ledger) repairRecord(ctx context.Context, inc Inconsistency) (bool, error) {
	unlock := l.lockUser(inc.UserID)
	defer unlock()
	err := l.Registry.Claim(ctx, inc.MessageID, inc.UserID)
	switch {
	case errors.Is(err, ErrAlreadyClaimed):
		return false, nil
	case err != nil:
		return true, err
	}
	return true, nil
}

// messageOrder orders numeric ids (Discord snowflakes) by value and falls
// back to byte order.
func messageOrder(a, b string) bool {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
