package services

import "sort"

// Inconsistency kinds reported by CheckConsistency.
const (
	// ClaimWithoutRecord: a claim whose owner holds no record with that message id.
	ClaimWithoutRecord = "claim_without_record"
	// RecordWithoutClaim: a record whose message id is unclaimed or owned by someone else.
	RecordWithoutClaim = "record_without_claim"
	// RecordWithoutMessageID: a record written before message ids were stored.
	// Its owner's claims are not matched until it is backfilled.
	RecordWithoutMessageID = "record_without_message_id"
)

// Inconsistency describes one place where the two stores disagree.
type Inconsistency struct {
	Kind      string `json:"kind"      yaml:"kind"`
	MessageID string `json:"message_id" yaml:"message_id"`
	UserID    string `json:"user_id"   yaml:"user_id"`
	Image     string `json:"image,omitempty" yaml:"image,omitempty"`
}

// CheckConsistency compares the registry with the collections. Records
// without a message id are reported as such; claims owned by users holding
// them are not, because they cannot be matched to a record.
func CheckConsistency(l *Ledger) []Inconsistency {
	claims := l.Registry.Snapshot()
	cols := l.Collections.Snapshot()

	held := make(map[string]map[string]struct{}, len(cols))
	hasLegacy := make(map[string]bool)
	var out []Inconsistency

	for userID, posts := range cols {
		ids := make(map[string]struct{}, len(posts))
		for _, p := range posts {
			if p.MessageID == "" {
				hasLegacy[userID] = true
				out = append(out, Inconsistency{Kind: RecordWithoutMessageID, UserID: userID, Image: p.Image})
				continue
			}
			ids[p.MessageID] = struct{}{}
			if owner, ok := claims[p.MessageID]; !ok || owner != userID {
				out = append(out, Inconsistency{Kind: RecordWithoutClaim, MessageID: p.MessageID, UserID: userID})
			}
		}
		held[userID] = ids
	}

	for msgID, owner := range claims {
		if hasLegacy[owner] {
			continue
		}
		if _, ok := held[owner][msgID]; !ok {
			out = append(out, Inconsistency{Kind: ClaimWithoutRecord, MessageID: msgID, UserID: owner})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		if out[i].MessageID != out[j].MessageID {
			return out[i].MessageID < out[j].MessageID
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Image < out[j].Image
	})
	return out
}
