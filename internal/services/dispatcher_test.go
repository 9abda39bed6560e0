package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/claimbot/internal/repo"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Ledger, *memStore) {
	t.Helper()
	s := newMemStore()
	l := newTestLedger(t, s)
	b := NewBrowser(l, time.Minute)
	return NewDispatcher(NewClaimService(l), b), l, s
}

func TestDispatcher_Claim(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDispatcher(t)

	resp, err := d.Handle(ctx, ClaimRequested{MessageID: "m1", UserID: "u1", Post: post("1")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeClaimed, resp.Outcome)
	assert.Equal(t, "u1", resp.Target)
	assert.True(t, resp.Ephemeral)
	assert.True(t, resp.DisableClaim)
	assert.Equal(t, MsgClaimed, resp.Message)

	resp, err = d.Handle(ctx, ClaimRequested{MessageID: "m1", UserID: "u2", Post: post("1")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, resp.Outcome)
	assert.Equal(t, "u2", resp.Target)
	assert.True(t, resp.Ephemeral)
	assert.Equal(t, MsgAlreadyClaimed, resp.Message)

	resp, err = d.Handle(ctx, ClaimRequested{MessageID: "", UserID: "u2", Post: post("1")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, resp.Outcome)
}

func TestDispatcher_ClaimSaveFailure(t *testing.T) {
	d, l, s := newTestDispatcher(t)
	s.failSaves(repo.KeyClaims, errDiskFull)

	resp, err := d.Handle(context.Background(), ClaimRequested{MessageID: "m1", UserID: "u1", Post: post("1")})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, OutcomeFailed, resp.Outcome)
	assert.Equal(t, MsgClaimNotSaved, resp.Message)
	assert.True(t, resp.DisableClaim)
	assert.True(t, l.Registry.IsClaimed("m1"))
}

func TestDispatcher_BrowserFlow(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDispatcher(t)

	resp, err := d.Handle(ctx, BrowserOpen{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, resp.Outcome)
	assert.Equal(t, MsgNoClaims, resp.Message)
	assert.Nil(t, resp.View)

	for _, id := range []string{"m1", "m2"} {
		_, err := d.Handle(ctx, ClaimRequested{MessageID: id, UserID: "u1", Post: post(id)})
		require.NoError(t, err)
	}

	resp, err = d.Handle(ctx, BrowserOpen{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeViewing, resp.Outcome)
	require.NotNil(t, resp.View)
	sid := resp.View.SessionID

	resp, err = d.Handle(ctx, BrowserNavigate{SessionID: sid, UserID: "u1", Direction: Next})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.View.Page)

	resp, err = d.Handle(ctx, BrowserNavigate{SessionID: sid, UserID: "u2", Direction: First})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, resp.Outcome)
	assert.Equal(t, "u2", resp.Target)
	assert.True(t, resp.Ephemeral)
	assert.Nil(t, resp.View)

	resp, err = d.Handle(ctx, BrowserClear{SessionID: sid, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeViewing, resp.Outcome)
	assert.Equal(t, "m1", resp.View.Post.MessageID)

	resp, err = d.Handle(ctx, BrowserClear{SessionID: sid, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, resp.Outcome)
	assert.Equal(t, MsgNowEmpty, resp.Message)
	require.NotNil(t, resp.View)
	assert.True(t, resp.View.Empty)

	resp, err = d.Handle(ctx, BrowserNavigate{SessionID: sid, UserID: "u1", Direction: Next})
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, resp.Outcome)
	assert.Equal(t, MsgExpired, resp.Message)
}

func TestCheckConsistency(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, newMemStore())
	seedClaims(t, NewClaimService(l), "u1", "m", 2)
	assert.Empty(t, CheckConsistency(l))

	require.NoError(t, l.Registry.Claim(ctx, "m9", "u1"))
	require.NoError(t, l.Collections.Append(ctx, "u2", post("z").WithMessageID("m8")))
	require.NoError(t, l.Registry.Claim(ctx, "m7", "u3"))
	require.NoError(t, l.Collections.Append(ctx, "u3", post("legacy")))

	got := CheckConsistency(l)
	assert.Equal(t, []Inconsistency{
		{Kind: ClaimWithoutRecord, MessageID: "m9", UserID: "u1"},
		{Kind: RecordWithoutClaim, MessageID: "m8", UserID: "u2"},
		{Kind: RecordWithoutMessageID, UserID: "u3", Image: post("legacy").Image},
	}, got)
}
