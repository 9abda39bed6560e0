package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/observability"
)

// Event is one of the interaction events the core consumes. The set is
// closed: ClaimRequested, BrowserOpen, BrowserNavigate and BrowserClear.
type Event interface {
	eventName() string
}

// ClaimRequested asks to claim the post offered on MessageID.
type ClaimRequested struct {
	MessageID string
	UserID    string
	Post      domain.Post
}

// BrowserOpen asks to open UserID's collection browser.
type BrowserOpen struct {
	UserID string
}

// BrowserNavigate moves a browser session.
type BrowserNavigate struct {
	SessionID string
	UserID    string
	Direction Direction
}

// BrowserClear removes the current entry of a browser session.
type BrowserClear struct {
	SessionID string
	UserID    string
}

func (ClaimRequested) eventName() string  { return "claim" }
func (BrowserOpen) eventName() string     { return "browser_open" }
func (BrowserNavigate) eventName() string { return "browser_navigate" }
func (BrowserClear) eventName() string    { return "browser_clear" }

// Outcome classifies a Response.
type Outcome string

const (
	OutcomeClaimed        Outcome = "claimed"
	OutcomeAlreadyClaimed Outcome = "already_claimed"
	OutcomeViewing        Outcome = "viewing"
	OutcomeEmpty          Outcome = "empty"
	OutcomeRejected       Outcome = "rejected"
	OutcomeExpired        Outcome = "expired"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeFailed         Outcome = "failed"
)

// User-facing texts.
const (
	MsgClaimed         = "✅ You claimed this post!"
	MsgAlreadyClaimed  = "❌ This post has already been claimed!"
	MsgClaimNotSaved   = "⚠️ Your claim could not be saved. Please try again later."
	MsgNoClaims        = "You don't have any claimed posts."
	MsgNowEmpty        = "Your collection is now empty."
	MsgNotYours        = "❌ This isn't your collection."
	MsgExpired         = "⌛ This view has expired. Open your collection again."
	MsgClearNotSaved   = "⚠️ The entry was removed but the change could not be saved."
	MsgInvalidRequest  = "That request could not be understood."
	MsgNoResults       = "No results found."
	MsgInternalFailure = "Something went wrong. Please try again later."
)

// Response is the render instruction for the presentation layer.
//
//   - Target is the user who should see Message.
//   - Ephemeral means only Target may see it.
//   - View, when set, is the new state of a browser message.
//   - DisableClaim asks the presentation layer to disable the claim control
//     of the message the claim was made on.
type Response struct {
	Outcome      Outcome      `json:"outcome"`
	Target       string       `json:"target"`
	Ephemeral    bool         `json:"ephemeral"`
	Message      string       `json:"message,omitempty"`
	View         *BrowserView `json:"view,omitempty"`
	DisableClaim bool         `json:"disable_claim"`
}

// Dispatcher routes events to the claim handler and the browser and maps
// every service error onto a Response. The returned error is non-nil only
// for unexpected failures (persistence) and is meant for logging; the
// Response is always usable.
type Dispatcher struct {
	Claims  *ClaimService
	Browser *Browser

	tracer trace.Tracer
	log    zerolog.Logger
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(claims *ClaimService, browser *Browser) *Dispatcher {
	return &Dispatcher{
		Claims:  claims,
		Browser: browser,
		tracer:  observability.Tracer("services"),
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
}

// Handle processes ev.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) (Response, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch."+ev.eventName())
	var (
		resp Response
		err  error
	)
	defer func() { observability.EndSpan(span, err) }()

	switch e := ev.(type) {
	case ClaimRequested:
		span.SetAttributes(attribute.String("message.id", e.MessageID))
		resp, err = d.claim(ctx, e)
	case BrowserOpen:
		resp, err = d.open(ctx, e)
	case BrowserNavigate:
		span.SetAttributes(attribute.String("browser.direction", e.Direction.String()))
		resp, err = d.navigate(ctx, e)
	case BrowserClear:
		resp, err = d.clear(ctx, e)
	default:
		resp = Response{Outcome: OutcomeInvalid, Ephemeral: true, Message: MsgInvalidRequest}
	}

	span.SetAttributes(attribute.String("outcome", string(resp.Outcome)))
	if err != nil {
		d.log.Error().Err(err).Str("event", ev.eventName()).Msg("event handled with error")
	}
	return resp, err
}

func (d *Dispatcher) claim(ctx context.Context, e ClaimRequested) (Response, error) {
	resp := Response{Target: e.UserID, Ephemeral: true}
	err := d.Claims.Claim(ctx, e.MessageID, e.UserID, e.Post)
	switch {
	case err == nil:
		resp.Outcome, resp.Message, resp.DisableClaim = OutcomeClaimed, MsgClaimed, true
		return resp, nil
	case errors.Is(err, ErrAlreadyClaimed):
		resp.Outcome, resp.Message, resp.DisableClaim = OutcomeAlreadyClaimed, MsgAlreadyClaimed, true
		return resp, nil
	case errors.Is(err, ErrInvalidClaim):
		resp.Outcome, resp.Message = OutcomeInvalid, MsgInvalidRequest
		return resp, nil
	case errors.Is(err, ErrPersistence):
		// Claimed in memory, so further claims must still be blocked.
		resp.Outcome, resp.Message, resp.DisableClaim = OutcomeFailed, MsgClaimNotSaved, true
		return resp, err
	default:
		resp.Outcome, resp.Message = OutcomeFailed, MsgInternalFailure
		return resp, err
	}
}

func (d *Dispatcher) open(ctx context.Context, e BrowserOpen) (Response, error) {
	view, err := d.Browser.Open(ctx, e.UserID)
	if errors.Is(err, ErrEmptyCollection) {
		return Response{Outcome: OutcomeEmpty, Target: e.UserID, Message: MsgNoClaims}, nil
	}
	if err != nil {
		return Response{Outcome: OutcomeFailed, Target: e.UserID, Ephemeral: true, Message: MsgInternalFailure}, err
	}
	return Response{Outcome: OutcomeViewing, Target: e.UserID, View: &view}, nil
}

func (d *Dispatcher) navigate(ctx context.Context, e BrowserNavigate) (Response, error) {
	view, err := d.Browser.Navigate(ctx, e.SessionID, e.UserID, e.Direction)
	if err != nil {
		return d.sessionFailure(e.UserID, err)
	}
	return Response{Outcome: OutcomeViewing, Target: e.UserID, View: &view}, nil
}

func (d *Dispatcher) clear(ctx context.Context, e BrowserClear) (Response, error) {
	view, err := d.Browser.Clear(ctx, e.SessionID, e.UserID)
	switch {
	case err == nil, errors.Is(err, ErrPersistence):
		resp := Response{Outcome: OutcomeViewing, Target: e.UserID, View: &view}
		if view.Empty {
			resp.Outcome, resp.Message = OutcomeEmpty, MsgNowEmpty
		}
		if err != nil {
			resp.Message = MsgClearNotSaved
		}
		return resp, err
	case errors.Is(err, ErrEmptyCollection):
		return Response{Outcome: OutcomeEmpty, Target: e.UserID, View: &view, Message: MsgNowEmpty}, nil
	default:
		return d.sessionFailure(e.UserID, err)
	}
}

// sessionFailure maps lookup errors shared by navigate and clear.
func (d *Dispatcher) sessionFailure(userID string, err error) (Response, error) {
	resp := Response{Target: userID, Ephemeral: true}
	switch {
	case errors.Is(err, ErrUnauthorized):
		resp.Outcome, resp.Message = OutcomeRejected, MsgNotYours
		return resp, nil
	case errors.Is(err, ErrSessionExpired):
		resp.Outcome, resp.Message = OutcomeExpired, MsgExpired
		return resp, nil
	case errors.Is(err, ErrInvalidDirection):
		resp.Outcome, resp.Message = OutcomeInvalid, MsgInvalidRequest
		return resp, nil
	default:
		resp.Outcome, resp.Message = OutcomeFailed, MsgInternalFailure
		return resp, err
	}
}
