package handlers

import (
	"net/http"

	"github.com/tbourn/claimbot/internal/services"
)

// Error codes carried in ErrorResponse.Code. Middleware writes the same
// strings for auth ("unauthorized"), rate limiting ("rate_limited") and
// recovered panics ("internal_error").
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	ErrCodeEmptyCollection = "empty_collection"
	ErrCodeSessionExpired  = "session_expired"
	ErrCodePersistFailed   = "persist_failed"
)

type apiError struct {
	status int
	code   string
}

// outcomeErrors holds the failing outcomes. Anything not listed here and not
// a success is reported as a persistence failure.
var outcomeErrors = map[services.Outcome]apiError{
	services.OutcomeAlreadyClaimed: {http.StatusConflict, ErrCodeConflict},
	services.OutcomeRejected:       {http.StatusForbidden, ErrCodeForbidden},
	services.OutcomeExpired:        {http.StatusNotFound, ErrCodeSessionExpired},
	services.OutcomeEmpty:          {http.StatusNotFound, ErrCodeEmptyCollection},
	services.OutcomeInvalid:        {http.StatusBadRequest, ErrCodeBadRequest},
}

var persistError = apiError{http.StatusInternalServerError, ErrCodePersistFailed}
