package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/claimbot/internal/http/middleware"
	"github.com/tbourn/claimbot/internal/services"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail aborts with an ErrorResponse. Only 5xx are logged; 4xx are the
// caller's problem and already show up in the access log.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get(middleware.HeaderRequestID),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router write fallbacks in the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// respond writes an event Response. Claimed and Viewing return the Response
// itself with the success status; a clear that empties the collection still
// carries a View and counts as success.
func respond(c *gin.Context, resp services.Response, err error, success int) {
	switch {
	case resp.Outcome == services.OutcomeClaimed, resp.Outcome == services.OutcomeViewing:
		ok(c, success, resp)
		return
	case resp.Outcome == services.OutcomeEmpty && resp.View != nil:
		ok(c, http.StatusOK, resp)
		return
	}

	e, known := outcomeErrors[resp.Outcome]
	if !known {
		e = persistError
		if err != nil {
			_ = c.Error(err)
		}
	}
	fail(c, e.status, e.code, resp.Message)
}
