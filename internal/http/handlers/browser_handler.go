package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/claimbot/internal/services"
)

// NavigateRequest is the JSON payload for moving a browser cursor.
type NavigateRequest struct {
	// Direction is one of first, prev, next, last.
	Direction string `json:"direction" binding:"required" example:"next"`
}

// OpenBrowser godoc
// @ID          openBrowser
// @Summary     Open a collection browser for the acting user
// @Tags        Browser
// @Produce     json
// @Param       X-User-ID  header  string  true  "Acting user"
// @Success     201  {object}  services.Response
// @Failure     404  {object}  handlers.ErrorResponse  "Empty collection"
// @Router      /browser/sessions [post]
func (h *Handlers) OpenBrowser(c *gin.Context) {
	uid, okUser := actingUser(c)
	if !okUser {
		return
	}
	resp, err := h.events.Handle(c.Request.Context(), services.BrowserOpen{UserID: uid})
	respond(c, resp, err, http.StatusCreated)
}

// NavigateBrowser godoc
// @ID          navigateBrowser
// @Summary     Move a browser session's cursor
// @Tags        Browser
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Acting user"
// @Param       id         path    string  true  "Session ID"
// @Param       body       body    handlers.NavigateRequest  true  "Direction"
// @Success     200  {object}  services.Response
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Session expired"
// @Router      /browser/sessions/{id}/navigate [post]
func (h *Handlers) NavigateBrowser(c *gin.Context) {
	uid, okUser := actingUser(c)
	if !okUser {
		return
	}
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "direction required")
		return
	}
	dir, err := services.ParseDirection(req.Direction)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "direction must be one of first, prev, next, last")
		return
	}

	resp, err := h.events.Handle(c.Request.Context(), services.BrowserNavigate{
		SessionID: c.Param("id"),
		UserID:    uid,
		Direction: dir,
	})
	respond(c, resp, err, http.StatusOK)
}

// ClearBrowserEntry godoc
// @ID          clearBrowserEntry
// @Summary     Remove the current entry and release its claim
// @Tags        Browser
// @Produce     json
// @Param       X-User-ID  header  string  true  "Acting user"
// @Param       id         path    string  true  "Session ID"
// @Success     200  {object}  services.Response
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Session expired"
// @Failure     500  {object}  handlers.ErrorResponse  "Change not saved"
// @Router      /browser/sessions/{id}/clear [post]
func (h *Handlers) ClearBrowserEntry(c *gin.Context) {
	uid, okUser := actingUser(c)
	if !okUser {
		return
	}
	resp, err := h.events.Handle(c.Request.Context(), services.BrowserClear{
		SessionID: c.Param("id"),
		UserID:    uid,
	})
	if err != nil && resp.View != nil {
		// The entry is gone in memory; report the failed save.
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodePersistFailed, resp.Message)
		return
	}
	respond(c, resp, err, http.StatusOK)
}
