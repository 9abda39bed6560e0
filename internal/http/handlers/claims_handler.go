package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/services"
	"github.com/tbourn/claimbot/internal/utils"
)

// ClaimRequest is the JSON payload for claiming a posted message.
type ClaimRequest struct {
	MessageID string      `json:"message_id" binding:"required" example:"1187412345678901234"`
	Post      domain.Post `json:"post"`
}

// ClaimOwnerResponse reports who owns a claimed message.
type ClaimOwnerResponse struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

// ListCollectionResponse wraps a page of a user's collection.
type ListCollectionResponse struct {
	Posts      []domain.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

// CreateClaim godoc
// @ID          createClaim
// @Summary     Claim a posted message
// @Tags        Claims
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Acting user"
// @Param       body       body    handlers.ClaimRequest  true  "Claim payload"
// @Success     201  {object}  services.Response
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user"
// @Failure     409  {object}  handlers.ErrorResponse  "Already claimed"
// @Failure     500  {object}  handlers.ErrorResponse  "Claim not saved"
// @Router      /claims [post]
func (h *Handlers) CreateClaim(c *gin.Context) {
	uid, okUser := actingUser(c)
	if !okUser {
		return
	}
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.MessageID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message_id and post are required")
		return
	}

	resp, err := h.events.Handle(c.Request.Context(), services.ClaimRequested{
		MessageID: req.MessageID,
		UserID:    uid,
		Post:      req.Post,
	})
	respond(c, resp, err, http.StatusCreated)
}

// GetClaim godoc
// @ID          getClaim
// @Summary     Claim owner of a message
// @Tags        Claims
// @Produce     json
// @Param       messageId  path  string  true  "Message ID"
// @Success     200  {object}  handlers.ClaimOwnerResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Not claimed"
// @Router      /claims/{messageId} [get]
func (h *Handlers) GetClaim(c *gin.Context) {
	msgID := c.Param("messageId")
	owner, found := h.claims.Owner(msgID)
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not claimed")
		return
	}
	ok(c, http.StatusOK, ClaimOwnerResponse{MessageID: msgID, UserID: owner})
}

// ListCollection godoc
// @ID          listCollection
// @Summary     A user's claimed posts (paginated)
// @Tags        Collections
// @Produce     json
// @Param       id         path   string  true   "User ID"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListCollectionResponse
// @Router      /users/{id}/collection [get]
func (h *Handlers) ListCollection(c *gin.Context) {
	page, pageSize := clampPagination(c)
	all := h.collections.List(c.Param("id"))

	total := len(all)
	start, end, totalPages := utils.Window(total, page, pageSize)

	ok(c, http.StatusOK, ListCollectionResponse{
		Posts: append([]domain.Post{}, all[start:end]...),
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int64(total),
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
