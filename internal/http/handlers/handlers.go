// Package handlers implements the ops HTTP API over the claim core.
//
// Endpoints:
//   - GET  /users/{id}/collection                 (paginated collection)
//   - GET  /claims/{messageId}                    (claim owner)
//   - POST /claims                                (claim a post)
//   - POST /browser/sessions                      (open a collection browser)
//   - POST /browser/sessions/{id}/navigate        (move the cursor)
//   - POST /browser/sessions/{id}/clear           (remove the current entry)
//
// Handlers are transport-thin: mutations are turned into services events and
// the resulting Response outcome is mapped onto an HTTP status.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/http/middleware"
	"github.com/tbourn/claimbot/internal/services"
	"github.com/tbourn/claimbot/internal/utils"
)

//
// Service contracts
//

// EventHandler processes claim and browser events.
type EventHandler interface {
	Handle(ctx context.Context, ev services.Event) (services.Response, error)
}

// ClaimReader looks up claim owners.
type ClaimReader interface {
	Owner(messageID string) (string, bool)
}

// CollectionReader lists a user's claimed posts.
type CollectionReader interface {
	List(userID string) []domain.Post
}

//
// Handler wiring
//

// Handlers groups the ops API endpoints.
type Handlers struct {
	events      EventHandler
	claims      ClaimReader
	collections CollectionReader
}

// New constructs a Handlers instance.
func New(events EventHandler, claims ClaimReader, collections CollectionReader) *Handlers {
	return &Handlers{events: events, claims: claims, collections: collections}
}

// actingUser returns the X-User-ID of the request, failing it with 401 when
// absent.
func actingUser(c *gin.Context) (string, bool) {
	uid := middleware.UserID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header required")
		return "", false
	}
	return uid, true
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
