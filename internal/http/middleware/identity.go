package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// CtxKeyUserID is the Gin context key holding the acting user id.
	CtxKeyUserID = "userID"
	// HeaderUserID carries the acting user id on ops API requests.
	HeaderUserID = "X-User-ID"
)

// OpsAuth requires "Authorization: Bearer <token>" matching token. An empty
// token rejects every request, so the API stays closed until one is
// configured. Must run before ActingUser.
func OpsAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		got, ok := bearer(c.GetHeader("Authorization"))
		if !ok || len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="claimbot-ops"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(HeaderRequestID),
				"code":       "unauthorized",
				"message":    "missing or invalid ops token",
			})
			return
		}
		c.Next()
	}
}

func bearer(h string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// ActingUser copies a non-empty X-User-ID header into the Gin context so the
// logger, the rate limiter and the handlers agree on who is acting. The
// header is only trusted behind OpsAuth.
func ActingUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			c.Set(CtxKeyUserID, uid)
		}
		c.Next()
	}
}

// UserID returns the acting user id set by ActingUser, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
