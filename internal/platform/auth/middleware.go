package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bibliogoya-backend/internal/platform/identity"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": msg}})
}

// RequireAuth: Authorization: Bearer <token> を検証して identity を request context に載せる
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing Authorization header")
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid Authorization header")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "empty token")
			return
		}

		id, err := ParseToken(secret, tokenStr)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
			return
		}

		c.Request = c.Request.WithContext(identity.With(c.Request.Context(), id))
		c.Set(CtxUserIDKey, id.MemberID)
		c.Set(CtxRoleKey, string(id.Role))
		c.Next()
	}
}

// RequireRole: 例) 管理者のみ許可したい時に RequireAuth の後ろに追加
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	roleSet := make(map[identity.Role]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, ok := identity.From(c.Request.Context())
		if !ok {
			abort(c, http.StatusForbidden, "PERMISSION_DENIED", "missing role")
			return
		}
		if _, allowed := roleSet[id.Role]; !allowed {
			abort(c, http.StatusForbidden, "PERMISSION_DENIED", "forbidden")
			return
		}
		c.Next()
	}
}
