package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bibliogoya-backend/internal/platform/identity"
)

type AuthHandler struct{ svc AuthService }

// RegisterRoutes mounts the public login endpoint.
func RegisterRoutes(r gin.IRoutes, svc AuthService) {
	h := &AuthHandler{svc: svc}
	r.POST("/login", h.Login)
}

// RegisterMemberRoutes mounts endpoints for the signed-in caller; r must run RequireAuth.
func RegisterMemberRoutes(r gin.IRoutes, svc AuthService) {
	h := &AuthHandler{svc: svc}
	r.PUT("/me/password", h.ChangePassword)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid json")
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "email or password is incorrect")
			return
		}
		abort(c, http.StatusInternalServerError, "INTERNAL", "login failed")
		return
	}
	c.JSON(http.StatusOK, token)
}

type ChangePasswordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	me, ok := identity.From(c.Request.Context())
	if !ok {
		abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "login required")
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid json")
		return
	}

	err := h.svc.ChangePassword(c.Request.Context(), me.MemberID, req.Current, req.New)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, ErrWeakPassword):
		abort(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "current password is incorrect")
	case errors.Is(err, ErrNotFound):
		abort(c, http.StatusNotFound, "NOT_FOUND", "member not found")
	default:
		abort(c, http.StatusInternalServerError, "INTERNAL", "change password failed")
	}
}
