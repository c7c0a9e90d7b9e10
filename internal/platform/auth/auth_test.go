package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliogoya-backend/internal/platform/db/dbtest"
	"bibliogoya-backend/internal/platform/identity"
	"bibliogoya-backend/internal/platform/logging"
)

var testSecret = []byte("test-secret")

func newTestService(t *testing.T) (*Service, *sqlx.DB) {
	t.Helper()
	conn := dbtest.New(t)
	return NewService(conn, testSecret, time.Hour, logging.Discard()), conn
}

func withPassword(t *testing.T, svc *Service, memberID int64, pw string) {
	t.Helper()
	hash, err := HashPassword(pw)
	require.NoError(t, err)
	n, err := svc.store.SetPasswordHash(context.Background(), memberID, hash)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)

	admin := dbtest.InsertMember(t, conn, "admin", "Administrator")
	dbtest.InsertMember(t, conn, "nopw", "Member")
	withPassword(t, svc, admin, "correct horse")

	tok, err := svc.Login(ctx, "admin@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, admin, tok.MemberID)
	assert.Equal(t, "Administrator", tok.Role)

	id, err := ParseToken(testSecret, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{MemberID: admin, Role: identity.RoleAdministrator}, id)

	_, err = svc.Login(ctx, "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nopw@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseToken_Rejects(t *testing.T) {
	sign := func(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	future := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"wrong secret": sign(jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "1", "role": "Member", "exp": future}),
		"expired":      sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "1", "role": "Member", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no exp":       sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "1", "role": "Member"}),
		"bad sub":      sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "abc", "role": "Member", "exp": future}),
		"bad role":     sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "1", "role": "root", "exp": future}),
		"hs512":        sign(jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"sub": "1", "role": "Member", "exp": future}),
		"garbage":      "not.a.token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(testSecret, tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	m := dbtest.InsertMember(t, conn, "reader", "Member")
	withPassword(t, svc, m, "first-password")

	assert.ErrorIs(t, svc.ChangePassword(ctx, m, "nope", "second-password"), ErrInvalidCredentials)
	assert.ErrorIs(t, svc.ChangePassword(ctx, m, "first-password", "short"), ErrWeakPassword)
	require.NoError(t, svc.ChangePassword(ctx, m, "first-password", "second-password"))

	_, err := svc.Login(ctx, "reader@example.com", "second-password")
	assert.NoError(t, err)
	assert.ErrorIs(t, svc.ChangePassword(ctx, m+100, "", "whatever-long"), ErrNotFound)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	svc, conn := newTestService(t)

	admin := dbtest.InsertMember(t, conn, "admin", "Administrator")
	member := dbtest.InsertMember(t, conn, "reader", "Member")
	withPassword(t, svc, admin, "admin-password")
	withPassword(t, svc, member, "member-password")

	r := gin.New()
	RegisterRoutes(r, svc)
	authed := r.Group("/", RequireAuth(testSecret))
	authed.GET("/whoami", func(c *gin.Context) {
		id, _ := identity.From(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"member_id": id.MemberID, "role": id.Role})
	})
	authed.Group("/admin", RequireRole(identity.RoleAdministrator)).GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	login := func(email, pw string) string {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login",
			strings.NewReader(`{"email":"`+email+`","password":"`+pw+`"}`)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		tok, err := svc.Login(ctx, email, pw)
		require.NoError(t, err)
		return tok.AccessToken
	}
	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	adminTok := login("admin@example.com", "admin-password")
	memberTok := login("reader@example.com", "member-password")

	assert.Equal(t, http.StatusUnauthorized, get("/whoami", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/whoami", "garbage").Code)

	w := get("/whoami", memberTok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"Member"`)

	assert.Equal(t, http.StatusForbidden, get("/admin/ping", memberTok).Code)
	assert.Equal(t, http.StatusOK, get("/admin/ping", adminTok).Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"admin@example.com","password":"x"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHENTICATED")
}
