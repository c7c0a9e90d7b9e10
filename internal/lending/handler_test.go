package lending

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliogoya-backend/internal/platform/db/dbtest"
	"bibliogoya-backend/internal/platform/identity"
)

// asCaller stands in for the JWT middleware: X-Test-Member carries the member id.
func asCaller(role identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v := c.GetHeader("X-Test-Member"); v != "" {
			id, _ := strconv.ParseInt(v, 10, 64)
			ctx := identity.With(c.Request.Context(), identity.Identity{MemberID: id, Role: role})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterMemberRoutes(r.Group("/api/v1", asCaller(identity.RoleMember)), svc)
	RegisterAdminRoutes(r.Group("/api/v1/admin", asCaller(identity.RoleAdministrator)), svc)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, member int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if member > 0 {
		req.Header.Set("X-Test-Member", strconv.FormatInt(member, 10))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorDTO {
	t.Helper()
	var e errorDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestHandler_BorrowAndReturn(t *testing.T) {
	svc, conn := newTestService(t)
	r := newTestRouter(svc)

	book := dbtest.InsertBook(t, conn, "Tirano Banderas", true)
	member := dbtest.InsertMember(t, conn, "reader", "Member")
	path := "/api/v1/books/" + strconv.FormatInt(book, 10)

	w := do(t, r, http.MethodPost, path+"/borrow", member, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res BorrowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, book, res.Loan.Book.ID)
	assert.Equal(t, StatusPending, res.Reservation.Status)
	assert.Equal(t, "/api/v1/me/loans", w.Header().Get("Location"))

	w = do(t, r, http.MethodPost, path+"/borrow", member, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeConflict, decodeError(t, w).Error.Code)

	w = do(t, r, http.MethodGet, "/api/v1/me/loans", member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Tirano Banderas")

	w = do(t, r, http.MethodPost, path+"/return", member, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, path+"/return", member, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_RequestValidation(t *testing.T) {
	svc, _ := newTestService(t)
	r := newTestRouter(svc)

	w := do(t, r, http.MethodPost, "/api/v1/books/1/borrow", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/books/abc/borrow", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidArgument, decodeError(t, w).Error.Code)

	w = do(t, r, http.MethodGet, "/api/v1/books?filter=borrowed", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/admin/loans?member_id=x", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_AdminLoansAndReservations(t *testing.T) {
	svc, conn := newTestService(t)
	r := newTestRouter(svc)

	book := dbtest.InsertBook(t, conn, "Doña Perfecta", true)
	member := dbtest.InsertMember(t, conn, "reader", "Member")
	admin := dbtest.InsertMember(t, conn, "admin", "Administrator")

	w := do(t, r, http.MethodPost, "/api/v1/admin/loans", admin, CreateLoanRequest{BookID: book, MemberID: member})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res BorrowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "/api/v1/admin/loans/"+strconv.FormatInt(res.Loan.LoanID, 10), w.Header().Get("Location"))

	rid := strconv.FormatInt(res.Reservation.ReservationID, 10)
	w = do(t, r, http.MethodPatch, "/api/v1/admin/reservations/"+rid, admin, UpdateReservationRequest{Status: "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rr ReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rr))
	assert.Equal(t, StatusCompleted, rr.Status)

	w = do(t, r, http.MethodPatch, "/api/v1/admin/reservations/"+rid, admin, UpdateReservationRequest{Status: "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/admin/reservations?status=Completed", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ListReservationsResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Items, 1)

	w = do(t, r, http.MethodPost, "/api/v1/admin/reservations/"+rid+"/cancel", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, r, http.MethodGet, "/api/v1/admin/reservations/"+rid, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rr))
	assert.Equal(t, StatusCancelled, rr.Status)

	lid := strconv.FormatInt(res.Loan.LoanID, 10)
	w = do(t, r, http.MethodGet, "/api/v1/admin/loans/"+lid, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var loan LoanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loan))
	assert.Equal(t, res.Loan.LoanID, loan.LoanID)
	assert.Equal(t, book, loan.Book.ID)

	w = do(t, r, http.MethodDelete, "/api/v1/admin/loans/"+lid, admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/admin/invariant", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)

	w = do(t, r, http.MethodDelete, "/api/v1/admin/loans/"+lid, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
