package members

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliogoya-backend/internal/platform/db/dbtest"
	"bibliogoya-backend/internal/platform/logging"
)

func newTestService(t *testing.T) (*Service, *sqlx.DB) {
	t.Helper()
	conn := dbtest.New(t)
	return NewService(conn, logging.Discard()), conn
}

func strp(s string) *string { return &s }

func validRequest() CreateMemberRequest {
	return CreateMemberRequest{
		Name:       "Lucía",
		Surname:    "Fernández",
		Email:      "Lucia@Example.com",
		NationalID: "12345678z",
		Phone:      "600000000",
	}
}

func TestCreateMember(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	m, err := svc.CreateMember(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, "lucia@example.com", m.Email)
	assert.Equal(t, "12345678Z", m.NationalID)
	assert.Equal(t, "Member", m.Role)
	assert.False(t, m.HasLogin)
	assert.False(t, m.CreatedAt.IsZero())

	t.Run("duplicates conflict", func(t *testing.T) {
		dupEmail := validRequest()
		dupEmail.NationalID = "X0000000T"
		_, err := svc.CreateMember(ctx, dupEmail)
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.Equal(t, 409, ToHTTPStatus(err))

		dupID := validRequest()
		dupID.Email = "other@example.com"
		_, err = svc.CreateMember(ctx, dupID)
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("validation", func(t *testing.T) {
		for name, mut := range map[string]func(*CreateMemberRequest){
			"missing surname": func(r *CreateMemberRequest) { r.Surname = " " },
			"bad email":       func(r *CreateMemberRequest) { r.Email = "not-an-email" },
			"named email":     func(r *CreateMemberRequest) { r.Email = "Lucía <l@example.com>" },
			"bad role":        func(r *CreateMemberRequest) { r.Role = "Librarian" },
			"short password":  func(r *CreateMemberRequest) { r.Password = strp("123") },
		} {
			req := validRequest()
			req.Email, req.NationalID = "v@example.com", "V1"
			mut(&req)
			_, err := svc.CreateMember(ctx, req)
			assert.Equal(t, 400, ToHTTPStatus(err), name)
		}
	})

	t.Run("with password and admin role", func(t *testing.T) {
		req := validRequest()
		req.Email, req.NationalID, req.Role, req.Password = "admin@example.com", "A1", "administrator", strp("long-enough")
		m, err := svc.CreateMember(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "Administrator", m.Role)
		assert.True(t, m.HasLogin)
	})
}

func TestUpdateAndList(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)

	a := dbtest.InsertMember(t, conn, "ana", "Member")
	dbtest.InsertMember(t, conn, "bea", "Administrator")
	dbtest.InsertMember(t, conn, "carla", "Member")

	up, err := svc.UpdateMember(ctx, a, UpdateMemberRequest{Surname: strp("Zubizarreta"), Phone: strp("")})
	require.NoError(t, err)
	assert.Equal(t, "Zubizarreta", up.Surname)
	assert.Equal(t, "", up.Phone)

	_, err = svc.UpdateMember(ctx, a, UpdateMemberRequest{Email: strp("bea@example.com")})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.UpdateMember(ctx, a, UpdateMemberRequest{Name: strp("")})
	assert.Equal(t, 400, ToHTTPStatus(err))

	_, err = svc.UpdateMember(ctx, a+100, UpdateMemberRequest{Name: strp("x")})
	assert.ErrorIs(t, err, ErrMemberNotFound)

	all, err := svc.ListMembers(ctx, MemberFilter{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, "Zubizarreta", all.Items[2].Surname, "ordered by surname")

	admin := "administrator"
	admins, err := svc.ListMembers(ctx, MemberFilter{Role: &admin}, Page{})
	require.NoError(t, err)
	require.Len(t, admins.Items, 1)
	assert.Equal(t, "bea", admins.Items[0].Name)

	found, err := svc.ListMembers(ctx, MemberFilter{Q: "car"}, Page{})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "carla", found.Items[0].Name)

	paged, err := svc.ListMembers(ctx, MemberFilter{}, Page{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, paged.Items, 2)
	assert.Equal(t, 2, paged.NextOffset)
}

func TestDeleteMember_RefusedWhileHoldingLoan(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)

	holder := dbtest.InsertMember(t, conn, "holder", "Member")
	free := dbtest.InsertMember(t, conn, "free", "Member")
	book := dbtest.InsertBook(t, conn, "b", false)
	conn.MustExec(`INSERT INTO loans (loan_ulid, book_id, member_id, loan_date, due_date) VALUES ('L1', ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, book, holder)

	err := svc.DeleteMember(ctx, holder)
	assert.ErrorIs(t, err, ErrMemberHasLoans)
	require.NoError(t, svc.DeleteMember(ctx, free))
	assert.ErrorIs(t, svc.DeleteMember(ctx, free), ErrMemberNotFound)
}

func TestSetPassword(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	m := dbtest.InsertMember(t, conn, "reader", "Member")

	assert.Equal(t, 400, ToHTTPStatus(svc.SetPassword(ctx, m, "short")))
	assert.ErrorIs(t, svc.SetPassword(ctx, m+100, "long-enough"), ErrMemberNotFound)
	require.NoError(t, svc.SetPassword(ctx, m, "long-enough"))

	got, err := svc.GetMember(ctx, m)
	require.NoError(t, err)
	assert.True(t, got.HasLogin)
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService(t)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/admin"), svc)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	w := do(http.MethodPost, "/admin/members", `{"name":"Rosa","surname":"Chacel","email":"rosa@example.com","national_id":"R1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	loc := w.Header().Get("Location")
	require.NotEmpty(t, loc)
	path := "/admin/members/" + loc[strings.LastIndex(loc, "/")+1:]

	w = do(http.MethodPost, "/admin/members", `{"name":"Rosa","surname":"Chacel","email":"rosa@example.com","national_id":"R2"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(http.MethodPut, path+"/password", `{"password":"new-password"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_login":true`)

	w = do(http.MethodGet, "/admin/members?role=nobody", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
