package reports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliogoya-backend/internal/lending"
	"bibliogoya-backend/internal/platform/db"
	"bibliogoya-backend/internal/platform/db/dbtest"
	"bibliogoya-backend/internal/platform/logging"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

type fixture struct {
	conn        *sqlx.DB
	clock       *stepClock
	ana, bea    int64
	novel, poem int64
}

// seed: ana borrows and returns the novel in January, bea borrows it on Feb 1,
// ana borrows the poetry book on Feb 15.
func seed(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.New(t)
	f := fixture{conn: conn, clock: &stepClock{}}

	f.ana = dbtest.InsertMember(t, conn, "ana", "Member")
	f.bea = dbtest.InsertMember(t, conn, "bea", "Member")
	f.novel = dbtest.InsertBook(t, conn, "Nada", true)
	var err error
	f.poem, err = db.InsertReturningID(ctx, conn,
		`INSERT INTO books (title, author, genre, available) VALUES (?, ?, ?, ?)`, "Poeta en Nueva York", "Lorca", "Poetry", true)
	require.NoError(t, err)

	lend := lending.NewService(conn, lending.WithClock(f.clock))

	f.clock.t = day(2024, time.January, 10)
	_, err = lend.Borrow(ctx, f.novel, f.ana)
	require.NoError(t, err)
	f.clock.t = day(2024, time.January, 20)
	_, err = lend.Return(ctx, f.novel, f.ana)
	require.NoError(t, err)

	f.clock.t = day(2024, time.February, 1)
	_, err = lend.Borrow(ctx, f.novel, f.bea)
	require.NoError(t, err)
	f.clock.t = day(2024, time.February, 15)
	_, err = lend.Borrow(ctx, f.poem, f.ana)
	require.NoError(t, err)
	return f
}

func TestLoansBetween(t *testing.T) {
	ctx := context.Background()
	f := seed(t)
	svc := NewService(f.conn, logging.Discard())

	res, err := svc.LoansBetween(ctx, day(2024, time.February, 1), day(2024, time.February, 10))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, f.bea, res.Items[0].MemberID)
	assert.Equal(t, "Nada", res.Items[0].Title)
	assert.Equal(t, day(2024, time.March, 1), res.Items[0].DueDate)

	// returned loans are gone from the live table
	res, err = svc.LoansBetween(ctx, day(2024, time.January, 1), day(2024, time.March, 1))
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)

	_, err = svc.LoansBetween(ctx, day(2024, time.March, 1), day(2024, time.March, 1))
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(err))
}

func TestOverdue(t *testing.T) {
	f := seed(t)
	svc := NewService(f.conn, nil).WithClock(&stepClock{t: day(2024, time.March, 10)})

	res, err := svc.Overdue(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, f.novel, res.Items[0].BookID)
}

func TestRankings(t *testing.T) {
	ctx := context.Background()
	f := seed(t)
	svc := NewService(f.conn, nil)

	top, err := svc.TopMembers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top.Items, 2)
	assert.Equal(t, MemberRank{MemberID: f.ana, Name: "ana", Surname: "Test", Borrows: 2}, top.Items[0])
	assert.Equal(t, int64(1), top.Items[1].Borrows)

	books, err := svc.PopularBooks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, books.Items, 1)
	assert.Equal(t, f.novel, books.Items[0].BookID)
	assert.Equal(t, int64(2), books.Items[0].Borrows)

	genres, err := svc.GenreTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, []GenreCount{{Genre: "Novel", Borrows: 2}, {Genre: "Poetry", Borrows: 1}}, genres.Items)

	_, err = svc.TopMembers(ctx, 1000)
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(err))
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := seed(t)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/admin"), NewService(f.conn, nil))

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/admin/reports/loans?from=2024-02-01&to=2024-02-10")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"title":"Nada"`)

	assert.Equal(t, http.StatusBadRequest, get("/admin/reports/loans?from=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, get("/admin/reports/top-members?limit=x").Code)
	assert.Equal(t, http.StatusOK, get("/admin/reports/popular-books?limit=5").Code)
	assert.Equal(t, http.StatusOK, get("/admin/reports/genres").Code)
	assert.Equal(t, http.StatusOK, get("/admin/reports/overdue").Code)
}
