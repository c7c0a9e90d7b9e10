package catalog

import (
	"bytes"
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"

	"bibliogoya-backend/internal/platform/db/dbtest"
	"bibliogoya-backend/internal/platform/logging"
)

func newTestService(t *testing.T) (*Service, *sqlx.DB) {
	t.Helper()
	conn := dbtest.New(t)
	return NewService(conn, logging.Discard()), conn
}

func strp(s string) *string { return &s }

func TestCreateAndUpdateBook(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateBook(ctx, CreateBookRequest{Title: "  ", Author: "a", Genre: "g"})
	assert.Equal(t, 400, ToHTTPStatus(err))

	_, err = svc.CreateBook(ctx, CreateBookRequest{Title: "t", Author: "a", Genre: "g", PublishedOn: strp("12/05/1605")})
	assert.Equal(t, 400, ToHTTPStatus(err))

	b, err := svc.CreateBook(ctx, CreateBookRequest{
		Title: "El ingenioso hidalgo", Author: "Miguel de Cervantes", Genre: "Novela", PublishedOn: strp("1605-01-16"),
	})
	require.NoError(t, err)
	assert.True(t, b.Available)
	require.NotNil(t, b.PublishedOn)
	assert.Equal(t, "1605-01-16", *b.PublishedOn)

	up, err := svc.UpdateBook(ctx, b.ID, UpdateBookRequest{Title: strp("Don Quijote de la Mancha"), PublishedOn: strp("")})
	require.NoError(t, err)
	assert.Equal(t, "Don Quijote de la Mancha", up.Title)
	assert.Equal(t, "Miguel de Cervantes", up.Author)
	assert.Nil(t, up.PublishedOn)

	// no-op update still finds the row
	same, err := svc.UpdateBook(ctx, b.ID, UpdateBookRequest{Title: strp("Don Quijote de la Mancha")})
	require.NoError(t, err)
	assert.Equal(t, up, same)

	_, err = svc.UpdateBook(ctx, b.ID+100, UpdateBookRequest{Title: strp("x")})
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = svc.UpdateBook(ctx, b.ID, UpdateBookRequest{Genre: strp(" ")})
	assert.Equal(t, 400, ToHTTPStatus(err))
}

func TestDeleteBook_RefusedWhileLent(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)

	lent := dbtest.InsertBook(t, conn, "lent", false)
	free := dbtest.InsertBook(t, conn, "free", true)
	member := dbtest.InsertMember(t, conn, "reader", "Member")
	conn.MustExec(`INSERT INTO loans (loan_ulid, book_id, member_id, loan_date, due_date) VALUES ('L1', ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, lent, member)
	conn.MustExec(`INSERT INTO reservations (reservation_ulid, book_id, member_id, reserved_at, status) VALUES ('R1', ?, ?, CURRENT_TIMESTAMP, 'Completed')`, free, member)

	err := svc.DeleteBook(ctx, lent)
	assert.ErrorIs(t, err, ErrBookOnLoan)
	assert.Equal(t, 409, ToHTTPStatus(err))

	require.NoError(t, svc.DeleteBook(ctx, free))
	var n int
	require.NoError(t, conn.Get(&n, `SELECT COUNT(*) FROM reservations`))
	assert.Equal(t, 0, n, "reservation history goes with the book")

	assert.ErrorIs(t, svc.DeleteBook(ctx, free), ErrBookNotFound)
}

func TestSearch_FoldsAccentsAndCase(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, in := range []CreateBookRequest{
		{Title: "Pedro Páramo", Author: "Juan Rulfo", Genre: "Novela"},
		{Title: "PEDRO Y EL LOBO", Author: "Sergéi Prokófiev", Genre: "Infantil"},
		{Title: "Canción de Navidad", Author: "Charles Dickens", Genre: "Novela"},
	} {
		_, err := svc.CreateBook(ctx, in)
		require.NoError(t, err)
	}

	res, err := svc.Search(ctx, SearchQuery{Q: "pedro"}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)

	res, err = svc.Search(ctx, SearchQuery{Q: "PARAMO"}, Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Pedro Páramo", res.Items[0].Title)

	res, err = svc.Search(ctx, SearchQuery{Q: "cancion"}, Page{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	res, err = svc.Search(ctx, SearchQuery{Q: "prokofiev"}, Page{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1, "author matches too")

	novela := "Novela"
	res, err = svc.Search(ctx, SearchQuery{Genre: &novela}, Page{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.NextOffset)
}

func TestImportCSV_Encodings(t *testing.T) {
	const doc = "title,author,genre,published_on\n" +
		"La casa de Bernarda Alba,Federico García Lorca,Teatro,1945-03-08\n" +
		"Niebla,Miguel de Unamuno,Novela,\n"

	win1252, err := charmap.Windows1252.NewEncoder().Bytes([]byte(doc))
	require.NoError(t, err)
	utf16, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM).NewEncoder().Bytes([]byte(doc))
	require.NoError(t, err)

	cases := []struct {
		name    string
		raw     []byte
		wantEnc string
	}{
		{"utf-8", []byte(doc), EncUTF8},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, doc...), EncUTF8},
		{"utf-16 bom", utf16, EncUTF16},
		{"windows-1252", win1252, EncWindows1252},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			res, err := svc.ImportCSV(context.Background(), tc.raw, "")
			require.NoError(t, err)
			assert.Equal(t, tc.wantEnc, res.Encoding)
			assert.Equal(t, 2, res.OkCount)
			assert.Equal(t, 0, res.NgCount)

			got, err := svc.Search(context.Background(), SearchQuery{Q: "garcia lorca"}, Page{})
			require.NoError(t, err)
			require.Len(t, got.Items, 1)
			assert.Equal(t, "Federico García Lorca", got.Items[0].Author)
		})
	}
}

func TestImportCSV_RowErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportCSV(ctx, []byte("name,writer\nx,y\n"), "")
	assert.Equal(t, 400, ToHTTPStatus(err))

	_, err = svc.ImportCSV(ctx, []byte(""), "")
	assert.Equal(t, 400, ToHTTPStatus(err))

	_, err = svc.ImportCSV(ctx, []byte("title,author,genre\n"), "ebcdic")
	assert.Equal(t, 400, ToHTTPStatus(err))

	res, err := svc.ImportCSV(ctx, []byte("Genre,Title,Author\nPoesía,Campos de Castilla,Antonio Machado\n,Sin género,Anon\nEnsayo,Meditaciones del Quijote,Ortega\n"), "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.OkCount)
	assert.Equal(t, 1, res.NgCount)
	assert.False(t, res.Results[1].Ok)
	assert.Equal(t, 2, res.Results[1].Row)
	require.NotNil(t, res.Results[2].BookID)
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Réquiem por un campesino español", Author: "Ramón J. Sender", Genre: "Novela"})
	require.NoError(t, err)

	var plain bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, &plain, ""))
	assert.Contains(t, plain.String(), "title,author,genre,published_on,available\n")
	assert.Contains(t, plain.String(), "Réquiem por un campesino español,Ramón J. Sender,Novela,,true\n")

	var legacy bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, &legacy, EncWindows1252))
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(legacy.Bytes())
	require.NoError(t, err)
	assert.Equal(t, plain.String(), string(decoded))
	assert.NotEqual(t, plain.Bytes(), legacy.Bytes())

	// round trip through import
	svc2, _ := newTestService(t)
	res, err := svc2.ImportCSV(ctx, legacy.Bytes(), "")
	require.NoError(t, err)
	assert.Equal(t, EncWindows1252, res.Encoding)
	assert.Equal(t, 1, res.OkCount)

	assert.Error(t, svc.ExportCSV(ctx, &bytes.Buffer{}, "klingon"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, fold("quijote"), fold("QUIJOTÉ"))
	assert.Equal(t, "senor", fold("Señor"))
	assert.Equal(t, "strasse", fold("STRASSE"))
}
