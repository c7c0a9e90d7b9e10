package apidocs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSpecDocumentsRoutes(t *testing.T) {
	var doc struct {
		OpenAPI string                    `yaml:"openapi"`
		Paths   map[string]map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(Spec(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)

	for path, method := range map[string]string{
		"/login":                                      "post",
		"/books/{book_id}/borrow":                     "post",
		"/books/{book_id}/return":                     "post",
		"/me/loans":                                   "get",
		"/admin/loans/{loan_id}":                      "delete",
		"/admin/reservations/{reservation_id}":        "patch",
		"/admin/reservations/{reservation_id}/cancel": "post",
		"/admin/books/import":                         "post",
		"/admin/members":                              "post",
		"/admin/reports/top-members":                  "get",
		"/admin/invariant":                            "get",
	} {
		require.Contains(t, doc.Paths, path)
		assert.Contains(t, doc.Paths[path], method, path)
	}
}

func TestRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, SpecPath, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Spec(), w.Body.Bytes())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger")
}
