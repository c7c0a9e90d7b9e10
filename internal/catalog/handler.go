package catalog

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CSV のアップロード上限
const maxImportBytes = 8 << 20

type Handler struct{ svc *Service }

// RegisterRoutes mounts catalog search for signed-in members.
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/catalog/search", h.Search)
}

// RegisterAdminRoutes mounts book administration under an Administrator-only group.
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/books", h.CreateBook)
	r.GET("/books", h.Search)
	r.GET("/books/export", h.ExportCSV)
	r.POST("/books/import", h.ImportCSV)
	r.GET("/books/:book_id", h.GetBook)
	r.PUT("/books/:book_id", h.UpdateBook)
	r.DELETE("/books/:book_id", h.DeleteBook)
}

func (h *Handler) Search(c *gin.Context) {
	q := SearchQuery{Q: c.Query("q")}
	if v := c.Query("genre"); v != "" {
		q.Genre = &v
	}
	p := Page{
		Limit:  atoiDef(c.Query("limit"), 50),
		Offset: atoiDef(c.Query("offset"), 0),
	}
	res, err := h.svc.Search(c.Request.Context(), q, p)
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateBook(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.CreateBook(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/api/v1/books/"+strconv.FormatInt(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetBook(c.Request.Context(), id)
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateBook(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteBook(c.Request.Context(), id); err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportCSV accepts either a multipart "file" field or the CSV as the raw request body.
// ?encoding= forces the input encoding; otherwise it is detected.
func (h *Handler) ImportCSV(c *gin.Context) {
	var src io.Reader = c.Request.Body
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "cannot open upload"))
			return
		}
		defer f.Close()
		src = f
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(src, maxImportBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "cannot read upload"))
		return
	}
	if n > maxImportBytes {
		c.JSON(http.StatusRequestEntityTooLarge, apiErr(CodeInvalidArgument, "csv too large"))
		return
	}

	res, err := h.svc.ImportCSV(c.Request.Context(), buf.Bytes(), c.Query("encoding"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ExportCSV(c *gin.Context) {
	enc := c.Query("encoding")
	if _, ok := lookupEncoding(enc); enc != "" && !ok {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "unsupported encoding: "+enc))
		return
	}
	var buf bytes.Buffer
	if err := h.svc.ExportCSV(c.Request.Context(), &buf, enc); err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="books.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// ===== helpers =====

func bookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "book_id must be a number"))
		return 0, false
	}
	return id, true
}

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return d
	}
	return v
}

type apiErrorBody struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func apiErr(code Code, msg string) apiErrorBody {
	var b apiErrorBody
	b.Error.Code = code
	b.Error.Message = msg
	return b
}

func apiErrFrom(err error) apiErrorBody {
	var api *APIError
	if errors.As(err, &api) {
		return apiErr(api.Code, api.Message)
	}
	return apiErr(CodeInternal, err.Error())
}
