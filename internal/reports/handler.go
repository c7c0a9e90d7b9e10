package reports

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

// RegisterAdminRoutes mounts the read-only report endpoints.
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/reports/loans", h.LoansBetween)
	r.GET("/reports/overdue", h.Overdue)
	r.GET("/reports/top-members", h.TopMembers)
	r.GET("/reports/popular-books", h.PopularBooks)
	r.GET("/reports/genres", h.GenreTrends)
}

func (h *Handler) LoansBetween(c *gin.Context) {
	from, err := parseTime(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "from must be YYYY-MM-DD or RFC3339"))
		return
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "to must be YYYY-MM-DD or RFC3339"))
		return
	}
	res, err := h.svc.LoansBetween(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Overdue(c *gin.Context) {
	res, err := h.svc.Overdue(c.Request.Context())
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) TopMembers(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	res, err := h.svc.TopMembers(c.Request.Context(), limit)
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) PopularBooks(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	res, err := h.svc.PopularBooks(c.Request.Context(), limit)
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GenreTrends(c *gin.Context) {
	res, err := h.svc.GenreTrends(c.Request.Context())
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ===== helpers =====

// parseTime accepts a date (midnight UTC) or a full RFC3339 timestamp; empty means zero.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func limitParam(c *gin.Context) (int, bool) {
	s := c.Query("limit")
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "limit must be a number"))
		return 0, false
	}
	return n, true
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
