// handler.go
package genres

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

type errorBody struct {
	Error *APIError `json:"error"`
}

func fail(c *gin.Context, err error) {
	api, ok := err.(*APIError)
	if !ok {
		api = ErrInternal(err.Error())
	}
	c.JSON(toHTTPStatus(api), errorBody{Error: api})
}

// RegisterRoutes mounts the read-only genre list (enabled genres only).
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/genres", h.ListEnabled)
}

func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/genres", h.CreateGenre)
	r.GET("/genres", h.ListGenres)
	r.GET("/genres/:id", h.GetGenre)
	r.PUT("/genres/:id", h.UpdateGenre)
	r.DELETE("/genres/:id", h.DeleteGenre)
}

func (h *Handler) ListEnabled(c *gin.Context) {
	resp, err := h.svc.ListGenres(c.Request.Context(), "")
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": resp})
}

func (h *Handler) ListGenres(c *gin.Context) {
	resp, err := h.svc.ListGenres(c.Request.Context(), c.Query("all"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": resp})
}

func genreID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, ErrInvalid("invalid id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) GetGenre(c *gin.Context) {
	id, ok := genreID(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetGenre(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateGenre(c *gin.Context) {
	var req CreateGenreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid(err.Error()))
		return
	}
	resp, err := h.svc.CreateGenre(c.Request.Context(), req.Name, req.Code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) UpdateGenre(c *gin.Context) {
	id, ok := genreID(c)
	if !ok {
		return
	}
	var req UpdateGenreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid(err.Error()))
		return
	}
	resp, err := h.svc.UpdateGenre(c.Request.Context(), id, req.Name, req.Code, req.IsDisabled)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteGenre(c *gin.Context) {
	id, ok := genreID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteGenre(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
