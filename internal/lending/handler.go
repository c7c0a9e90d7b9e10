package lending

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bibliogoya-backend/internal/platform/identity"
)

type Handler struct{ svc *Service }

// RegisterMemberRoutes mounts the member-facing endpoints. r must already require authentication.
func RegisterMemberRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 蔵書
	r.GET("/books", h.ListBooks)
	r.GET("/books/:book_id", h.GetBook)

	// 貸出・返却（本人）
	r.POST("/books/:book_id/borrow", h.Borrow)
	r.POST("/books/:book_id/return", h.Return)

	r.GET("/me/loans", h.MyLoans)
	r.GET("/me/reservations", h.MyReservations)
}

// RegisterAdminRoutes mounts the administrator endpoints. r must already require the Administrator role.
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/loans", h.ListLoans)
	r.POST("/loans", h.CreateLoan)
	r.GET("/loans/:loan_id", h.GetLoan)
	r.DELETE("/loans/:loan_id", h.DeleteLoan)

	r.GET("/reservations", h.ListReservations)
	r.GET("/reservations/:reservation_id", h.GetReservation)
	r.PATCH("/reservations/:reservation_id", h.UpdateReservation)
	r.POST("/reservations/:reservation_id/cancel", h.CancelReservation)

	r.GET("/invariant", h.CheckInvariant)
}

// ---------- member handlers ----------

func (h *Handler) ListBooks(c *gin.Context) {
	a, err := ParseAvailability(c.Query("filter"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	res, err := h.svc.ListBooks(c.Request.Context(), a, pageFromQuery(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res})
}

func (h *Handler) GetBook(c *gin.Context) {
	id, ok := idParam(c, "book_id")
	if !ok {
		return
	}
	res, err := h.svc.GetBook(c.Request.Context(), id)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Borrow(c *gin.Context) {
	bookID, ok := idParam(c, "book_id")
	if !ok {
		return
	}
	me, ok := caller(c)
	if !ok {
		return
	}
	res, err := h.svc.Borrow(c.Request.Context(), bookID, me.MemberID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	// 会員は admin 配下を読めないので、自分の貸出一覧を指す
	c.Header("Location", "/api/v1/me/loans")
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Return(c *gin.Context) {
	bookID, ok := idParam(c, "book_id")
	if !ok {
		return
	}
	me, ok := caller(c)
	if !ok {
		return
	}
	res, err := h.svc.Return(c.Request.Context(), bookID, me.MemberID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MyLoans(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	res, err := h.svc.ListLoansForMember(c.Request.Context(), me.MemberID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res})
}

func (h *Handler) MyReservations(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	f := ReservationFilter{MemberID: &me.MemberID}
	res, err := h.svc.ListReservations(c.Request.Context(), f, pageFromQuery(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- admin handlers ----------

func (h *Handler) ListLoans(c *gin.Context) {
	f := LoanFilter{}
	if v := c.Query("member_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "member_id must be an integer"))
			return
		}
		f.MemberID = &id
	}
	if v := c.Query("book_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "book_id must be an integer"))
			return
		}
		f.BookID = &id
	}
	res, err := h.svc.ListLoans(c.Request.Context(), f, pageFromQuery(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateLoan(c *gin.Context) {
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.AdminCreateLoanDirect(c.Request.Context(), req.BookID, req.MemberID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/api/v1/admin/loans/"+strconv.FormatInt(res.Loan.LoanID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetLoan(c *gin.Context) {
	id, ok := idParam(c, "loan_id")
	if !ok {
		return
	}
	res, err := h.svc.GetLoan(c.Request.Context(), id)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteLoan(c *gin.Context) {
	id, ok := idParam(c, "loan_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteLoan(c.Request.Context(), id); err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListReservations(c *gin.Context) {
	f := ReservationFilter{}
	if v := c.Query("member_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "member_id must be an integer"))
			return
		}
		f.MemberID = &id
	}
	if v := c.Query("status"); v != "" {
		st, err := ParseReservationStatus(v)
		if err != nil {
			c.JSON(ToHTTPStatus(err), errorFromErr(err))
			return
		}
		f.Status = &st
	}
	res, err := h.svc.ListReservations(c.Request.Context(), f, pageFromQuery(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetReservation(c *gin.Context) {
	id, ok := idParam(c, "reservation_id")
	if !ok {
		return
	}
	res, err := h.svc.GetReservation(c.Request.Context(), id)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateReservation(c *gin.Context) {
	id, ok := idParam(c, "reservation_id")
	if !ok {
		return
	}
	var req UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	st, err := ParseReservationStatus(req.Status)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	res, err := h.svc.EditReservationStatus(c.Request.Context(), id, st)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CancelReservation(c *gin.Context) {
	id, ok := idParam(c, "reservation_id")
	if !ok {
		return
	}
	res, err := h.svc.CancelReservation(c.Request.Context(), id)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CheckInvariant(c *gin.Context) {
	res, err := h.svc.CheckInvariant(c.Request.Context())
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": len(res) == 0, "violations": res})
}

// ---------- helpers ----------

func caller(c *gin.Context) (identity.Identity, bool) {
	id, ok := identity.From(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHENTICATED", "login required"))
		return identity.Identity{}, false
	}
	return id, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

func pageFromQuery(c *gin.Context) Page {
	return Page{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return d
	}
	return v
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var msg string
	var code Code = CodeInternal
	var api *APIError
	if errors.As(err, &api) {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
