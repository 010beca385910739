package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/locker-booking-backend/internal/auth"
	"github.com/nekogravitycat/locker-booking-backend/internal/booking"
	"github.com/nekogravitycat/locker-booking-backend/internal/locker"
	lockerHttp "github.com/nekogravitycat/locker-booking-backend/internal/locker/http"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/response"
)

type Handler struct {
	service       booking.Service
	lockerService locker.Service
	clock         clock.Clock
	loc           *time.Location
}

func NewHandler(service booking.Service, lockerService locker.Service, clk clock.Clock, loc *time.Location) *Handler {
	return &Handler{
		service:       service,
		lockerService: lockerService,
		clock:         clk,
		loc:           loc,
	}
}

func (h *Handler) parseDate(c *gin.Context, s string) (time.Time, bool) {
	if s == "" {
		return clock.Today(h.clock, h.loc), true
	}
	date, err := request.ParseDate(s, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD", "details": err.Error()})
		return time.Time{}, false
	}
	return date, true
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req CreateGroupBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	// Bookings are always made for the token's subject.
	userID := auth.GetUserID(c)
	if req.UserID != "" && req.UserID != userID {
		response.Error(c, booking.ErrPermissionDenied)
		return
	}

	date, ok := h.parseDate(c, req.Date)
	if !ok {
		return
	}

	b, err := h.service.CreateGroupBooking(c.Request.Context(), req.ToDomain(userID, date))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateGroupBookingResponse{
		BookingID:   b.ID,
		TotalAmount: b.TotalAmount,
	})
}

func (h *Handler) AvailableBySlot(c *gin.Context) {
	var req AvailableBySlotRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hub_id, slot_id and date are required", "details": err.Error()})
		return
	}
	date, ok := h.parseDate(c, req.Date)
	if !ok {
		return
	}

	lockers, err := h.lockerService.AvailableBySlot(c.Request.Context(), req.HubID, date, req.SlotID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available_lockers": lockerHttp.NewLockerListResponse(lockers)})
}

func (h *Handler) AvailableByDay(c *gin.Context) {
	var req AvailableByDayRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hub_id and date are required", "details": err.Error()})
		return
	}
	date, ok := h.parseDate(c, req.Date)
	if !ok {
		return
	}

	lockers, err := h.lockerService.AvailableByDay(c.Request.Context(), req.HubID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available_lockers": lockerHttp.NewLockerListResponse(lockers)})
}

func (h *Handler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	date, ok := h.parseDate(c, req.Date)
	if !ok {
		return
	}

	available, err := h.lockerService.IsAvailable(c.Request.Context(), req.LockerID, date, req.SlotID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !available {
		c.JSON(http.StatusConflict, gin.H{"available": false, "error": booking.ErrSlotConflict.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true})
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id", "details": err.Error()})
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), req.ID, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	req.Normalize()

	bookings, total, err := h.service.List(c.Request.Context(), booking.Filter{
		UserID:   auth.GetUserID(c),
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}
	c.JSON(http.StatusOK, response.NewPage(items, req.ListParams, total))
}

func (h *Handler) Cancel(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id", "details": err.Error()})
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), req.ID, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Extend(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id", "details": err.Error()})
		return
	}
	var body ExtendBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	result, err := h.service.Extend(c.Request.Context(), booking.ExtendRequest{
		BookingID:     uri.ID,
		ActorID:       auth.GetUserID(c),
		LockerID:      body.LockerID,
		NewSlotIDs:    body.NewSlotIDs,
		PaymentMethod: booking.PaymentMethod(body.PaymentMethod),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewExtendBookingResponse(result))
}

func (h *Handler) SettleExtension(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id", "details": err.Error()})
		return
	}

	b, err := h.service.SettleExtension(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}
