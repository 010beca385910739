package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/locker-booking-backend/internal/auth"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/locker-booking-backend/internal/session"
)

type Handler struct {
	service session.Service
}

func NewHandler(service session.Service) *Handler {
	return &Handler{service: service}
}

func bindSessionID(c *gin.Context) (string, bool) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id", "details": err.Error()})
		return "", false
	}
	return req.ID, true
}

func (h *Handler) ListActive(c *gin.Context) {
	sessions, err := h.service.ListActive(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		items[i] = NewSessionResponse(s)
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "sessions": items})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := bindSessionID(c)
	if !ok {
		return
	}
	s, err := h.service.Get(c.Request.Context(), id, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(s))
}

func (h *Handler) Unlock(c *gin.Context) {
	id, ok := bindSessionID(c)
	if !ok {
		return
	}
	s, err := h.service.Unlock(c.Request.Context(), id, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(s))
}

func (h *Handler) Lock(c *gin.Context) {
	id, ok := bindSessionID(c)
	if !ok {
		return
	}
	s, err := h.service.Lock(c.Request.Context(), id, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(s))
}

func (h *Handler) Release(c *gin.Context) {
	id, ok := bindSessionID(c)
	if !ok {
		return
	}
	s, err := h.service.Release(c.Request.Context(), id, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(s))
}

func (h *Handler) Extendable(c *gin.Context) {
	id, ok := bindSessionID(c)
	if !ok {
		return
	}
	slots, err := h.service.ExtendableSlots(c.Request.Context(), id, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available_slots": NewSlotResponses(slots)})
}

func (h *Handler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	q, err := h.service.CalculateExtensionCost(c.Request.Context(), req.LockerID, req.NewSlotIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, CalculateResponse{
		LockerID:   q.LockerID,
		SlotIDs:    q.SlotIDs,
		ExtraHours: q.Hours,
		ExtraCost:  q.Cost,
	})
}

func (h *Handler) ExtendHourly(c *gin.Context) {
	var uri SessionIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id", "details": err.Error()})
		return
	}
	var body ExtendHourlyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot_count must be 1 or 2", "details": err.Error()})
		return
	}

	res, err := h.service.ExtendHourly(c.Request.Context(), uri.ID, auth.GetUserID(c), body.SlotCount)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ExtendHourlyResponse{
		ExtendedSlots: res.SlotIDs,
		AddedCost:     res.AddedCost,
		NewEndTime:    res.NewEnd,
		Session:       NewSessionResponse(res.Session),
	})
}

func (h *Handler) ConfirmExtension(c *gin.Context) {
	var req ConfirmExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	res, err := h.service.ConfirmExtensionPayment(c.Request.Context(), session.ConfirmExtensionRequest{
		SessionID:     req.SessionID,
		SlotIDs:       req.SlotIDs,
		PaymentStatus: req.PaymentStatus,
		OrderID:       req.OrderID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ConfirmExtensionResponse{
		OrderID:        res.OrderID,
		AlreadyApplied: res.AlreadyApplied,
		AddedCost:      res.AddedCost,
		Session:        NewSessionResponse(res.Session),
	})
}
