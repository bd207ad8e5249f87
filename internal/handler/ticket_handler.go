package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tournament-ticketing/internal/model"
	"tournament-ticketing/internal/service"
	apperrors "tournament-ticketing/pkg/app_errors"
	"tournament-ticketing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type TicketHandler struct {
	service service.TicketService
	clock   clockwork.Clock
}

func NewTicketHandler(service service.TicketService, clock clockwork.Clock) *TicketHandler {
	return &TicketHandler{service: service, clock: clock}
}

func (h *TicketHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.GET("tickets", h.List)
		router.GET("tickets/:uuid", h.GetByTicketID)
		router.POST("tickets", h.Reserve)
		router.PUT("tickets/:uuid/pay", h.MarkPaid)
		router.PUT("tickets/:uuid/use", h.Use)
		router.PUT("tickets/:uuid/cancel", h.Cancel)

		router.GET("tickets/code/:code", h.GetByCode)
		router.GET("tickets/code/:code/valid", h.IsValidForUse)
		router.GET("tournaments/:uuid/tickets", h.ListByTournamentID)
		router.GET("users/:id/tickets", h.ListByUserID)
	}
}

// ReserveTicketRequest 預訂票券請求，ttl_minutes 為 0 時用服務預設
type ReserveTicketRequest struct {
	TournamentID string `json:"tournament_id" binding:"required"`
	UserID       int    `json:"user_id" binding:"required"`
	TTLMinutes   int    `json:"ttl_minutes"`
}

// MarkPaidRequest 付款請求
type MarkPaidRequest struct {
	PaymentRef string `json:"payment_ref" binding:"required"`
}

// TicketResponse valid 是衍生欄位，每次從狀態與到期時間重算
type TicketResponse struct {
	*model.Ticket
	Valid bool `json:"valid"`
}

func (h *TicketHandler) toResponse(t *model.Ticket) TicketResponse {
	return TicketResponse{
		Ticket: t,
		Valid:  t.IsValidForUse(h.clock.Now().UTC()),
	}
}

func (h *TicketHandler) Reserve(c *gin.Context) {
	var req ReserveTicketRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	tournamentID, err := uuid.Parse(req.TournamentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tournament uuid"})
		return
	}

	created, err := h.service.Reserve(c, service.ReserveTicketRequest{
		TournamentID: tournamentID,
		UserID:       req.UserID,
		TTL:          time.Duration(req.TTLMinutes) * time.Minute,
	})
	if err != nil {
		h.handleError(c, err, "Reserve")
		return
	}
	c.JSON(http.StatusCreated, h.toResponse(created))
}

func (h *TicketHandler) List(c *gin.Context) {
	tickets, err := h.service.List(c)
	if err != nil {
		h.handleError(c, err, "List")
		return
	}
	c.JSON(http.StatusOK, h.toResponses(tickets))
}

func (h *TicketHandler) GetByTicketID(c *gin.Context) {
	ticketID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	ticket, err := h.service.GetByTicketID(c, ticketID)
	if err != nil {
		h.handleError(c, err, "GetByTicketID")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(ticket))
}

func (h *TicketHandler) GetByCode(c *gin.Context) {
	ticket, err := h.service.GetByCode(c, c.Param("code"))
	if err != nil {
		h.handleError(c, err, "GetByCode")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(ticket))
}

func (h *TicketHandler) IsValidForUse(c *gin.Context) {
	valid, err := h.service.IsValidForUse(c, c.Param("code"))
	if err != nil {
		h.handleError(c, err, "IsValidForUse")
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (h *TicketHandler) ListByTournamentID(c *gin.Context) {
	tournamentID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	tickets, err := h.service.ListByTournamentID(c, tournamentID)
	if err != nil {
		h.handleError(c, err, "ListByTournamentID")
		return
	}
	c.JSON(http.StatusOK, h.toResponses(tickets))
}

func (h *TicketHandler) ListByUserID(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	tickets, err := h.service.ListByUserID(c, userID)
	if err != nil {
		h.handleError(c, err, "ListByUserID")
		return
	}
	c.JSON(http.StatusOK, h.toResponses(tickets))
}

func (h *TicketHandler) MarkPaid(c *gin.Context) {
	ticketID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	var req MarkPaidRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	updated, err := h.service.MarkPaid(c, ticketID, req.PaymentRef)
	if err != nil {
		h.handleError(c, err, "MarkPaid")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(updated))
}

func (h *TicketHandler) Use(c *gin.Context) {
	ticketID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	updated, err := h.service.Use(c, ticketID)
	if err != nil {
		h.handleError(c, err, "Use")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(updated))
}

func (h *TicketHandler) Cancel(c *gin.Context) {
	ticketID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	updated, err := h.service.Cancel(c, ticketID)
	if err != nil {
		h.handleError(c, err, "Cancel")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(updated))
}

// Helper functions

func (h *TicketHandler) toResponses(tickets []*model.Ticket) []TicketResponse {
	responses := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		responses = append(responses, h.toResponse(t))
	}
	return responses
}

func (h *TicketHandler) parseUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *TicketHandler) handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrTicketNotFound):
		log.Warn("Ticket not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
	case errors.Is(err, apperrors.ErrTournamentNotFound):
		log.Warn("Tournament not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Tournament not found"})
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		log.Warn("Invalid status transition")
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid status transition"})
	case errors.Is(err, apperrors.ErrInvalidState):
		log.Warn("Operation not allowed in current state")
		c.JSON(http.StatusConflict, gin.H{"error": "Operation not allowed in current state"})
	case errors.Is(err, apperrors.ErrReservationExpired):
		log.Warn("Reservation expired")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Reservation expired"})
	case errors.Is(err, apperrors.ErrTicketExpired):
		log.Warn("Ticket expired")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Ticket expired"})
	case errors.Is(err, apperrors.ErrConcurrentModification):
		log.Warn("Concurrent modification")
		c.JSON(http.StatusConflict, gin.H{"error": "Concurrent modification, please retry"})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
