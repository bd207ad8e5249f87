package handler

import (
	"context"
	"errors"
	"net/http"
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

type TournamentHandler struct {
	service service.TournamentService
	clock   clockwork.Clock
}

func NewTournamentHandler(service service.TournamentService, clock clockwork.Clock) *TournamentHandler {
	return &TournamentHandler{service: service, clock: clock}
}

func (h *TournamentHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.GET("tournaments", h.List)
		router.GET("tournaments/:uuid", h.GetByTournamentID)
		router.POST("tournaments", h.Create)
		router.PUT("tournaments/:uuid/info", h.UpdateBasicInfo)
		router.PUT("tournaments/:uuid/dates", h.UpdateDates)
		router.DELETE("tournaments/:uuid", h.Delete)

		router.POST("tournaments/:uuid/publish", h.Publish)
		router.POST("tournaments/:uuid/start", h.Start)
		router.POST("tournaments/:uuid/finish", h.Finish)
		router.POST("tournaments/:uuid/cancel", h.Cancel)

		router.POST("tournaments/:uuid/participants", h.AdmitParticipant)
		router.GET("tournaments/:uuid/participants", h.ListParticipants)
		router.PUT("participants/:uuid/confirm", h.ConfirmParticipant)
		router.PUT("participants/:uuid/cancel", h.CancelParticipant)
		router.PUT("participants/:uuid/disqualify", h.DisqualifyParticipant)
	}
}

// CreateTournamentRequest 建立賽事請求
type CreateTournamentRequest struct {
	Name              string     `json:"name" binding:"required"`
	Description       *string    `json:"description"`
	Type              string     `json:"type" binding:"required"`
	CategoryID        int        `json:"category_id" binding:"required"`
	GameID            int        `json:"game_id" binding:"required"`
	OrganizerID       int        `json:"organizer_id" binding:"required"`
	MaxParticipants   int        `json:"max_participants" binding:"required"`
	EntryFee          float64    `json:"entry_fee"`
	PrizePool         float64    `json:"prize_pool"`
	CommissionRate    float64    `json:"commission_rate"`
	RegistrationStart *time.Time `json:"registration_start"`
	RegistrationEnd   *time.Time `json:"registration_end"`
	StartDate         *time.Time `json:"start_date"`
	EndDate           *time.Time `json:"end_date"`
}

// UpdateTournamentInfoRequest 更新基本資料請求
type UpdateTournamentInfoRequest struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	CategoryID      *int     `json:"category_id"`
	GameID          *int     `json:"game_id"`
	MaxParticipants *int     `json:"max_participants"`
	EntryFee        *float64 `json:"entry_fee"`
	PrizePool       *float64 `json:"prize_pool"`
	CommissionRate  *float64 `json:"commission_rate"`
}

// UpdateTournamentDatesRequest 更新日期請求，四個日期一起給
type UpdateTournamentDatesRequest struct {
	RegistrationStart time.Time `json:"registration_start" binding:"required"`
	RegistrationEnd   time.Time `json:"registration_end" binding:"required"`
	StartDate         time.Time `json:"start_date" binding:"required"`
	EndDate           time.Time `json:"end_date" binding:"required"`
}

// AdmitParticipantRequest 報名請求
type AdmitParticipantRequest struct {
	UserID   int     `json:"user_id" binding:"required"`
	TeamName *string `json:"team_name"`
	Notes    *string `json:"notes"`
}

// DisqualifyParticipantRequest 取消資格請求
type DisqualifyParticipantRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// TournamentResponse 衍生欄位每次從權威欄位重新計算，不存旗標
type TournamentResponse struct {
	*model.Tournament
	RegistrationOpen bool    `json:"registration_open"`
	AvailableSlots   int     `json:"available_slots"`
	TotalCommission  float64 `json:"total_commission"`
}

func (h *TournamentHandler) toResponse(t *model.Tournament) TournamentResponse {
	return TournamentResponse{
		Tournament:       t,
		RegistrationOpen: t.IsRegistrationOpen(h.clock.Now().UTC()),
		AvailableSlots:   t.MaxParticipants - t.CurrentParticipants,
		TotalCommission:  t.TotalCommission(),
	}
}

func (h *TournamentHandler) List(c *gin.Context) {
	tournaments, err := h.service.List(c)
	if err != nil {
		h.handleError(c, err, "List")
		return
	}
	responses := make([]TournamentResponse, 0, len(tournaments))
	for _, t := range tournaments {
		responses = append(responses, h.toResponse(t))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *TournamentHandler) GetByTournamentID(c *gin.Context) {
	tournamentID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	tournament, err := h.service.GetByTournamentID(c, tournamentID)
	if err != nil {
		h.handleError(c, err, "GetByTournamentID")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(tournament))
}

func (h *TournamentHandler) Create(c *gin.Context) {
	var req CreateTournamentRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	params := model.NewTournamentParams{
		Name:            req.Name,
		Description:     req.Description,
		Type:            model.TournamentType(req.Type),
		CategoryID:      req.CategoryID,
		GameID:          req.GameID,
		OrganizerID:     req.OrganizerID,
		MaxParticipants: req.MaxParticipants,
		EntryFee:        req.EntryFee,
		PrizePool:       req.PrizePool,
		CommissionRate:  req.CommissionRate,
	}
	if req.RegistrationStart != nil {
		params.RegistrationStart = *req.RegistrationStart
	}
	if req.RegistrationEnd != nil {
		params.RegistrationEnd = *req.RegistrationEnd
	}
	if req.StartDate != nil {
		params.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		params.EndDate = *req.EndDate
	}

	created, err := h.service.Create(c, params)
	if err != nil {
		h.handleError(c, err, "Create")
		return
	}
	c.JSON(http.StatusCreated, h.toResponse(created))
}

func (h *TournamentHandler) UpdateBasicInfo(c *gin.Context) {
	tournamentID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	var req UpdateTournamentInfoRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	params := model.UpdateTournamentInfoParams{
		Name:            req.Name,
		Description:     req.Description,
		CategoryID:      req.CategoryID,
		GameID:          req.GameID,
		MaxParticipants: req.MaxParticipants,
		EntryFee:        req.EntryFee,
		PrizePool:       req.PrizePool,
		CommissionRate:  req.CommissionRate,
	}
	updated, err := h.service.UpdateBasicInfo(c, tournamentID, params)
	if err != nil {
		h.handleError(c, err, "UpdateBasicInfo")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(updated))
}

func (h *TournamentHandler) UpdateDates(c *gin.Context) {
	tournamentID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	var req UpdateTournamentDatesRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	updated, err := h.service.UpdateDates(c, tournamentID,
		req.RegistrationStart, req.RegistrationEnd, req.StartDate, req.EndDate)
	if err != nil {
		h.handleError(c, err, "UpdateDates")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(updated))
}

func (h *TournamentHandler) Delete(c *gin.Context) {
	tournamentID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteByTournamentID(c, tournamentID); err != nil {
		h.handleError(c, err, "Delete")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TournamentHandler) Publish(c *gin.Context) {
	h.transition(c, "Publish", h.service.Publish)
}

func (h *TournamentHandler) Start(c *gin.Context) {
	h.transition(c, "Start", h.service.Start)
}

func (h *TournamentHandler) Finish(c *gin.Context) {
	h.transition(c, "Finish", h.service.Finish)
}

func (h *TournamentHandler) Cancel(c *gin.Context) {
	h.transition(c, "Cancel", h.service.Cancel)
}

func (h *TournamentHandler) transition(c *gin.Context, operation string, op func(ctx context.Context, id uuid.UUID) (*model.Tournament, error)) {
	tournamentID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	updated, err := op(c, tournamentID)
	if err != nil {
		h.handleError(c, err, operation)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(updated))
}

func (h *TournamentHandler) AdmitParticipant(c *gin.Context) {
	tournamentID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	var req AdmitParticipantRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	participant, err := h.service.AdmitParticipant(c, tournamentID, service.AdmitParticipantRequest{
		UserID:   req.UserID,
		TeamName: req.TeamName,
		Notes:    req.Notes,
	})
	if err != nil {
		h.handleError(c, err, "AdmitParticipant")
		return
	}
	c.JSON(http.StatusCreated, participant)
}

func (h *TournamentHandler) ListParticipants(c *gin.Context) {
	tournamentID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	participants, err := h.service.ListParticipants(c, tournamentID)
	if err != nil {
		h.handleError(c, err, "ListParticipants")
		return
	}
	c.JSON(http.StatusOK, participants)
}

func (h *TournamentHandler) ConfirmParticipant(c *gin.Context) {
	participantID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	participant, err := h.service.ConfirmParticipant(c, participantID)
	if err != nil {
		h.handleError(c, err, "ConfirmParticipant")
		return
	}
	c.JSON(http.StatusOK, participant)
}

func (h *TournamentHandler) CancelParticipant(c *gin.Context) {
	participantID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	participant, err := h.service.CancelParticipant(c, participantID)
	if err != nil {
		h.handleError(c, err, "CancelParticipant")
		return
	}
	c.JSON(http.StatusOK, participant)
}

func (h *TournamentHandler) DisqualifyParticipant(c *gin.Context) {
	participantID, ok := h.parseUUID(c)
	if !ok {
		return
	}
	var req DisqualifyParticipantRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	participant, err := h.service.DisqualifyParticipant(c, participantID, req.Reason)
	if err != nil {
		h.handleError(c, err, "DisqualifyParticipant")
		return
	}
	c.JSON(http.StatusOK, participant)
}

// Helper functions

func (h *TournamentHandler) parseUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *TournamentHandler) handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrTournamentNotFound):
		log.Warn("Tournament not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Tournament not found"})
	case errors.Is(err, apperrors.ErrParticipantNotFound):
		log.Warn("Participant not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		log.Warn("Invalid status transition")
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid status transition"})
	case errors.Is(err, apperrors.ErrInvalidState):
		log.Warn("Operation not allowed in current state")
		c.JSON(http.StatusConflict, gin.H{"error": "Operation not allowed in current state"})
	case errors.Is(err, apperrors.ErrIncompleteConfiguration):
		log.Warn("Tournament configuration incomplete")
		c.JSON(http.StatusConflict, gin.H{"error": "Tournament configuration incomplete"})
	case errors.Is(err, apperrors.ErrInsufficientParticipants):
		log.Warn("Insufficient participants")
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient participants"})
	case errors.Is(err, apperrors.ErrRegistrationClosed):
		log.Warn("Registration closed")
		c.JSON(http.StatusConflict, gin.H{"error": "Registration closed"})
	case errors.Is(err, apperrors.ErrRegistrationWindowClosed):
		log.Warn("Registration window closed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Registration window closed"})
	case errors.Is(err, apperrors.ErrCapacityExceeded):
		log.Warn("Capacity exceeded")
		c.JSON(http.StatusConflict, gin.H{"error": "Capacity exceeded"})
	case errors.Is(err, apperrors.ErrConcurrentModification):
		log.Warn("Concurrent modification")
		c.JSON(http.StatusConflict, gin.H{"error": "Concurrent modification, please retry"})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
