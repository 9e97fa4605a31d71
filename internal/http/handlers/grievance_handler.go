package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/communityhub/grievance-backend/internal/domain/valueobject"
	"github.com/communityhub/grievance-backend/internal/http/handlers/common"
	"github.com/communityhub/grievance-backend/internal/http/response"
	"github.com/communityhub/grievance-backend/internal/repository"
	"github.com/communityhub/grievance-backend/internal/service"
)

// GrievanceHandler — тонкий HTTP слой над ядром жалоб: разбирает запрос,
// достаёт личность вызывающего и передаёт всё сервису. Никакой ролевой
// логики здесь нет намеренно, она живёт в одном месте — в сервисе.
type GrievanceHandler struct {
	svc *service.GrievanceService
}

func NewGrievanceHandler(svc *service.GrievanceService) *GrievanceHandler {
	return &GrievanceHandler{svc: svc}
}

type fileGrievanceRequest struct {
	Title             string     `json:"title" binding:"required"`
	Description       string     `json:"description" binding:"required"`
	Category          string     `json:"category"`
	Priority          string     `json:"priority"`
	RespondentUserID  *uuid.UUID `json:"respondent_user_id"`
	RespondentGroupID *uuid.UUID `json:"respondent_group_id"`
}

// FileGrievance POST /grievances
func (h *GrievanceHandler) FileGrievance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	var req fileGrievanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	g, err := h.svc.FileGrievance(c.Request.Context(), service.FileGrievanceInput{
		ReporterID:        userID,
		Title:             req.Title,
		Description:       req.Description,
		Category:          req.Category,
		Priority:          req.Priority,
		RespondentUserID:  req.RespondentUserID,
		RespondentGroupID: req.RespondentGroupID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, g)
}

// GetGrievance GET /grievances/:id
func (h *GrievanceHandler) GetGrievance(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	g, err := h.svc.GetGrievance(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, g)
}

// ListGrievances GET /grievances?status=&reporter_id=&respondent_id=&mediator_id=
func (h *GrievanceHandler) ListGrievances(c *gin.Context) {
	var filter repository.GrievanceFilter
	filter.Status = c.Query("status")

	var ok bool
	if filter.ReporterID, ok = parseUUIDQuery(c, "reporter_id"); !ok {
		return
	}
	if filter.RespondentID, ok = parseUUIDQuery(c, "respondent_id"); !ok {
		return
	}
	if filter.MediatorID, ok = parseUUIDQuery(c, "mediator_id"); !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	list, err := h.svc.ListGrievances(c.Request.Context(), filter, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// parseUUIDQuery разбирает необязательный UUID из query параметра.
// При ошибке сам пишет ответ и возвращает ok = false.
func parseUUIDQuery(c *gin.Context, param string) (*uuid.UUID, bool) {
	raw := c.Query(param)
	if raw == "" {
		return nil, true
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(c, "параметр "+param+" должен быть валидным UUID")
		return nil, false
	}
	return &parsed, true
}

type advanceStatusRequest struct {
	ToStatus       string  `json:"to_status" binding:"required"`
	ResolutionText *string `json:"resolution_text"`
}

// AdvanceStatus POST /grievances/:id/status
func (h *GrievanceHandler) AdvanceStatus(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req advanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	toStatus, err := valueobject.NewGrievanceStatus(req.ToStatus)
	if err != nil {
		response.Error(c, err)
		return
	}

	g, err := h.svc.AdvanceStatus(c.Request.Context(), id, userID, toStatus, req.ResolutionText)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, g)
}

type assignMediatorRequest struct {
	MediatorID uuid.UUID `json:"mediator_id" binding:"required"`
}

// AssignMediator POST /grievances/:id/mediator
func (h *GrievanceHandler) AssignMediator(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req assignMediatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	g, err := h.svc.AssignMediator(c.Request.Context(), id, req.MediatorID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, g)
}

// ListEligibleMediators GET /grievances/:id/mediators/eligible
func (h *GrievanceHandler) ListEligibleMediators(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	mediators, err := h.svc.ComputeEligibleMediators(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, mediators)
}

type recordVoteRequest struct {
	Choice string `json:"choice" binding:"required"`
}

// RecordVote POST /grievances/:id/votes
func (h *GrievanceHandler) RecordVote(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req recordVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	choice, err := valueobject.NewVoteChoice(req.Choice)
	if err != nil {
		response.Error(c, err)
		return
	}

	vote, err := h.svc.RecordVote(c.Request.Context(), id, userID, choice)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vote)
}

// ListVotes GET /grievances/:id/votes
func (h *GrievanceHandler) ListVotes(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	votes, err := h.svc.ListVotes(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, votes)
}

// GetTally GET /grievances/:id/tally
func (h *GrievanceHandler) GetTally(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tally, err := h.svc.ComputeTally(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tally)
}

type appendNoteRequest struct {
	NoteType     string   `json:"note_type" binding:"required"`
	Content      string   `json:"content" binding:"required"`
	EvidenceRefs []string `json:"evidence_refs"`
}

// AppendNote POST /grievances/:id/log
func (h *GrievanceHandler) AppendNote(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req appendNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	noteType, err := valueobject.NewNoteType(req.NoteType)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.svc.AppendNote(c.Request.Context(), id, userID, noteType, req.Content, req.EvidenceRefs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// ListLogEntries GET /grievances/:id/log
func (h *GrievanceHandler) ListLogEntries(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entries, err := h.svc.ListLogEntries(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}
