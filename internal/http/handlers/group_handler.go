package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/communityhub/grievance-backend/internal/http/handlers/common"
	"github.com/communityhub/grievance-backend/internal/http/response"
	"github.com/communityhub/grievance-backend/internal/service"
)

// GroupHandler обслуживает маршруты групп.
type GroupHandler struct {
	groups *service.GroupService
}

// NewGroupHandler создаёт хэндлер.
func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// CreateGroup обрабатывает POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	var req struct {
		Name        string  `json:"name" binding:"required"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	g, err := h.groups.CreateGroup(c.Request.Context(), req.Name, req.Description, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, g)
}

// GetGroup обрабатывает GET /groups/:id.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	g, err := h.groups.GetGroup(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, g)
}

// ListMembers обрабатывает GET /groups/:id/members.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	members, err := h.groups.ListMembers(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// AddMember обрабатывает POST /groups/:id/members.
func (h *GroupHandler) AddMember(c *gin.Context) {
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

	var req struct {
		UserID uuid.UUID `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.groups.AddMember(c.Request.Context(), id, req.UserID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "участник добавлен в группу"})
}
