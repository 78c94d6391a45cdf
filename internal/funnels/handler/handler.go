package handler

import (
	"net/http"

	"funnelboard/internal/funnels/service"
	"funnelboard/internal/funnels/transport"
	"funnelboard/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// Handler handles HTTP requests for funnels and kanban stages.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// CreateFunnel creates a funnel seeded with default stages.
// POST /api/v1/funnels
func (h *Handler) CreateFunnel(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.CreateFunnel(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// ListFunnels lists the tenant's funnels.
// GET /api/v1/funnels
func (h *Handler) ListFunnels(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ListFunnels(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetFunnel returns one funnel.
// GET /api/v1/funnels/:funnelId
func (h *Handler) GetFunnel(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	result, err := h.svc.GetFunnel(c.Request.Context(), identity.UserID(), funnelID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// RenameFunnel renames a funnel.
// PATCH /api/v1/funnels/:funnelId
func (h *Handler) RenameFunnel(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	var req transport.RenameFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.RenameFunnel(c.Request.Context(), identity.UserID(), funnelID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteFunnel removes a funnel.
// DELETE /api/v1/funnels/:funnelId
func (h *Handler) DeleteFunnel(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	if err := h.svc.DeleteFunnel(c.Request.Context(), identity.UserID(), funnelID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// ListStages lists all stages of a funnel in order.
// GET /api/v1/funnels/:funnelId/stages
func (h *Handler) ListStages(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	result, err := h.svc.ListStages(c.Request.Context(), identity.UserID(), funnelID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateStage appends a stage to a funnel.
// POST /api/v1/funnels/:funnelId/stages
func (h *Handler) CreateStage(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	var req transport.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.CreateStage(c.Request.Context(), identity.UserID(), funnelID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// UpdateStage partially updates a stage.
// PATCH /api/v1/funnels/:funnelId/stages/:stageId
func (h *Handler) UpdateStage(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(c, "stageId")
	if !ok {
		return
	}

	var req transport.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.UpdateStage(c.Request.Context(), identity.UserID(), funnelID, stageID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ReorderStages rewrites the stage order of a funnel.
// PUT /api/v1/funnels/:funnelId/stages/order
func (h *Handler) ReorderStages(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	var req transport.ReorderStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.ReorderStages(c.Request.Context(), identity.UserID(), funnelID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteStage removes a stage.
// DELETE /api/v1/funnels/:funnelId/stages/:stageId
func (h *Handler) DeleteStage(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(c, "stageId")
	if !ok {
		return
	}

	if err := h.svc.DeleteStage(c.Request.Context(), identity.UserID(), funnelID, stageID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
