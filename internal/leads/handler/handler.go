package handler

import (
	"net/http"
	"strconv"

	"funnelboard/internal/leads/service"
	"funnelboard/internal/leads/transport"
	"funnelboard/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// Handler handles HTTP requests for leads.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// ListPage returns one page of a funnel's leads. Page zero is the balanced
// first page.
// GET /api/v1/funnels/:funnelId/leads?page=N
func (h *Handler) ListPage(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid page", nil)
		return
	}

	result, err := h.svc.FetchPage(c.Request.Context(), identity.UserID(), funnelID, page)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Search returns one page of leads matching the filter query.
// GET /api/v1/funnels/:funnelId/leads/search
func (h *Handler) Search(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	var query transport.FilterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.FetchFiltered(c.Request.Context(), identity.UserID(), funnelID, query)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Create creates a lead manually.
// POST /api/v1/leads
func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// Get returns one lead.
// GET /api/v1/leads/:leadId
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, ok := parseUUIDParam(c, "leadId")
	if !ok {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), identity.UserID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Update applies a partial field update.
// PATCH /api/v1/leads/:leadId
func (h *Handler) Update(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, ok := parseUUIDParam(c, "leadId")
	if !ok {
		return
	}

	var req transport.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.Update(c.Request.Context(), identity.UserID(), leadID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// MoveStage moves a lead to another stage.
// PUT /api/v1/leads/:leadId/stage
func (h *Handler) MoveStage(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, ok := parseUUIDParam(c, "leadId")
	if !ok {
		return
	}

	var req transport.MoveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.MoveStage(c.Request.Context(), identity.UserID(), leadID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Assign changes the lead's assigned agent.
// PUT /api/v1/leads/:leadId/assignee
func (h *Handler) Assign(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, ok := parseUUIDParam(c, "leadId")
	if !ok {
		return
	}

	var req transport.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.Assign(c.Request.Context(), identity.UserID(), leadID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// MarkRead resets the unread counter.
// POST /api/v1/leads/:leadId/read
func (h *Handler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, ok := parseUUIDParam(c, "leadId")
	if !ok {
		return
	}

	result, err := h.svc.MarkRead(c.Request.Context(), identity.UserID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Delete removes a lead.
// DELETE /api/v1/leads/:leadId
func (h *Handler) Delete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, ok := parseUUIDParam(c, "leadId")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), identity.UserID(), leadID); httpkit.HandleError(c, err) {
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
