package handler

import (
	"net/http"

	"funnelboard/internal/tags/service"
	"funnelboard/internal/tags/transport"
	"funnelboard/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// Handler handles HTTP requests for tags and lead tag mutations.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// CreateTag creates a tenant tag.
// POST /api/v1/tags
func (h *Handler) CreateTag(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.CreateTag(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// ListTags lists the tenant's tags.
// GET /api/v1/tags
func (h *Handler) ListTags(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ListTags(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateTag renames or recolors a tag.
// PATCH /api/v1/tags/:tagId
func (h *Handler) UpdateTag(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	tagID, ok := parseUUIDParam(c, "tagId")
	if !ok {
		return
	}

	var req transport.UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.UpdateTag(c.Request.Context(), identity.UserID(), tagID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteTag removes a tag everywhere.
// DELETE /api/v1/tags/:tagId
func (h *Handler) DeleteTag(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	tagID, ok := parseUUIDParam(c, "tagId")
	if !ok {
		return
	}

	if err := h.svc.DeleteTag(c.Request.Context(), identity.UserID(), tagID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// AttachTag links a tag to a lead. Idempotent.
// POST /api/v1/leads/:leadId/tags/:tagId
func (h *Handler) AttachTag(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, ok := parseUUIDParam(c, "leadId")
	if !ok {
		return
	}
	tagID, ok := parseUUIDParam(c, "tagId")
	if !ok {
		return
	}

	result, err := h.svc.AttachTag(c.Request.Context(), identity.UserID(), leadID, tagID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DetachTag unlinks a tag from a lead. Idempotent.
// DELETE /api/v1/leads/:leadId/tags/:tagId
func (h *Handler) DetachTag(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, ok := parseUUIDParam(c, "leadId")
	if !ok {
		return
	}
	tagID, ok := parseUUIDParam(c, "tagId")
	if !ok {
		return
	}

	result, err := h.svc.DetachTag(c.Request.Context(), identity.UserID(), leadID, tagID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AttachTagBatch links a tag to many leads at once.
// POST /api/v1/tags/:tagId/leads
func (h *Handler) AttachTagBatch(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	tagID, ok := parseUUIDParam(c, "tagId")
	if !ok {
		return
	}

	var req transport.BatchTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.AttachTagBatch(c.Request.Context(), identity.UserID(), tagID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DetachTagBatch unlinks a tag from many leads at once.
// DELETE /api/v1/tags/:tagId/leads
func (h *Handler) DetachTagBatch(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	tagID, ok := parseUUIDParam(c, "tagId")
	if !ok {
		return
	}

	var req transport.BatchTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.DetachTagBatch(c.Request.Context(), identity.UserID(), tagID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// LeadTags returns a lead's current tag list.
// GET /api/v1/leads/:leadId/tags
func (h *Handler) LeadTags(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, ok := parseUUIDParam(c, "leadId")
	if !ok {
		return
	}

	result, err := h.svc.LeadTags(c.Request.Context(), identity.UserID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
