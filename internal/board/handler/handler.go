package handler

import (
	"net/http"
	"strconv"

	"funnelboard/internal/board/service"
	"funnelboard/internal/board/transport"
	"funnelboard/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// Handler handles HTTP requests for the board view.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// GetBoard returns the composed, filtered board.
// GET /api/v1/funnels/:funnelId/board
func (h *Handler) GetBoard(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	var query transport.BoardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.GetBoard(c.Request.Context(), identity.UserID(), funnelID, query)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// LoadStageColumn appends one page to a single column.
// GET /api/v1/funnels/:funnelId/board/stages/:stageId?page=N
func (h *Handler) LoadStageColumn(c *gin.Context) {
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

	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid page", nil)
		return
	}

	result, err := h.svc.LoadStageColumn(c.Request.Context(), identity.UserID(), funnelID, stageID, page)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DragStart marks a drag gesture in flight.
// POST /api/v1/funnels/:funnelId/board/drag/start
func (h *Handler) DragStart(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	if err := h.svc.DragStart(c.Request.Context(), identity.UserID(), funnelID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// DragEnd completes a drag gesture, optionally settling derived fields.
// POST /api/v1/funnels/:funnelId/board/drag/end
func (h *Handler) DragEnd(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	var req transport.DragEndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.DragEnd(c.Request.Context(), identity.UserID(), funnelID, req); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// Select adds leads to the mass selection.
// POST /api/v1/funnels/:funnelId/board/selection
func (h *Handler) Select(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	var req transport.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.Select(c.Request.Context(), identity.UserID(), funnelID, req.LeadIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Deselect removes leads from the mass selection.
// DELETE /api/v1/funnels/:funnelId/board/selection
func (h *Handler) Deselect(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	var req transport.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.Deselect(c.Request.Context(), identity.UserID(), funnelID, req.LeadIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SelectAll selects every visible lead of one column.
// POST /api/v1/funnels/:funnelId/board/selection/all
func (h *Handler) SelectAll(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	var req transport.SelectAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.SelectAllVisible(c.Request.Context(), identity.UserID(), funnelID, req.StageID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ClearSelection drops the whole selection.
// DELETE /api/v1/funnels/:funnelId/board/selection/all
func (h *Handler) ClearSelection(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	if err := h.svc.ClearSelection(c.Request.Context(), identity.UserID(), funnelID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// Selection returns the current selection.
// GET /api/v1/funnels/:funnelId/board/selection
func (h *Handler) Selection(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	funnelID, ok := parseUUIDParam(c, "funnelId")
	if !ok {
		return
	}

	result, err := h.svc.Selection(c.Request.Context(), identity.UserID(), funnelID)
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
