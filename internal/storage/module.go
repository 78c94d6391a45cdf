package storage

import (
	"context"
	"net/http"
	"strings"

	apphttp "funnelboard/internal/http"
	leadtransport "funnelboard/internal/leads/transport"
	"funnelboard/platform/httpkit"
	"funnelboard/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeadGetter is the tenant-scoped lead fetch guarding attachment access.
type LeadGetter interface {
	Get(ctx context.Context, userID, leadID uuid.UUID) (leadtransport.LeadResponse, error)
}

// Module is the storage bounded context module implementing http.Module.
type Module struct {
	svc   *Service
	leads LeadGetter
	log   *logger.Logger
}

// NewModule creates the storage module. A nil service keeps routes mounted
// but answers 503 so clients can feature-detect.
func NewModule(svc *Service, leads LeadGetter, log *logger.Logger) *Module {
	return &Module{
		svc:   svc,
		leads: leads,
		log:   log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "storage"
}

// RegisterRoutes mounts attachment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/leads/:leadId/attachments")
	group.POST("", m.handleUpload)
	group.GET("", m.handleList)
	group.GET("/url", m.handleDownloadURL)
	group.DELETE("", m.handleDelete)
}

// handleUpload stores one multipart attachment under the lead's folder.
// POST /api/v1/leads/:leadId/attachments
func (m *Module) handleUpload(c *gin.Context) {
	leadID, ok := m.authorize(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "missing file", nil)
		return
	}
	if header.Size > MaxAttachmentSize {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, "file too large", nil)
		return
	}

	file, err := header.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable file", nil)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	contentType := header.Header.Get("Content-Type")
	fileKey, err := m.svc.Upload(c.Request.Context(), leadID, header.Filename, contentType, file, header.Size)
	if err != nil {
		m.log.Error("attachment upload failed", "leadId", leadID, "error", err)
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	httpkit.Created(c, gin.H{"fileKey": fileKey})
}

// handleList enumerates the lead's attachments.
// GET /api/v1/leads/:leadId/attachments
func (m *Module) handleList(c *gin.Context) {
	leadID, ok := m.authorize(c)
	if !ok {
		return
	}

	attachments, err := m.svc.List(c.Request.Context(), leadID)
	if err != nil {
		m.log.Error("attachment list failed", "leadId", leadID, "error", err)
		httpkit.Error(c, http.StatusServiceUnavailable, "storage unavailable", nil)
		return
	}

	httpkit.OK(c, gin.H{"attachments": attachments})
}

// handleDownloadURL returns a presigned download URL for one attachment.
// GET /api/v1/leads/:leadId/attachments/url?key=...
func (m *Module) handleDownloadURL(c *gin.Context) {
	leadID, ok := m.authorize(c)
	if !ok {
		return
	}

	fileKey, ok := m.leadFileKey(c, leadID)
	if !ok {
		return
	}

	url, expiresAt, err := m.svc.DownloadURL(c.Request.Context(), fileKey)
	if err != nil {
		m.log.Error("attachment presign failed", "leadId", leadID, "error", err)
		httpkit.Error(c, http.StatusServiceUnavailable, "storage unavailable", nil)
		return
	}

	httpkit.OK(c, gin.H{"url": url, "fileKey": fileKey, "expiresAt": expiresAt})
}

// handleDelete removes one attachment.
// DELETE /api/v1/leads/:leadId/attachments?key=...
func (m *Module) handleDelete(c *gin.Context) {
	leadID, ok := m.authorize(c)
	if !ok {
		return
	}

	fileKey, ok := m.leadFileKey(c, leadID)
	if !ok {
		return
	}

	if err := m.svc.Delete(c.Request.Context(), fileKey); err != nil {
		m.log.Error("attachment delete failed", "leadId", leadID, "error", err)
		httpkit.Error(c, http.StatusServiceUnavailable, "storage unavailable", nil)
		return
	}

	httpkit.NoContent(c)
}

// authorize parses the lead id and verifies the caller can see the lead.
func (m *Module) authorize(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}

	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid leadId", nil)
		return uuid.Nil, false
	}

	if !m.svc.Enabled() {
		httpkit.Error(c, http.StatusServiceUnavailable, "object storage not configured", nil)
		return uuid.Nil, false
	}

	if _, err := m.leads.Get(c.Request.Context(), identity.UserID(), leadID); httpkit.HandleError(c, err) {
		return uuid.Nil, false
	}
	return leadID, true
}

// leadFileKey reads the key query param and pins it to the lead's folder.
func (m *Module) leadFileKey(c *gin.Context, leadID uuid.UUID) (string, bool) {
	fileKey := c.Query("key")
	if fileKey == "" || !strings.HasPrefix(fileKey, "leads/"+leadID.String()+"/") || strings.Contains(fileKey, "..") {
		httpkit.Error(c, http.StatusBadRequest, "invalid key", nil)
		return "", false
	}
	return fileKey, true
}

var _ apphttp.Module = (*Module)(nil)
