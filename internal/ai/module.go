package ai

import (
	"context"
	"net/http"

	apphttp "funnelboard/internal/http"
	leadtransport "funnelboard/internal/leads/transport"
	"funnelboard/platform/httpkit"
	"funnelboard/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeadGetter is the tenant-scoped lead fetch the summary endpoint needs.
type LeadGetter interface {
	Get(ctx context.Context, userID, leadID uuid.UUID) (leadtransport.LeadResponse, error)
}

// Module is the ai bounded context module implementing http.Module.
type Module struct {
	summarizer *Summarizer
	leads      LeadGetter
	log        *logger.Logger
}

// NewModule creates the ai module. A nil summarizer keeps the route mounted
// but answers 503 so clients can feature-detect.
func NewModule(summarizer *Summarizer, leads LeadGetter, log *logger.Logger) *Module {
	return &Module{
		summarizer: summarizer,
		leads:      leads,
		log:        log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ai"
}

// RegisterRoutes mounts ai routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/leads/:leadId/summary", m.handleSummary)
}

// handleSummary generates a qualification summary for a lead.
// POST /api/v1/leads/:leadId/summary
func (m *Module) handleSummary(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid leadId", nil)
		return
	}

	if !m.summarizer.Enabled() {
		httpkit.Error(c, http.StatusServiceUnavailable, "ai summaries not configured", nil)
		return
	}

	resp, err := m.leads.Get(c.Request.Context(), identity.UserID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	summary, err := m.summarizer.Summarize(c.Request.Context(), resp.Lead)
	if err != nil {
		m.log.Error("lead summary failed", "leadId", leadID, "error", err)
		httpkit.Error(c, http.StatusBadGateway, "summary generation failed", nil)
		return
	}

	httpkit.OK(c, gin.H{"leadId": leadID, "summary": summary})
}

var _ apphttp.Module = (*Module)(nil)
