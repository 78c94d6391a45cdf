package whatsapp

import (
	apphttp "funnelboard/internal/http"
	"funnelboard/platform/config"
	"funnelboard/platform/logger"
	"funnelboard/platform/validator"
)

// Module is the whatsapp bounded context module implementing http.Module.
type Module struct {
	client  *Client
	handler *Handler
}

// NewModule creates and initializes the whatsapp module. A nil queue is
// allowed when Redis is not configured; sends then fail with 503.
func NewModule(cfg config.WhatsAppConfig, leads LeadIntaker, funnels FunnelOwnerResolver, queue OutboundQueue, val *validator.Validator, log *logger.Logger) *Module {
	client := NewClient(cfg, log)
	handler := NewHandler(client, leads, funnels, queue, cfg.GetWhatsAppWebhookSecret(), val, log)

	return &Module{
		client:  client,
		handler: handler,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "whatsapp"
}

// Client returns the gateway client for use by the worker binary.
func (m *Module) Client() *Client {
	return m.client
}

// RegisterRoutes mounts whatsapp routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public gateway webhook (HMAC body signature, no JWT).
	ctx.V1.POST("/webhooks/whatsapp/:funnelId", m.handler.HandleInbound)

	ctx.Protected.POST("/leads/:leadId/whatsapp", m.handler.HandleSend)
	ctx.Protected.GET("/whatsapp/pairing-qr", m.handler.HandlePairingQR)
}

var _ apphttp.Module = (*Module)(nil)
