package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"funnelboard/internal/boardcache"
	leadtransport "funnelboard/internal/leads/transport"
	"funnelboard/platform/httpkit"
	"funnelboard/platform/logger"
	"funnelboard/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// LeadIntaker is the lead lifecycle surface the webhook needs: find-or-create
// a lead for an inbound message in the funnel's entry stage.
type LeadIntaker interface {
	IntakeInboundMessage(ctx context.Context, funnelID, ownerID uuid.UUID, rawPhone, name, text string, at time.Time) (boardcache.Lead, bool, error)
	Get(ctx context.Context, userID, leadID uuid.UUID) (leadtransport.LeadResponse, error)
}

// FunnelOwnerResolver maps a funnel id to its creating user. The webhook
// carries no authenticated identity, only the funnel in its URL.
type FunnelOwnerResolver interface {
	FunnelOwner(ctx context.Context, funnelID uuid.UUID) (uuid.UUID, error)
}

// OutboundQueue enqueues a message for background delivery.
type OutboundQueue interface {
	EnqueueWhatsAppSend(ctx context.Context, leadID, tenantID uuid.UUID, phoneNumber, message string) error
}

// Handler handles the inbound webhook, outbound sends and device pairing.
type Handler struct {
	client        *Client
	leads         LeadIntaker
	funnels       FunnelOwnerResolver
	queue         OutboundQueue
	webhookSecret string
	val           *validator.Validator
	log           *logger.Logger
}

func NewHandler(client *Client, leads LeadIntaker, funnels FunnelOwnerResolver, queue OutboundQueue, webhookSecret string, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		client:        client,
		leads:         leads,
		funnels:       funnels,
		queue:         queue,
		webhookSecret: webhookSecret,
		val:           val,
		log:           log,
	}
}

// inboundWebhook is the gowa message webhook payload. From is a JID
// ("5511999999999@s.whatsapp.net"); pushname is the sender's display name.
type inboundWebhook struct {
	From     string `json:"from" validate:"required,max=128"`
	Pushname string `json:"pushname" validate:"max=160"`
	Message  struct {
		Text string `json:"text" validate:"max=65536"`
	} `json:"message"`
	Timestamp *time.Time `json:"timestamp"`
}

type sendRequest struct {
	Message string `json:"message" binding:"required,max=4000"`
}

// HandleInbound receives a gateway message webhook and runs lead intake.
// POST /api/v1/webhooks/whatsapp/:funnelId
func (h *Handler) HandleInbound(c *gin.Context) {
	funnelID, err := uuid.Parse(c.Param("funnelId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid funnelId", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable body", nil)
		return
	}

	if !h.verifySignature(body, c.GetHeader("X-Hub-Signature-256")) {
		h.log.Warn("whatsapp webhook signature rejected", "funnelId", funnelID)
		httpkit.Error(c, http.StatusUnauthorized, "invalid signature", nil)
		return
	}

	var payload inboundWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.val.Struct(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}

	rawPhone := jidPhone(payload.From)
	if rawPhone == "" {
		httpkit.Error(c, http.StatusBadRequest, "missing sender", nil)
		return
	}

	ownerID, err := h.funnels.FunnelOwner(c.Request.Context(), funnelID)
	if httpkit.HandleError(c, err) {
		return
	}

	at := time.Now()
	if payload.Timestamp != nil {
		at = *payload.Timestamp
	}

	name := strings.TrimSpace(payload.Pushname)
	if name == "" {
		name = rawPhone
	}

	lead, created, err := h.leads.IntakeInboundMessage(c.Request.Context(), funnelID, ownerID, rawPhone, name, payload.Message.Text, at)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"leadId": lead.ID, "created": created})
}

// HandleSend queues an outbound message to a lead's phone.
// POST /api/v1/leads/:leadId/whatsapp
func (h *Handler) HandleSend(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid leadId", nil)
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	resp, err := h.leads.Get(c.Request.Context(), identity.UserID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	lead := resp.Lead

	if err := h.queue.EnqueueWhatsAppSend(c.Request.Context(), lead.ID, lead.CreatedByUserID, lead.Phone, req.Message); err != nil {
		h.log.Error("whatsapp enqueue failed", "leadId", leadID, "error", err)
		httpkit.Error(c, http.StatusServiceUnavailable, "message could not be queued", nil)
		return
	}

	httpkit.Accepted(c, gin.H{"leadId": lead.ID, "queued": true})
}

// HandlePairingQR renders the device pairing code as a QR PNG.
// GET /api/v1/whatsapp/pairing-qr
func (h *Handler) HandlePairingQR(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	code, err := h.client.PairingCode(c.Request.Context())
	if err != nil {
		h.log.Error("whatsapp pairing failed", "error", err)
		httpkit.Error(c, http.StatusBadGateway, "pairing unavailable", nil)
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "qr encoding failed", nil)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// verifySignature checks the gateway's HMAC-SHA256 body signature
// ("sha256=<hex>"). An empty configured secret disables the check.
func (h *Handler) verifySignature(body []byte, header string) bool {
	if h.webhookSecret == "" {
		return true
	}

	header = strings.TrimPrefix(header, "sha256=")
	got, err := hex.DecodeString(header)
	if err != nil || len(got) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// jidPhone strips the JID domain suffix from a sender address.
func jidPhone(from string) string {
	from = strings.TrimSpace(from)
	if at := strings.IndexByte(from, '@'); at >= 0 {
		from = from[:at]
	}
	if colon := strings.IndexByte(from, ':'); colon >= 0 {
		from = from[:colon]
	}
	return from
}
