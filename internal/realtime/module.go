package realtime

import (
	"net/http"

	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	apphttp "funnelboard/internal/http"
	"funnelboard/internal/presence"
	"funnelboard/internal/realtime/sse"
	"funnelboard/internal/tenancy"
	"funnelboard/platform/debounce"
	"funnelboard/platform/httpkit"
	"funnelboard/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module is the realtime bounded context module implementing http.Module.
type Module struct {
	listener *Listener
	fanout   *sse.Service
	presence *presence.Service
	resolver *tenancy.Resolver
}

// NewModule creates the realtime module and subscribes its listener to the
// bus. presenceSvc may be nil when Redis is not configured.
func NewModule(leads LeadSource, cache *boardcache.Store, presenceSvc *presence.Service, resolver *tenancy.Resolver, bus events.Bus, log *logger.Logger) *Module {
	var tracker sse.PresenceTracker
	if presenceSvc != nil {
		tracker = presenceSvc
	}
	fanout := sse.New(tracker, log)

	listener := NewListener(leads, cache, fanout, debounce.DefaultWindow, log)
	listener.Subscribe(bus)

	return &Module{
		listener: listener,
		fanout:   fanout,
		presence: presenceSvc,
		resolver: resolver,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "realtime"
}

// Listener exposes the delta listener for lifecycle control.
func (m *Module) Listener() *Listener {
	return m.listener
}

// Fanout exposes the SSE service for shutdown.
func (m *Module) Fanout() *sse.Service {
	return m.fanout
}

// RegisterRoutes mounts the event stream and presence routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/realtime/stream", m.fanout.Handler(m.resolveTenant))
	ctx.Protected.GET("/realtime/online", m.online)
}

func (m *Module) resolveTenant(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	identity := httpkit.GetIdentity(c)
	if identity == nil || !identity.IsAuthenticated() {
		return uuid.Nil, uuid.Nil, false
	}

	ownership, err := m.resolver.Resolve(c.Request.Context(), identity.UserID())
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return identity.UserID(), ownership.OwnerID, true
}

func (m *Module) online(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	ownership, err := m.resolver.Resolve(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	if m.presence == nil {
		httpkit.OK(c, gin.H{"online": []uuid.UUID{}})
		return
	}

	online, err := m.presence.Online(c.Request.Context(), ownership.OwnerID)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list presence", nil)
		return
	}
	httpkit.OK(c, gin.H{"online": online})
}

var _ apphttp.Module = (*Module)(nil)
