// Package leads provides the lead store, paginated fetchers and mutations.
package leads

import (
	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	apphttp "funnelboard/internal/http"
	"funnelboard/internal/leads/handler"
	"funnelboard/internal/leads/repository"
	"funnelboard/internal/leads/service"
	"funnelboard/internal/tenancy"
	"funnelboard/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the leads module.
func NewModule(pool *pgxpool.Pool, stages service.StageSource, resolver *tenancy.Resolver, cache *boardcache.Store, bus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, stages, resolver, cache, bus, log)
	h := handler.New(svc)

	return &Module{handler: h, svc: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service exposes the lead service; the board, realtime and whatsapp modules
// read and write leads through it.
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/funnels/:funnelId/leads", m.handler.ListPage)
	ctx.Protected.GET("/funnels/:funnelId/leads/search", m.handler.Search)

	group := ctx.Protected.Group("/leads")
	group.POST("", m.handler.Create)
	group.GET("/:leadId", m.handler.Get)
	group.PATCH("/:leadId", m.handler.Update)
	group.PUT("/:leadId/stage", m.handler.MoveStage)
	group.PUT("/:leadId/assignee", m.handler.Assign)
	group.POST("/:leadId/read", m.handler.MarkRead)
	group.DELETE("/:leadId", m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)
