// Package tags provides tenant tag management and the lead tag mutation path.
package tags

import (
	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	apphttp "funnelboard/internal/http"
	"funnelboard/internal/tags/handler"
	"funnelboard/internal/tags/repository"
	"funnelboard/internal/tags/service"
	"funnelboard/internal/tenancy"
	"funnelboard/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tags bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the tags module.
func NewModule(pool *pgxpool.Pool, resolver *tenancy.Resolver, cache *boardcache.Store, bus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, resolver, cache, bus, log)
	h := handler.New(svc)

	return &Module{handler: h}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tags"
}

// RegisterRoutes mounts tag routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/tags")
	group.POST("", m.handler.CreateTag)
	group.GET("", m.handler.ListTags)
	group.PATCH("/:tagId", m.handler.UpdateTag)
	group.DELETE("/:tagId", m.handler.DeleteTag)
	group.POST("/:tagId/leads", m.handler.AttachTagBatch)
	group.DELETE("/:tagId/leads", m.handler.DetachTagBatch)

	leads := ctx.Protected.Group("/leads/:leadId/tags")
	leads.GET("", m.handler.LeadTags)
	leads.POST("/:tagId", m.handler.AttachTag)
	leads.DELETE("/:tagId", m.handler.DetachTag)
}

var _ apphttp.Module = (*Module)(nil)
