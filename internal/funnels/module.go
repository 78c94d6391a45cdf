// Package funnels provides funnel and kanban stage management.
package funnels

import (
	"funnelboard/internal/events"
	"funnelboard/internal/funnels/handler"
	"funnelboard/internal/funnels/repository"
	"funnelboard/internal/funnels/service"
	apphttp "funnelboard/internal/http"
	"funnelboard/internal/tenancy"
	"funnelboard/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the funnels bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the funnels module. Stage seeds come from
// the YAML seed file resolved by the caller.
func NewModule(pool *pgxpool.Pool, resolver *tenancy.Resolver, bus events.Bus, seeds []service.StageSeed, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, resolver, bus, seeds, log)
	h := handler.New(svc)

	return &Module{handler: h, svc: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "funnels"
}

// Service exposes the funnel service; the board module reads stages through it.
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts funnel routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/funnels")
	group.POST("", m.handler.CreateFunnel)
	group.GET("", m.handler.ListFunnels)
	group.GET("/:funnelId", m.handler.GetFunnel)
	group.PATCH("/:funnelId", m.handler.RenameFunnel)
	group.DELETE("/:funnelId", m.handler.DeleteFunnel)

	group.GET("/:funnelId/stages", m.handler.ListStages)
	group.POST("/:funnelId/stages", m.handler.CreateStage)
	group.PUT("/:funnelId/stages/order", m.handler.ReorderStages)
	group.PATCH("/:funnelId/stages/:stageId", m.handler.UpdateStage)
	group.DELETE("/:funnelId/stages/:stageId", m.handler.DeleteStage)
}

var _ apphttp.Module = (*Module)(nil)
