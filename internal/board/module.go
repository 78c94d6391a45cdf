// Package board composes the kanban board view and its coordination surface.
package board

import (
	"funnelboard/internal/board/handler"
	"funnelboard/internal/board/service"
	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	apphttp "funnelboard/internal/http"
	leadsvc "funnelboard/internal/leads/service"
	"funnelboard/platform/logger"
)

// Module is the board bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the board module.
func NewModule(leads *leadsvc.Service, stages service.StageSource, cache *boardcache.Store, bus events.Bus, log *logger.Logger) *Module {
	svc := service.New(leads, stages, cache, bus, log)
	h := handler.New(svc)

	return &Module{handler: h}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "board"
}

// RegisterRoutes mounts board routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/funnels/:funnelId/board")
	group.GET("", m.handler.GetBoard)
	group.GET("/stages/:stageId", m.handler.LoadStageColumn)
	group.POST("/drag/start", m.handler.DragStart)
	group.POST("/drag/end", m.handler.DragEnd)
	group.GET("/selection", m.handler.Selection)
	group.POST("/selection", m.handler.Select)
	group.DELETE("/selection", m.handler.Deselect)
	group.POST("/selection/all", m.handler.SelectAll)
	group.DELETE("/selection/all", m.handler.ClearSelection)
}

var _ apphttp.Module = (*Module)(nil)
