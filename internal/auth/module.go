// Package auth provides the authentication bounded context module.
package auth

import (
	"funnelboard/internal/auth/handler"
	"funnelboard/internal/auth/repository"
	"funnelboard/internal/auth/service"
	"funnelboard/internal/events"
	apphttp "funnelboard/internal/http"
	"funnelboard/platform/config"
	"funnelboard/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, bus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, bus, log)
	h := handler.New(svc)

	return &Module{handler: h, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Repository exposes the account store; the tenancy resolver reads through it.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	authGroup.POST("/signup", m.handler.SignUp)
	authGroup.POST("/signin", m.handler.SignIn)
	authGroup.POST("/refresh", m.handler.Refresh)
	authGroup.POST("/signout", m.handler.SignOut)

	ctx.Protected.GET("/auth/me", m.handler.Me)

	team := ctx.Admin.Group("/team")
	team.POST("", m.handler.CreateOperational)
	team.GET("", m.handler.ListTeam)
}

var _ apphttp.Module = (*Module)(nil)
