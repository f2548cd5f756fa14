package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iauth "github.com/charlesng35/agentdesk/internal/auth"
	"github.com/charlesng35/agentdesk/internal/handlers"
	"github.com/charlesng35/agentdesk/internal/middleware"
	"github.com/charlesng35/agentdesk/internal/monitoring"
	"github.com/charlesng35/agentdesk/internal/permissions"
	"github.com/charlesng35/agentdesk/internal/security"
	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/internal/store"
)

// RateLimit bounds requests per client IP and route.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Dependencies carries the wired services the router mounts.
type Dependencies struct {
	Store       store.Store
	JWT         *iauth.JWTService
	Sessions    *iauth.SessionService
	Agents      *services.AgentService
	Invitations *services.InvitationService
	Roles       *services.CustomRoleService

	// Audit backs /api/security/audit; the route is omitted when nil.
	Audit *security.AuditService

	// Health backs the /health endpoints; nil always reports up.
	Health *monitoring.HealthManager

	// Global applies to every route; Login to the credential endpoints.
	// Zero values fall back to the defaults below.
	Global RateLimit
	Login  RateLimit
}

var (
	defaultGlobalLimit = RateLimit{Requests: 300, Window: time.Minute}
	defaultLoginLimit  = RateLimit{Requests: 10, Window: time.Minute}
)

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("router: store must be provided")
	case deps.JWT == nil:
		return nil, errors.New("router: jwt service must be provided")
	case deps.Sessions == nil:
		return nil, errors.New("router: session service must be provided")
	case deps.Agents == nil:
		return nil, errors.New("router: agent service must be provided")
	case deps.Invitations == nil:
		return nil, errors.New("router: invitation service must be provided")
	case deps.Roles == nil:
		return nil, errors.New("router: custom role service must be provided")
	}

	checker, err := permissions.NewChecker(deps.Agents)
	if err != nil {
		return nil, err
	}

	global := withDefault(deps.Global, defaultGlobalLimit)
	login := withDefault(deps.Login, defaultLoginLimit)

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(quietRoutes...))
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit(global.Requests, global.Window))

	registerHealthRoutes(r, handlers.NewHealthHandler(deps.Health))

	api := r.Group("/api")
	public := api.Group("")
	protected := api.Group("")
	protected.Use(middleware.Auth(deps.JWT, deps.Sessions))

	routeDeps := routeDeps{
		checker:     checker,
		loginLimit:  middleware.RateLimit(login.Requests, login.Window),
		auth:        handlers.NewAuthHandler(deps.Store.Accounts(), deps.Agents, deps.Sessions),
		agents:      handlers.NewAgentHandler(deps.Agents, deps.Sessions),
		invitations: handlers.NewInvitationHandler(deps.Invitations, deps.Agents),
		roles:       handlers.NewRoleHandler(deps.Roles),
		perms:       handlers.NewPermissionHandler(),
		setup:       handlers.NewSetupHandler(deps.Store.Accounts(), deps.Agents),
	}
	if deps.Audit != nil {
		routeDeps.security = handlers.NewSecurityHandler(deps.Audit)
	}

	registerSetupRoutes(public, routeDeps)
	registerAuthRoutes(public, protected, routeDeps)
	registerAgentRoutes(protected, routeDeps)
	registerInvitationRoutes(public, protected, routeDeps)
	registerRoleRoutes(protected, routeDeps)
	registerSecurityRoutes(protected, routeDeps)

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

// quietRoutes are polled by probes and scrapers; their successes log at debug.
var quietRoutes = []string{
	"/health", "/health/live", "/health/ready",
	"/api/health", "/api/health/live", "/api/health/ready",
	"/metrics",
}

type routeDeps struct {
	checker     *permissions.Checker
	loginLimit  gin.HandlerFunc
	auth        *handlers.AuthHandler
	agents      *handlers.AgentHandler
	invitations *handlers.InvitationHandler
	roles       *handlers.RoleHandler
	perms       *handlers.PermissionHandler
	setup       *handlers.SetupHandler
	security    *handlers.SecurityHandler
}

func (d routeDeps) require(capability string) gin.HandlerFunc {
	return middleware.RequireCapability(d.checker, capability)
}

func withDefault(limit, fallback RateLimit) RateLimit {
	if limit.Requests <= 0 {
		limit.Requests = fallback.Requests
	}
	if limit.Window <= 0 {
		limit.Window = fallback.Window
	}
	return limit
}
