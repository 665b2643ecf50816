package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration. API registrars are mounted under
// the versioned prefix; root registrars (health, webhooks) at the engine
// root so they survive API version bumps.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	api        []RouteRegistrar
	root       []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g. "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a registrar mounted under /api/<version>
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.api = append(r.api, registrar)
	return r
}

// RegisterRoot adds a registrar mounted at the engine root
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.root = append(r.root, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.api {
		registrar.RegisterRoutes(api)
	}

	root := r.engine.Group("")
	for _, registrar := range r.root {
		registrar.RegisterRoutes(root)
	}
}
