package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

const defaultAPIVersion = "v1"

// RouteRegistrar mounts its routes on the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version>. Middleware added with Use
// runs for API routes only; /health and /swagger stay on the bare engine.
type Router struct {
	engine     *gin.Engine
	version    string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// NewRouter creates a router for apiVersion, "v1" when empty
func NewRouter(engine *gin.Engine, apiVersion string) *Router {
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &Router{engine: engine, version: apiVersion}
}

func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registrar. Call it once, after all Use and Register calls.
func (r *Router) Setup() {
	api := r.engine.Group(r.APIPrefix(), r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

func (r *Router) APIPrefix() string {
	return "/api/" + r.version
}

// DomainGroup is the route table of one domain, built before it is mounted
type DomainGroup struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*DomainGroup
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

func NewDomainGroup(prefix string) *DomainGroup {
	return &DomainGroup{prefix: prefix}
}

// Use adds middleware for this group and its subgroups
func (g *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

func (g *DomainGroup) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	g.routes = append(g.routes, route{method: method, path: relativePath, handlers: handlers})
	return g
}

func (g *DomainGroup) GET(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodGet, relativePath, handlers...)
}

func (g *DomainGroup) POST(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPost, relativePath, handlers...)
}

func (g *DomainGroup) DELETE(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodDelete, relativePath, handlers...)
}

// Group returns a new subgroup mounted under this group's prefix
func (g *DomainGroup) Group(prefix string) *DomainGroup {
	child := NewDomainGroup(prefix)
	g.children = append(g.children, child)
	return child
}

func (g *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range g.children {
		child.RegisterRoutes(group)
	}
}

// Routes lists "METHOD /path" for every route, relative to the API prefix
func (g *DomainGroup) Routes() []string {
	return g.collect("/")
}

func (g *DomainGroup) collect(parent string) []string {
	base := path.Join(parent, g.prefix)
	out := make([]string, 0, len(g.routes))
	for _, rt := range g.routes {
		out = append(out, rt.method+" "+joinRoute(base, rt.path))
	}
	for _, child := range g.children {
		out = append(out, child.collect(base)...)
	}
	return out
}

// joinRoute keeps gin's ":param" segments intact and drops a trailing slash
// for empty relative paths.
func joinRoute(base, relativePath string) string {
	if relativePath == "" {
		return base
	}
	return path.Join(base, relativePath)
}
