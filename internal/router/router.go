package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/taskforge/backend/api/handler"
)

type Handlers struct {
	Health *apiHandler.HealthHandler
	Ops    *apiHandler.OpsHandler
}

// New builds the ops route table. Every route goes through wrap, which
// carries the access log and panic recovery chain.
func New(handlers Handlers, wrap func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	if wrap == nil {
		wrap = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}

	r := router.New()

	r.GET("/health", wrap(handlers.Health.Check))
	r.GET("/ops/status", wrap(handlers.Ops.Status))
	r.GET("/ops/journal", wrap(handlers.Ops.Journal))

	return r
}
