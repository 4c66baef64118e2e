// Package httpcontext bridges fasthttp requests to stdlib contexts so
// handlers can call context-aware components with a per-request deadline.
package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/taskforge/backend/pkg/logger"
)

// Key is the context key type for request metadata values.
type Key string

const KeyRemoteAddr Key = "remote_addr"

// Adapter derives deadline-bound contexts from fasthttp requests.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs an Adapter with the given per-request timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

// Attach returns a context carrying the request ID and remote address,
// cancelled after the adapter's timeout. The request ID is echoed back on
// the response so operators can correlate log lines.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := requestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}

	return stdCtx, cancel
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if ctx != nil {
		if header := string(ctx.Request.Header.Peek("X-Request-ID")); strings.TrimSpace(header) != "" {
			return header
		}
	}
	return uuid.NewString()
}
