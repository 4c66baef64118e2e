package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskforge/backend/internal/events"
	"github.com/taskforge/backend/internal/infrastructure/journal"
	"github.com/taskforge/backend/pkg/httpcontext"
)

// OpsHandler serves runtime introspection for operators: engine status and
// the dead-letter journal backlog.
type OpsHandler struct {
	baseHandler
	journal *journal.Store
	bus     *events.Bus
	started time.Time
}

func NewOpsHandler(jnl *journal.Store, bus *events.Bus, adapter *httpcontext.Adapter, logger *zap.Logger) *OpsHandler {
	return &OpsHandler{
		baseHandler: newBaseHandler(adapter, logger),
		journal:     jnl,
		bus:         bus,
		started:     time.Now(),
	}
}

// @Summary Engine runtime status
// @Tags ops
// @Router /ops/status [get]
func (h *OpsHandler) Status(ctx *fasthttp.RequestCtx) {
	payload := map[string]interface{}{
		"started_at":     h.started.UTC(),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	}
	if h.bus != nil {
		payload["event_queue_depth"] = h.bus.Depth()
	}
	h.respondSuccess(ctx, http.StatusOK, payload)
}

// @Summary Dead-letter journal statistics
// @Tags ops
// @Router /ops/journal [get]
func (h *OpsHandler) Journal(ctx *fasthttp.RequestCtx) {
	size, err := h.journal.Size()
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	payload := map[string]interface{}{
		"size": size,
	}
	if size > 0 {
		if batch, err := h.journal.GetBatch(1); err == nil && len(batch) > 0 {
			oldest := batch[0]
			payload["oldest"] = map[string]interface{}{
				"id":          oldest.ID,
				"subscriber":  oldest.Subscriber,
				"cause":       oldest.Cause,
				"attempts":    oldest.Attempts,
				"recorded_at": oldest.RecordedAt,
			}
		}
	}
	h.respondSuccess(ctx, http.StatusOK, payload)
}
