package httpapi

import (
	"net/http"

	"ctsmirror/internal/events"
	"ctsmirror/internal/poll"
	"ctsmirror/internal/store"
)

type HealthHandler struct {
	DB     *store.DB
	Hub    *events.Hub
	Runner *poll.Runner
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"ok": true}

	if h.DB != nil {
		if err := h.DB.Pool.PingContext(r.Context()); err != nil {
			out["ok"] = false
			out["db_error"] = err.Error()
		}
	}
	if h.Hub != nil {
		out["sse_clients"] = h.Hub.Clients()
	}
	if h.Runner != nil {
		out["batch_running"] = h.Runner.Status().Running
	}

	status := http.StatusOK
	if out["ok"] == false {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, out)
}
