package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/poll"
)

type BatchHandler struct {
	Runner *poll.Runner
	Log    *logging.Logger

	// Base is the context runs are started under; it outlives the request.
	Base context.Context
}

type runBatchReq struct {
	File string `json:"file"`
}

func (h BatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Runner.Status())
}

// Run starts a batch over a file already on the server's disk and returns 202.
// Progress is streamed on /events.
func (h BatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req runBatchReq
	if err := dec.Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if strings.TrimSpace(req.File) == "" {
		writeErr(w, r, domain.Invalid("file", "file is required"))
		return
	}

	base := h.Base
	if base == nil {
		base = context.Background()
	}
	reqID := RequestIDFrom(r.Context())
	err := h.Runner.Start(base, req.File, func(rep *poll.Report, err error) {
		if err != nil {
			h.Log.Warn("batch run ended with error", "request_id", reqID, "file", req.File, "err", err)
		}
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "file": req.File})
}
