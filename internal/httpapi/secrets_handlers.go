package httpapi

import (
	"io"
	"net/http"
	"sync/atomic"

	"ctsmirror/internal/config"
	"ctsmirror/internal/secrets"
)

// maxKeyBytes bounds an uploaded service-account key.
const maxKeyBytes = 64 << 10

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

func (h SecretsHandler) account() string {
	cfg := h.CfgVal.Load().(config.Config)
	return secrets.Account(cfg.Project.KeyringAccount, cfg.Project.ID)
}

// SetCredentials stores the request body, a service-account JSON key, in the keychain.
func (h SecretsHandler) SetCredentials(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxKeyBytes))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "read_failed", err.Error())
		return
	}
	if err := secrets.SetCredentials(h.account(), body); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store credentials: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteCredentials(w http.ResponseWriter, r *http.Request) {
	if err := secrets.DeleteCredentials(h.account()); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
