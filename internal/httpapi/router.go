package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"ctsmirror/internal/logging"
)

// NewRouter wires every route and wraps them in the standard middleware chain.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	hh := HealthHandler{DB: d.DB, Hub: d.Hub, Runner: d.Runner}
	r.HandleFunc("/health", hh.Health).Methods(http.MethodGet)

	// Mirror listings
	eh := EntitiesHandler{Resolver: d.Resolver}
	r.HandleFunc("/tenants", eh.Tenants).Methods(http.MethodGet)
	r.HandleFunc("/companies", eh.Companies).Methods(http.MethodGet)
	r.HandleFunc("/jobs", eh.Jobs).Methods(http.MethodGet)

	// Batch job creation
	bh := BatchHandler{Runner: d.Runner, Log: d.Log, Base: d.Base}
	r.HandleFunc("/batches", bh.Run).Methods(http.MethodPost)
	r.HandleFunc("/batches/status", bh.Status).Methods(http.MethodGet)

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	r.HandleFunc("/config", ch.Get).Methods(http.MethodGet)
	r.HandleFunc("/config", ch.Put).Methods(http.MethodPut)
	r.HandleFunc("/config/path", ch.Path).Methods(http.MethodGet)
	r.HandleFunc("/config/validate", ch.Validate).Methods(http.MethodGet)

	// Local-only admin
	sh := SecretsHandler{CfgVal: d.CfgVal}
	r.Handle("/secrets/credentials", LocalOnly(http.HandlerFunc(sh.SetCredentials))).Methods(http.MethodPost)
	r.Handle("/secrets/credentials", LocalOnly(http.HandlerFunc(sh.DeleteCredentials))).Methods(http.MethodDelete)
	dh := DBHandler{DB: d.DB}
	r.Handle("/db/checkpoint", LocalOnly(http.HandlerFunc(dh.Checkpoint))).Methods(http.MethodPost)

	// SSE events
	evh := EventsHandler{Hub: d.Hub}
	r.HandleFunc("/events", evh.ServeSSE).Methods(http.MethodGet)

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}

	return Chain(r,
		RequestID,
		Recover(d.Log),
		AccessLog(d.Log),
		Cors(d.AllowedOrigins),
	)
}
