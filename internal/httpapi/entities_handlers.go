package httpapi

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/resolve"
)

type EntitiesHandler struct {
	Resolver *resolve.Resolver
}

type listResponse struct {
	Entities []domain.Entity `json:"entities"`
	Missing  []string        `json:"missing,omitempty"`
}

type lister func(ctx context.Context, q resolve.Query) ([]domain.Entity, error)

func (h EntitiesHandler) Tenants(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Resolver.Tenants)
}

func (h EntitiesHandler) Companies(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Resolver.Companies)
}

func (h EntitiesHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Resolver.Jobs)
}

// list answers ?ids=a,b or every row when ids is absent. Unknown ids are reported next to
// the entities that were found rather than failing the request.
func (h EntitiesHandler) list(w http.ResponseWriter, r *http.Request, fn lister) {
	q, err := queryFrom(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	found, err := fn(r.Context(), q)
	var missing *resolve.MissingError
	if err != nil && !errors.As(err, &missing) {
		writeErr(w, r, err)
		return
	}

	out := listResponse{Entities: found}
	if out.Entities == nil {
		out.Entities = []domain.Entity{}
	}
	if missing != nil {
		out.Missing = missing.IDs
	}
	WriteJSON(w, http.StatusOK, out)
}

func queryFrom(r *http.Request) (resolve.Query, error) {
	v := r.URL.Query()
	scope, err := resolve.ParseScope(v.Get("scope"))
	if err != nil {
		return resolve.Query{}, err
	}
	q := resolve.Query{
		Tenant:      v.Get("tenant"),
		Company:     v.Get("company"),
		ExternalIDs: v.Get("ids"),
		Scope:       scope,
		Languages:   v.Get("languages"),
		Status:      v.Get("status"),
	}
	q.All = len(resolve.SplitList(q.ExternalIDs)) == 0
	return q, nil
}
