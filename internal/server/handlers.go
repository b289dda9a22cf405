package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"schemap/internal/database"
	"schemap/internal/errs"
	"schemap/internal/logger"
	"schemap/internal/query"
	"schemap/internal/render"
)

// DialectFunc resolves the SQL dialect of a named connection.
type DialectFunc func(name string) database.Dialect

type handlers struct {
	svc     Service
	dialect DialectFunc
	log     *logger.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listConnections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Connections())
}

func (h *handlers) schema(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context(), chi.URLParam(r, "name"), false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Schema)
}

func (h *handlers) graph(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context(), chi.URLParam(r, "name"), false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Graph)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.svc.Snapshot(r.Context(), name, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connection": name,
		"created_at": snap.CreatedAt,
		"tables":     len(snap.Schema.Tables),
		"edges":      len(snap.Graph.Edges),
	})
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, errs.Wrap(errs.ErrKindInvalidInput, "invalid query request body", err))
		return
	}

	rows, err := h.svc.Query(r.Context(), chi.URLParam(r, "name"), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":  rows,
		"count": len(rows),
	})
}

// export renders the snapshot as DDL or a Mermaid diagram, selected by the
// format query parameter.
func (h *handlers) export(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.svc.Snapshot(r.Context(), name, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var out string
	switch format := r.URL.Query().Get("format"); format {
	case "", "ddl":
		out = render.DDL(snap.Schema, h.dialect(name))
	case "mermaid":
		out = render.Mermaid(snap.Graph)
	default:
		h.fail(w, r, errs.New(errs.ErrKindInvalidInput, "unsupported export format: "+format))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.log.ErrorWith("request failed", err, map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	writeError(w, err)
}
