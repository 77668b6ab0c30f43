// Package crud provides one generic HTTP handler set per resource. A
// resource plugs in its bun model, its filter allow-list and optional
// hooks; the handler implements the five standard operations with the
// shared response envelope.
package crud

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/natours/natours-api/internal/apperror"
	"github.com/natours/natours-api/internal/httputil"
	"github.com/natours/natours-api/internal/logging"
	"github.com/natours/natours-api/internal/query"
)

const notFoundMessage = "No document found with that ID"

// Config wires a resource into the generic handler.
type Config[T any] struct {
	// AllowedFilters is passed through to the query parser; it is the only
	// set of columns clients can filter on.
	AllowedFilters []string
	// WritableColumns lists the columns a PATCH may touch. Anything else in
	// the request body is dropped.
	WritableColumns []string
	// Relations are loaded on single-document reads.
	Relations []string
	// DefaultSort overrides the created_at default for list reads.
	DefaultSort string
	// Scope narrows every read, e.g. an active-only predicate.
	Scope func(q *bun.SelectQuery) *bun.SelectQuery
	// RequestScope narrows reads from request state, e.g. an ancestor ID in
	// the URL on nested routes.
	RequestScope func(r *http.Request, q *bun.SelectQuery) *bun.SelectQuery
	// BeforeCreate mutates the decoded model before insert, e.g. filling
	// ancestor and author IDs on nested routes.
	BeforeCreate func(r *http.Request, model *T) error
	// BeforeUpdate mutates or validates the decoded update body before any
	// column is applied, e.g. normalizing an email address.
	BeforeUpdate func(r *http.Request, body map[string]any) error
}

// Handler implements the standard operations for one resource. Failures are
// logged through the request-scoped logger so entries carry the request id.
type Handler[T any] struct {
	db  *bun.DB
	cfg Config[T]
}

func NewHandler[T any](db *bun.DB, cfg Config[T]) *Handler[T] {
	return &Handler[T]{db: db, cfg: cfg}
}

// CreateOne handles POST /. The inserted row is read back via RETURNING so
// database defaults appear in the response.
func (h *Handler[T]) CreateOne(w http.ResponseWriter, r *http.Request) {
	model := new(T)
	if err := json.NewDecoder(r.Body).Decode(model); err != nil {
		httputil.RespondError(w, apperror.BadRequest("Invalid request body"))
		return
	}

	if h.cfg.BeforeCreate != nil {
		if err := h.cfg.BeforeCreate(r, model); err != nil {
			httputil.RespondError(w, err)
			return
		}
	}

	if _, err := h.db.NewInsert().Model(model).Returning("*").Exec(r.Context()); err != nil {
		h.respondWriteError(w, r, err)
		return
	}

	httputil.RespondData(w, model, http.StatusCreated)
}

// GetOne handles GET /{id}.
func (h *Handler[T]) GetOne(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	model := new(T)
	q := h.db.NewSelect().Model(model).Where("?TableAlias.id = ?", id)
	q = h.applyScopes(r, q)
	for _, rel := range h.cfg.Relations {
		q = q.Relation(rel)
	}

	if err := q.Scan(r.Context()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.RespondError(w, apperror.NotFound(notFoundMessage))
			return
		}
		logging.GetLoggerFromContext(r.Context()).Error("failed to fetch document", "error", err)
		httputil.RespondError(w, err)
		return
	}

	httputil.RespondData(w, model, http.StatusOK)
}

// GetAll handles GET /. Filtering, sorting, projection and pagination all
// come from the query string; scopes compose on top.
func (h *Handler[T]) GetAll(w http.ResponseWriter, r *http.Request) {
	features := query.Parse(r.URL.Query(), query.Options{
		AllowedFilters: h.cfg.AllowedFilters,
		DefaultSort:    h.cfg.DefaultSort,
	})

	var models []T
	q := h.db.NewSelect().Model(&models)
	q = h.applyScopes(r, q)
	q = features.Apply(q)

	if err := q.Scan(r.Context()); err != nil {
		h.respondReadError(w, r, err)
		return
	}
	if models == nil {
		models = []T{}
	}

	httputil.RespondList(w, models, len(models))
}

// UpdateOne handles PATCH /{id}. Only configured writable columns are
// applied; the version counter and updated_at move with every update and
// the fresh row is returned.
func (h *Handler[T]) UpdateOne(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.RespondError(w, apperror.BadRequest("Invalid request body"))
		return
	}

	if h.cfg.BeforeUpdate != nil {
		if err := h.cfg.BeforeUpdate(r, body); err != nil {
			httputil.RespondError(w, err)
			return
		}
	}

	model := new(T)
	q := h.db.NewUpdate().Model(model).Where("?TableAlias.id = ?", id)

	applied := 0
	for _, col := range h.cfg.WritableColumns {
		value, present := body[col]
		if !present {
			continue
		}
		q = q.Set("? = ?", bun.Ident(col), value)
		applied++
	}
	if applied == 0 {
		httputil.RespondError(w, apperror.BadRequest("No valid fields to update"))
		return
	}
	q = q.Set("version = version + 1").Set("updated_at = now()").Returning("*")

	res, err := q.Exec(r.Context())
	if err != nil {
		h.respondWriteError(w, r, err)
		return
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		httputil.RespondError(w, apperror.NotFound(notFoundMessage))
		return
	}

	httputil.RespondData(w, model, http.StatusOK)
}

// DeleteOne handles DELETE /{id}: 204 on success, 404 when nothing matched.
func (h *Handler[T]) DeleteOne(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	res, err := h.db.NewDelete().Model((*T)(nil)).Where("id = ?", id).Exec(r.Context())
	if err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to delete document", "error", err)
		httputil.RespondError(w, err)
		return
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		httputil.RespondError(w, apperror.NotFound(notFoundMessage))
		return
	}

	httputil.RespondNoContent(w)
}

func (h *Handler[T]) applyScopes(r *http.Request, q *bun.SelectQuery) *bun.SelectQuery {
	if h.cfg.Scope != nil {
		q = h.cfg.Scope(q)
	}
	if h.cfg.RequestScope != nil {
		q = h.cfg.RequestScope(r, q)
	}
	return q
}

func (h *Handler[T]) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondError(w, apperror.BadRequest(fmt.Sprintf("Invalid id: %s", raw)))
		return uuid.Nil, false
	}
	return id, true
}

// respondWriteError converts constraint violations to 400s so schema-level
// validation surfaces as client errors instead of 500s.
func (h *Handler[T]) respondWriteError(w http.ResponseWriter, r *http.Request, err error) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" {
			httputil.RespondError(w, apperror.BadRequest("Duplicate field value. Please use another value!"))
			return
		}
		switch pqErr.Code.Class() {
		case "22", "23":
			httputil.RespondError(w, apperror.BadRequest("Invalid input data."))
			return
		}
	}
	logging.GetLoggerFromContext(r.Context()).Error("write failed", "error", err)
	httputil.RespondError(w, err)
}

// respondReadError converts undefined-column errors from client-supplied
// sort or projection identifiers to 400s.
func (h *Handler[T]) respondReadError(w http.ResponseWriter, r *http.Request, err error) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "42" {
		httputil.RespondError(w, apperror.BadRequest("Invalid query parameters"))
		return
	}
	logging.GetLoggerFromContext(r.Context()).Error("read failed", "error", err)
	httputil.RespondError(w, err)
}
