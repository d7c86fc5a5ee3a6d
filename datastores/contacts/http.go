package contacts

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/handlers"
	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/security/authorizer"
	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
)

// Handler serves /contacts. Every route expects a workspace bound request.
type Handler struct {
	repo       Repository
	pagination config.ConfigurationPagination
}

func NewHandler(repo Repository, pagination config.ConfigurationPagination) *Handler {
	return &Handler{repo: repo, pagination: pagination}
}

// Routes registers the contact endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/next-code", h.nextCode)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := authorizer.Require(ctx, security.RoleViewer); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	page, err := handlers.ParsePage(r, h.pagination)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	filters, err := ParseFilters(handlers.NewQuery(r))
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	items, total, err := h.repo.Search(ctx, filters, page.Limit, page.Offset())
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	handlers.OK(ctx, w, "Contacts retrieved successfully", handlers.NewPaginated(items, page, total))
}

func (h *Handler) nextCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := authorizer.Require(ctx, security.RoleMember); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	code, err := h.repo.NextCode(ctx, name)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	handlers.OK(ctx, w, "Next contact code generated", map[string]string{"name": name, "code": code})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := authorizer.Require(ctx, security.RoleMember); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	var req CreateRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	if err := req.Validate(); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	contact := req.Contact()
	if err := h.repo.CreateWithCode(ctx, contact); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	handlers.Created(ctx, w, "Contact created successfully", contact)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := authorizer.Require(ctx, security.RoleViewer); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	id, err := handlers.URLParamUUID(r, "id")
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	contact, err := h.repo.GetByID(ctx, id)
	if err != nil {
		handlers.Fail(ctx, w, notFound(err, id.String()))
		return
	}

	handlers.OK(ctx, w, "Contact retrieved successfully", contact)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := authorizer.Require(ctx, security.RoleMember); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	id, err := handlers.URLParamUUID(r, "id")
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	var req UpdateRequest
	if err = handlers.DecodeJSON(r, &req); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	if err = req.Validate(); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	contact, err := h.repo.GetByID(ctx, id)
	if err != nil {
		handlers.Fail(ctx, w, notFound(err, id.String()))
		return
	}

	if columns := req.Apply(contact); len(columns) > 0 {
		if err = h.repo.Update(ctx, contact, columns...); err != nil {
			handlers.Fail(ctx, w, notFound(err, id.String()))
			return
		}
	}

	handlers.OK(ctx, w, "Contact updated successfully", contact)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := authorizer.Require(ctx, security.RoleAdmin); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	id, err := handlers.URLParamUUID(r, "id")
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	if err = h.repo.Delete(ctx, id); err != nil {
		handlers.Fail(ctx, w, notFound(err, id.String()))
		return
	}

	handlers.OK(ctx, w, "Contact deleted successfully", nil)
}

func notFound(err error, id string) error {
	if !data.ErrorIsNoRows(err) {
		return err
	}
	e := httptor.NotFound("contact", id)
	e.Err = err
	return e
}
