package workspaces

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/handlers"
	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/security/authorizer"
	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
)

// Handler serves /workspaces. Routes are reachable without a workspace selector; the
// workspace a call acts on is the one named in the path.
type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the workspace endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)

	r.Route("/{workspace_id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)

		r.Get("/users", h.members)
		r.Post("/users", h.addMember)
		r.Delete("/users/{user_id}", h.removeMember)
		r.Put("/users/{user_id}/role", h.setRole)
	})
}

// access resolves the caller's role in the path workspace and checks it against required.
func (h *Handler) access(ctx context.Context, r *http.Request, required security.TenantRole) (uuid.UUID, error) {
	workspaceID, err := handlers.URLParamUUID(r, "workspace_id")
	if err != nil {
		return uuid.Nil, err
	}

	binding, ok := session.BindingFromContext(ctx)
	if !ok || binding.UserID == uuid.Nil {
		return uuid.Nil, authorizer.ErrInvalidSubject
	}

	role := binding.Role
	if binding.WorkspaceID != workspaceID {
		var member bool
		role, member, err = h.repo.Role(ctx, workspaceID, binding.UserID)
		if err != nil {
			return uuid.Nil, err
		}
		if !member {
			return uuid.Nil, fmt.Errorf("%w: workspace %s", authorizer.ErrNoTenantAccess, workspaceID)
		}
	}

	if !security.Permits(required, role) {
		return uuid.Nil, authorizer.NewPermissionDeniedError(workspaceID, binding.UserID, required, role)
	}
	return workspaceID, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.repo.ListForUser(ctx)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	if items == nil {
		items = []WithRole{}
	}
	handlers.OK(ctx, w, "Workspaces retrieved successfully", items)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	if err := req.Validate(); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	ws := &Workspace{Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := h.repo.Create(ctx, ws); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	handlers.Created(ctx, w, "Workspace created successfully", ws)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.access(ctx, r, security.RoleViewer)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	ws, err := h.repo.GetByID(ctx, id)
	if err != nil {
		handlers.Fail(ctx, w, notFound(err, "workspace", id))
		return
	}
	handlers.OK(ctx, w, "Workspace retrieved successfully", ws)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.access(ctx, r, security.RoleAdmin)
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

	ws, err := h.repo.GetByID(ctx, id)
	if err != nil {
		handlers.Fail(ctx, w, notFound(err, "workspace", id))
		return
	}
	if columns := req.Apply(ws); len(columns) > 0 {
		if err = h.repo.Update(ctx, ws, columns...); err != nil {
			handlers.Fail(ctx, w, notFound(err, "workspace", id))
			return
		}
	}
	handlers.OK(ctx, w, "Workspace updated successfully", ws)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.access(ctx, r, security.RoleAdmin)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	if err = h.repo.Delete(ctx, id); err != nil {
		handlers.Fail(ctx, w, notFound(err, "workspace", id))
		return
	}
	handlers.OK(ctx, w, "Workspace deleted successfully", nil)
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.access(ctx, r, security.RoleAdmin)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	members, err := h.repo.Members(ctx, id)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	if members == nil {
		members = []Member{}
	}
	handlers.OK(ctx, w, "Workspace users retrieved successfully", members)
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.access(ctx, r, security.RoleAdmin)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	var req AddMemberRequest
	if err = handlers.DecodeJSON(r, &req); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	if err = req.Validate(); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	member, err := h.repo.AddMember(ctx, id, req.UserID, req.Role)
	if err != nil {
		handlers.Fail(ctx, w, membershipError(err, id))
		return
	}
	handlers.Created(ctx, w, "User added to workspace successfully", member)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.access(ctx, r, security.RoleAdmin)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	userID, err := handlers.URLParamUUID(r, "user_id")
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	if err = h.repo.RemoveMember(ctx, id, userID); err != nil {
		handlers.Fail(ctx, w, membershipError(err, userID))
		return
	}
	handlers.OK(ctx, w, "User removed from workspace successfully", nil)
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.access(ctx, r, security.RoleAdmin)
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	userID, err := handlers.URLParamUUID(r, "user_id")
	if err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	var req UpdateRoleRequest
	if err = handlers.DecodeJSON(r, &req); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}
	if err = req.Validate(); err != nil {
		handlers.Fail(ctx, w, err)
		return
	}

	member, err := h.repo.SetRole(ctx, id, userID, req.Role)
	if err != nil {
		handlers.Fail(ctx, w, membershipError(err, userID))
		return
	}
	handlers.OK(ctx, w, "User role updated successfully", member)
}

func membershipError(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, ErrLastAdmin):
		e := httptor.Conflict(ErrLastAdmin.Error())
		e.Err = err
		return e
	case errors.Is(err, ErrAlreadyMember):
		e := httptor.Conflict(ErrAlreadyMember.Error())
		e.Err = err
		return e
	case data.ErrorIsForeignKeyViolation(err):
		return notFound(err, "workspace", id)
	}
	return notFound(err, "workspace user", id)
}

func notFound(err error, resource string, id uuid.UUID) error {
	if !data.ErrorIsNoRows(err) && !data.ErrorIsForeignKeyViolation(err) {
		return err
	}
	e := httptor.NotFound(resource, id.String())
	e.Err = err
	return e
}
