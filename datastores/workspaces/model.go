package workspaces

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitabwire/tenantkit/handlers"
	"github.com/pitabwire/tenantkit/security"
)

const maxNameLength = 255

// Workspace is a tenant. Rows of workspace scoped tables belong to exactly one.
type Workspace struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"       json:"id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Description *string    `gorm:"type:text"                  json:"description"`
	OwnerID     uuid.UUID  `gorm:"type:uuid;not null"         json:"owner_id"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid"                  json:"created_by,omitempty"`
	UpdatedBy   *uuid.UUID `gorm:"type:uuid"                  json:"updated_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (*Workspace) TableName() string {
	return "workspaces"
}

func (w *Workspace) BeforeCreate(_ *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// Member is one user's role in one workspace.
type Member struct {
	WorkspaceID uuid.UUID           `gorm:"type:uuid;primaryKey" json:"workspace_id"`
	UserID      uuid.UUID           `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role        security.TenantRole `gorm:"type:varchar(20)"     json:"role"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (*Member) TableName() string {
	return "workspace_users"
}

// WithRole is a workspace as seen by one of its members.
type WithRole struct {
	Workspace
	UserRole security.TenantRole `gorm:"column:user_role" json:"user_role"`
}

type CreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (r *CreateRequest) Validate() error {
	fields := handlers.FieldErrors{}
	validateName(fields, r.Name)
	return fields.Err()
}

type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (r *UpdateRequest) Validate() error {
	fields := handlers.FieldErrors{}
	if r.Name != nil {
		validateName(fields, *r.Name)
	}
	return fields.Err()
}

// Apply copies the present fields onto w and returns the columns it touched.
func (r *UpdateRequest) Apply(w *Workspace) []string {
	var columns []string
	if r.Name != nil {
		w.Name = strings.TrimSpace(*r.Name)
		columns = append(columns, "name")
	}
	if r.Description != nil {
		w.Description = r.Description
		columns = append(columns, "description")
	}
	return columns
}

type AddMemberRequest struct {
	UserID uuid.UUID           `json:"user_id"`
	Role   security.TenantRole `json:"role"`
}

func (r *AddMemberRequest) Validate() error {
	fields := handlers.FieldErrors{}
	if r.UserID == uuid.Nil {
		fields.Add("user_id", "is required")
	}
	if !r.Role.IsValid() {
		fields.Add("role", "must be one of admin, member, viewer")
	}
	return fields.Err()
}

type UpdateRoleRequest struct {
	Role security.TenantRole `json:"role"`
}

func (r *UpdateRoleRequest) Validate() error {
	fields := handlers.FieldErrors{}
	if !r.Role.IsValid() {
		fields.Add("role", "must be one of admin, member, viewer")
	}
	return fields.Err()
}

func validateName(fields handlers.FieldErrors, name string) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		fields.Add("name", "is required")
	case len(name) > maxNameLength:
		fields.Add("name", "must be max 255 characters")
	}
}
