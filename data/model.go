package data

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"gorm.io/gorm"
)

// BaseModel base table struct for bookkeeping tables that live outside any workspace.
type BaseModel struct {
	ID         string `gorm:"type:varchar(50);primary_key"`
	CreatedAt  time.Time
	ModifiedAt time.Time
	Version    uint `gorm:"DEFAULT 0"`
}

func (model *BaseModel) GetID() string {
	return model.ID
}

func (model *BaseModel) BeforeCreate(_ *gorm.DB) error {
	if model.ID == "" {
		model.ID = xid.New().String()
	}
	if model.Version == 0 {
		now := time.Now()
		model.CreatedAt = now
		model.ModifiedAt = now
		model.Version = 1
	}
	return nil
}

func (model *BaseModel) BeforeUpdate(_ *gorm.DB) error {
	model.ModifiedAt = time.Now()
	model.Version++
	return nil
}

// WorkspaceModel is embedded by every row that belongs to exactly one workspace.
// Row level security policies key on WorkspaceID.
type WorkspaceModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"          json:"id"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;not null"            json:"workspace_id"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid"                     json:"created_by,omitempty"`
	UpdatedBy   *uuid.UUID `gorm:"type:uuid"                     json:"updated_by,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()"        json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()"        json:"updated_at"`
}

func (model *WorkspaceModel) GetID() uuid.UUID {
	return model.ID
}

func (model *WorkspaceModel) BeforeCreate(_ *gorm.DB) error {
	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}
	return nil
}

// Stamp records the acting user on a row being created or changed.
func (model *WorkspaceModel) Stamp(workspaceID, userID uuid.UUID) {
	if model.WorkspaceID == uuid.Nil {
		model.WorkspaceID = workspaceID
	}
	actor := userID
	if model.CreatedBy == nil {
		model.CreatedBy = &actor
	}
	model.UpdatedBy = &actor
}
