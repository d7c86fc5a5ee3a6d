package workspaces

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/datastore"
	"github.com/pitabwire/tenantkit/datastore/session"
	"github.com/pitabwire/tenantkit/security"
)

var (
	ErrLastAdmin     = errors.New("a workspace must keep at least one admin")
	ErrAlreadyMember = errors.New("user is already a member of this workspace")
)

// Repository manages workspaces and their membership. Unlike the workspace scoped stores it
// also runs on connections bound outside any workspace, since listing and creating
// workspaces happens before one is selected.
type Repository interface {
	Create(ctx context.Context, ws *Workspace) error
	ListForUser(ctx context.Context) ([]WithRole, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	Update(ctx context.Context, ws *Workspace, columns ...string) error
	Delete(ctx context.Context, id uuid.UUID) error

	Role(ctx context.Context, workspaceID, userID uuid.UUID) (security.TenantRole, bool, error)
	Members(ctx context.Context, workspaceID uuid.UUID) ([]Member, error)
	AddMember(ctx context.Context, workspaceID, userID uuid.UUID, role security.TenantRole) (*Member, error)
	RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error
	SetRole(ctx context.Context, workspaceID, userID uuid.UUID, role security.TenantRole) (*Member, error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) conn(ctx context.Context) (*session.Conn, error) {
	conn := session.ConnFromContext(ctx)
	if conn == nil {
		return nil, datastore.ErrNotBound
	}
	return conn, nil
}

// Create inserts ws owned by the caller and makes the caller its admin in one transaction.
func (r *repository) Create(ctx context.Context, ws *Workspace) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}

	caller := conn.Binding().UserID
	ws.OwnerID = caller
	ws.CreatedBy = &caller
	ws.UpdatedBy = &caller

	return conn.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ws).Error; err != nil {
			return err
		}
		return tx.Create(&Member{WorkspaceID: ws.ID, UserID: caller, Role: security.RoleAdmin}).Error
	})
}

func (r *repository) ListForUser(ctx context.Context) ([]WithRole, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	var out []WithRole
	err = conn.DB(ctx).
		Table("workspaces w").
		Select("w.*, wu.role AS user_role").
		Joins("JOIN workspace_users wu ON wu.workspace_id = w.id").
		Where("wu.user_id = ?", conn.Binding().UserID.String()).
		Order("w.created_at DESC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	ws := &Workspace{}
	conn, err := r.conn(ctx)
	if err != nil {
		return ws, err
	}
	err = conn.DB(ctx).Where("id = ?", id.String()).First(ws).Error
	return ws, err
}

func (r *repository) Update(ctx context.Context, ws *Workspace, columns ...string) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}

	caller := conn.Binding().UserID
	ws.UpdatedBy = &caller

	result := conn.DB(ctx).Model(ws).
		Select(datastore.WithAuditColumns(columns)).
		Where("id = ?", ws.ID.String()).
		Updates(ws)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}

	result := conn.DB(ctx).Where("id = ?", id.String()).Delete(&Workspace{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Role(ctx context.Context, workspaceID, userID uuid.UUID) (security.TenantRole, bool, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return security.RoleNone, false, err
	}

	var member Member
	err = conn.DB(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID.String(), userID.String()).
		Take(&member).Error
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return security.RoleNone, false, nil
		}
		return security.RoleNone, false, err
	}
	return member.Role, true, nil
}

func (r *repository) Members(ctx context.Context, workspaceID uuid.UUID) ([]Member, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	var members []Member
	err = conn.DB(ctx).
		Where("workspace_id = ?", workspaceID.String()).
		Order("created_at").
		Find(&members).Error
	return members, err
}

func (r *repository) AddMember(
	ctx context.Context,
	workspaceID, userID uuid.UUID,
	role security.TenantRole,
) (*Member, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	member := &Member{WorkspaceID: workspaceID, UserID: userID, Role: role}
	if err = conn.DB(ctx).Create(member).Error; err != nil {
		if data.ErrorIsDuplicateKey(err) {
			return nil, fmt.Errorf("%w: %w", ErrAlreadyMember, err)
		}
		return nil, err
	}
	return member, nil
}

func (r *repository) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}

	return conn.DB(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := lockMember(tx, workspaceID, userID)
		if err != nil {
			return err
		}
		if err = guardLastAdmin(tx, member, security.RoleNone); err != nil {
			return err
		}
		return tx.Where("workspace_id = ? AND user_id = ?", workspaceID.String(), userID.String()).
			Delete(&Member{}).Error
	})
}

func (r *repository) SetRole(
	ctx context.Context,
	workspaceID, userID uuid.UUID,
	role security.TenantRole,
) (*Member, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	var member *Member
	err = conn.DB(ctx).Transaction(func(tx *gorm.DB) error {
		member, err = lockMember(tx, workspaceID, userID)
		if err != nil {
			return err
		}
		if err = guardLastAdmin(tx, member, role); err != nil {
			return err
		}
		member.Role = role
		return tx.Model(member).
			Where("workspace_id = ? AND user_id = ?", workspaceID.String(), userID.String()).
			Select("role", "updated_at").
			Updates(member).Error
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func lockMember(tx *gorm.DB, workspaceID, userID uuid.UUID) (*Member, error) {
	member := &Member{}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("workspace_id = ? AND user_id = ?", workspaceID.String(), userID.String()).
		Take(member).Error
	return member, err
}

// guardLastAdmin refuses to move member away from admin when no other admin would remain.
// The admin rows are locked so two concurrent demotions cannot both pass.
func guardLastAdmin(tx *gorm.DB, member *Member, next security.TenantRole) error {
	if member.Role != security.RoleAdmin || next == security.RoleAdmin {
		return nil
	}

	var admins []Member
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("workspace_id = ? AND role = ?", member.WorkspaceID.String(), security.RoleAdmin.String()).
		Find(&admins).Error
	if err != nil {
		return err
	}
	if len(admins) <= 1 {
		return ErrLastAdmin
	}
	return nil
}
