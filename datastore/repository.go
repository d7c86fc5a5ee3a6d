package datastore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pitabwire/util"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/pitabwire/tenantkit/datastore/filter"
	"github.com/pitabwire/tenantkit/datastore/scopes"
	"github.com/pitabwire/tenantkit/datastore/session"
)

// WithAuditColumns returns a new slice holding columns followed by the columns every
// update stamps. columns itself is never written to.
func WithAuditColumns(columns []string) []string {
	return slices.Concat(columns, []string{"updated_by", "updated_at"})
}

// ErrNotBound is returned when a repository is used outside a workspace bound request.
var ErrNotBound = errors.New("repository requires a workspace bound connection")

// Entity is a row owned by exactly one workspace.
type Entity interface {
	GetID() uuid.UUID
	Stamp(workspaceID, userID uuid.UUID)
}

// BaseRepository provides workspace scoped CRUD for any model type.
// T is the model pointer type (e.g., *contacts.Contact).
// Every method runs on the connection bound for the request, so row level security applies.
type BaseRepository[T Entity] interface {
	Table() string
	Conn(ctx context.Context) (*session.Conn, error)
	GetByID(ctx context.Context, id uuid.UUID) (T, error)
	Create(ctx context.Context, entity T) error
	Update(ctx context.Context, entity T, columns ...string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, definition *filter.Definition, set filter.Set, limit, offset uint64) ([]T, int64, error)
}

// baseRepository is the concrete implementation of BaseRepository.
type baseRepository[T Entity] struct {
	// modelFactory creates a new instance of T for queries
	modelFactory func() T
	// tableName caches the table name to avoid repeated reflection
	tableName string
	// allowedColumns whitelist for safe column access (set during initialization)
	allowedColumns map[string]bool
}

// NewBaseRepository creates a new base repository instance.
// modelFactory should return a pointer to a new model instance (e.g., func() *contacts.Contact { return &contacts.Contact{} }).
func NewBaseRepository[T Entity](modelFactory func() T) BaseRepository[T] {
	repo := &baseRepository[T]{
		modelFactory:   modelFactory,
		allowedColumns: make(map[string]bool),
	}

	s, err := schema.Parse(modelFactory(), &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		panic(fmt.Sprintf("datastore: parse model schema: %v", err))
	}
	repo.tableName = s.Table

	for _, field := range s.Fields {
		if field.DBName != "" {
			repo.allowedColumns[field.DBName] = true
		}
	}

	return repo
}

func (br *baseRepository[T]) Table() string {
	return br.tableName
}

// Conn returns the connection bound for this request once it selects a workspace.
func (br *baseRepository[T]) Conn(ctx context.Context) (*session.Conn, error) {
	conn := session.ConnFromContext(ctx)
	if conn == nil || !conn.Binding().Scoped() {
		return nil, ErrNotBound
	}
	return conn, nil
}

// validateColumn checks if a column name is safe to use in queries.
func (br *baseRepository[T]) validateColumn(column string) error {
	if !br.allowedColumns[column] {
		return fmt.Errorf("invalid column name: %s", column)
	}
	return nil
}

func (br *baseRepository[T]) db(ctx context.Context, conn *session.Conn) *gorm.DB {
	return conn.DB(ctx).Table(br.tableName).Scopes(scopes.WorkspacePartition(ctx))
}

// GetByID retrieves an entity of the bound workspace by its ID.
func (br *baseRepository[T]) GetByID(ctx context.Context, id uuid.UUID) (T, error) {
	entity := br.modelFactory()
	conn, err := br.Conn(ctx)
	if err != nil {
		return entity, err
	}

	err = br.db(ctx, conn).Where("id = ?", id.String()).First(entity).Error
	return entity, err
}

// Create stamps the entity with the bound workspace and user, then inserts it.
func (br *baseRepository[T]) Create(ctx context.Context, entity T) error {
	conn, err := br.Conn(ctx)
	if err != nil {
		return err
	}

	binding := conn.Binding()
	entity.Stamp(binding.WorkspaceID, binding.UserID)
	return conn.DB(ctx).Create(entity).Error
}

// Update writes the named columns of entity, plus updated_by and updated_at.
// With no columns every column except the identity and tenant ones is written.
func (br *baseRepository[T]) Update(ctx context.Context, entity T, columns ...string) error {
	if entity.GetID() == uuid.Nil {
		return errors.New("entity ID is required for updates")
	}

	conn, err := br.Conn(ctx)
	if err != nil {
		return err
	}

	for _, col := range columns {
		if err = br.validateColumn(col); err != nil {
			return err
		}
	}

	selected := []string{"*"}
	if len(columns) > 0 {
		selected = WithAuditColumns(columns)
	}

	binding := conn.Binding()
	entity.Stamp(binding.WorkspaceID, binding.UserID)

	result := br.db(ctx, conn).
		Model(entity).
		Select(selected).
		Omit("id", "workspace_id", "created_by", "created_at").
		Where("id = ?", entity.GetID().String()).
		Updates(entity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes an entity by its ID without fetching it first.
func (br *baseRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := br.Conn(ctx)
	if err != nil {
		return err
	}

	result := br.db(ctx, conn).Where("id = ?", id.String()).Delete(br.modelFactory())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List renders set through definition for the bound workspace and caller, returning one page and the total.
func (br *baseRepository[T]) List(
	ctx context.Context,
	definition *filter.Definition,
	set filter.Set,
	limit, offset uint64,
) ([]T, int64, error) {
	conn, err := br.Conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	binding := conn.Binding()
	query, err := definition.Build(binding.WorkspaceID, binding.UserID, set)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = conn.Querier().QueryRowContext(ctx, query.CountSQL, query.CountArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", br.tableName, err)
	}

	pageSQL, pageArgs, err := query.Page(limit, offset)
	if err != nil {
		return nil, 0, err
	}

	rows, err := conn.Querier().QueryContext(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", br.tableName, err)
	}
	defer util.CloseAndLogOnError(ctx, rows)

	entities := make([]T, 0, limit)
	db := conn.DB(ctx)
	for rows.Next() {
		entity := br.modelFactory()
		if err = db.ScanRows(rows, entity); err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", br.tableName, err)
		}
		entities = append(entities, entity)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", br.tableName, err)
	}

	return entities, total, nil
}
