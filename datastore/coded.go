package datastore

import (
	"context"

	"github.com/pitabwire/tenantkit/datastore/codegen"
)

// CodedEntity is an Entity carrying a human code that is unique per workspace.
type CodedEntity interface {
	Entity
	GetCode() string
	SetCode(code string)
	// CodeSource is the display name the code prefix is derived from.
	CodeSource() string
}

// CodedRepository adds per workspace code allocation to BaseRepository.
type CodedRepository[T CodedEntity] interface {
	BaseRepository[T]
	GetByCode(ctx context.Context, code string) (T, error)
	NextCode(ctx context.Context, name string) (string, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// CreateWithCode inserts entity, allocating a code from CodeSource when it has none.
	// A supplied code that is already taken fails with *codegen.DuplicateCodeError.
	CreateWithCode(ctx context.Context, entity T) error
}

type codedRepository[T CodedEntity] struct {
	BaseRepository[T]
	modelFactory func() T
	codes        *codegen.Generator
}

func NewCodedRepository[T CodedEntity](modelFactory func() T, codes *codegen.Generator) CodedRepository[T] {
	if codes == nil {
		codes = codegen.NewGenerator()
	}
	return &codedRepository[T]{
		BaseRepository: NewBaseRepository(modelFactory),
		modelFactory:   modelFactory,
		codes:          codes,
	}
}

func (cr *codedRepository[T]) scope(ctx context.Context) (codegen.Scope, codegen.Querier, error) {
	conn, err := cr.Conn(ctx)
	if err != nil {
		return codegen.Scope{}, nil, err
	}
	return codegen.NewScope(cr.Table(), conn.Binding().WorkspaceID), codegen.FromSQL(conn.Querier()), nil
}

func (cr *codedRepository[T]) GetByCode(ctx context.Context, code string) (T, error) {
	entity := cr.modelFactory()
	conn, err := cr.Conn(ctx)
	if err != nil {
		return entity, err
	}

	err = conn.DB(ctx).
		Where("workspace_id = ? AND code = ?", conn.Binding().WorkspaceID.String(), code).
		First(entity).Error
	return entity, err
}

func (cr *codedRepository[T]) NextCode(ctx context.Context, name string) (string, error) {
	scope, q, err := cr.scope(ctx)
	if err != nil {
		return "", err
	}
	return cr.codes.NextCode(ctx, q, scope, name)
}

func (cr *codedRepository[T]) CodeExists(ctx context.Context, code string) (bool, error) {
	scope, q, err := cr.scope(ctx)
	if err != nil {
		return false, err
	}
	return cr.codes.Exists(ctx, q, scope, code)
}

func (cr *codedRepository[T]) CreateWithCode(ctx context.Context, entity T) error {
	scope, q, err := cr.scope(ctx)
	if err != nil {
		return err
	}

	if entity.GetCode() != "" {
		return cr.codes.Claim(ctx, q, scope, entity.GetCode(), func(ctx context.Context, _ string) error {
			return cr.Create(ctx, entity)
		})
	}

	_, err = cr.codes.Allocate(ctx, q, scope, entity.CodeSource(), func(ctx context.Context, code string) error {
		entity.SetCode(code)
		return cr.Create(ctx, entity)
	})
	if err != nil {
		entity.SetCode("")
	}
	return err
}
