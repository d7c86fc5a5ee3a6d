package products

import (
	"context"

	"github.com/pitabwire/tenantkit/datastore"
	"github.com/pitabwire/tenantkit/datastore/codegen"
)

// Repository stores products of the workspace bound to the request.
type Repository interface {
	datastore.CodedRepository[*Product]
	Search(ctx context.Context, filters Filters, limit, offset uint64) ([]*Product, int64, error)
}

type repository struct {
	datastore.CodedRepository[*Product]
}

func NewRepository(codes *codegen.Generator) Repository {
	return &repository{
		CodedRepository: datastore.NewCodedRepository(func() *Product { return &Product{} }, codes),
	}
}

func (r *repository) Search(ctx context.Context, filters Filters, limit, offset uint64) ([]*Product, int64, error) {
	return r.List(ctx, Definition, filters.Set(), limit, offset)
}
