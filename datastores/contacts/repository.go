package contacts

import (
	"context"

	"github.com/pitabwire/tenantkit/datastore"
	"github.com/pitabwire/tenantkit/datastore/codegen"
)

// Repository stores contacts of the workspace bound to the request.
type Repository interface {
	datastore.CodedRepository[*Contact]
	Search(ctx context.Context, filters Filters, limit, offset uint64) ([]*Contact, int64, error)
}

type repository struct {
	datastore.CodedRepository[*Contact]
}

func NewRepository(codes *codegen.Generator) Repository {
	return &repository{
		CodedRepository: datastore.NewCodedRepository(func() *Contact { return &Contact{} }, codes),
	}
}

func (r *repository) Search(ctx context.Context, filters Filters, limit, offset uint64) ([]*Contact, int64, error) {
	return r.List(ctx, Definition, filters.Set(), limit, offset)
}
