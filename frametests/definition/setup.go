package definition

import (
	"context"

	"github.com/testcontainers/testcontainers-go"

	"github.com/pitabwire/tenantkit/data"
)

type DependancyRes interface {
	Name() string
	Setup(ctx context.Context) error
	Cleanup(ctx context.Context)
	Container() testcontainers.Container
}

type DependancyConn interface {
	Name() string
	GetDS(ctx context.Context) data.DSN
	GetRandomisedDS(ctx context.Context, randomisedPrefix string) (data.DSN, func(context.Context), error)
}

type TestResource interface {
	DependancyRes
	DependancyConn
}
