package pool

import (
	"context"
	"io/fs"

	"gorm.io/gorm"
)

type Pool interface {
	// DB returns a fresh session on one of the configured databases. The session carries no
	// workspace binding; callers that need row level security go through session.Binder.
	DB(ctx context.Context, readOnly bool) *gorm.DB

	AddConnection(ctx context.Context, opts ...Option) error

	Ping(ctx context.Context) error

	// Migrate records the *.sql patches found in dir of fsys and applies the ones not yet applied.
	Migrate(ctx context.Context, fsys fs.FS, dir string) error

	Close(ctx context.Context)
}
