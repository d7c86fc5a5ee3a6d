package migration

import (
	"context"
	"io/fs"

	"gorm.io/gorm"
)

type Migrator interface {
	DB(ctx context.Context) *gorm.DB
	// ScanMigrationFiles records every *.sql file found in dir of fsys that is not yet known.
	ScanMigrationFiles(ctx context.Context, fsys fs.FS, dir string) error
	SaveMigrationString(ctx context.Context, name string, migrationPatch string, revertPatch string) error
	ApplyNewMigrations(ctx context.Context) error
}
