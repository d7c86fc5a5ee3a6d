package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit"
	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/migrations"
)

func main() {
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		util.Log(context.Background()).WithError(err).Fatal("could not process configuration")
	}

	ctx, svc := tenantkit.NewService(context.Background(),
		tenantkit.WithConfig(&cfg),
		tenantkit.WithDatastore(),
		tenantkit.WithTokenCodec(nil),
		tenantkit.WithRateLimiter(nil),
	)
	log := svc.Log(ctx)

	if cfg.DoDatabaseMigrate() {
		fsys, dir := migrationSource(cfg.GetDatabaseMigrationPath())
		if err = svc.Pool().Migrate(ctx, fsys, dir); err != nil {
			log.WithError(err).Fatal("could not migrate the database")
		}
		log.Info("database migrated")
		svc.Stop(ctx)
		return
	}

	if err = svc.Run(ctx, ""); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("service stopped with error")
	}
}

// migrationSource prefers patches on disk at path and falls back to the embedded set.
func migrationSource(path string) (fs.FS, string) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return os.DirFS(path), "."
	}
	return migrations.FS, migrations.Dir
}
