package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pitabwire/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/tenantkit/data"
)

const (
	upSuffix   = "_up.sql"
	downSuffix = "_down.sql"
)

var errNoDatabase = errors.New("no database configured")

// Migration holds one schema patch and whether it has been applied.
type Migration struct {
	data.BaseModel

	Name        string `gorm:"type:text;uniqueIndex:idx_migrations_name"`
	Patch       string `gorm:"type:text"`
	RevertPatch string `gorm:"type:text"`
	AppliedAt   sql.NullTime
}

type datastoreMigrator struct {
	dbGetter func(ctx context.Context) *gorm.DB
	logger   *util.LogEntry
}

func NewMigrator(ctx context.Context, dbGetter func(ctx context.Context) *gorm.DB) Migrator {
	return &datastoreMigrator{
		dbGetter: dbGetter,
		logger:   util.Log(ctx),
	}
}

func (m *datastoreMigrator) DB(ctx context.Context) *gorm.DB {
	return m.dbGetter(ctx)
}

func (m *datastoreMigrator) ScanMigrationFiles(ctx context.Context, fsys fs.FS, dir string) error {
	files, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return err
	}

	sort.Strings(files)

	for _, file := range files {
		filename := path.Base(file)
		if strings.HasSuffix(filename, downSuffix) {
			continue
		}

		migrationPatch, readErr := fs.ReadFile(fsys, file)
		if readErr != nil {
			m.logger.WithError(readErr).WithField("file", filename).
				Error("ScanMigrationFiles -- Problem reading migration file content")
			continue
		}

		revertPatch := ""
		if strings.HasSuffix(filename, upSuffix) {
			downFile := path.Join(dir, strings.TrimSuffix(filename, upSuffix)+downSuffix)
			if downPatch, downErr := fs.ReadFile(fsys, downFile); downErr == nil {
				revertPatch = string(downPatch)
			}
		}

		err = m.SaveMigrationString(ctx, filename, string(migrationPatch), revertPatch)
		if err != nil {
			m.logger.WithError(err).WithField("file", filename).
				Error("ScanMigrationFiles -- new migration could not be saved")
			return err
		}
	}
	return nil
}

func (m *datastoreMigrator) SaveMigrationString(
	ctx context.Context,
	name string,
	migrationPatch string,
	revertPatch string,
) error {
	db := m.DB(ctx)
	if db == nil {
		return fmt.Errorf("save migration: %w", errNoDatabase)
	}

	existing := Migration{}
	err := db.Where("name = ?", name).First(&existing).Error
	if err != nil {
		if !data.ErrorIsNoRows(err) {
			return fmt.Errorf("save migration lookup failed: %w", err)
		}

		err = db.Create(&Migration{Name: name, Patch: migrationPatch, RevertPatch: revertPatch}).Error
		if err != nil {
			return fmt.Errorf("save migration insert failed: %w", err)
		}
		return nil
	}

	if existing.AppliedAt.Valid {
		return nil
	}

	updates := map[string]any{}
	if existing.Patch != migrationPatch {
		updates["patch"] = migrationPatch
	}
	if revertPatch != "" && existing.RevertPatch != revertPatch {
		updates["revert_patch"] = revertPatch
	}
	if len(updates) == 0 {
		return nil
	}

	err = db.Model(&Migration{}).
		Where("id = ? AND applied_at IS NULL", existing.ID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("save migration patch update failed: %w", err)
	}
	return nil
}

func (m *datastoreMigrator) ApplyNewMigrations(ctx context.Context) error {
	db := m.DB(ctx)
	if db == nil {
		return fmt.Errorf("apply migrations: %w", errNoDatabase)
	}

	var pending []*Migration
	err := db.Where("applied_at IS NULL").Order("name ASC").Find(&pending).Error
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		m.logger.Debug("ApplyNewMigrations -- nothing to apply")
		return nil
	}

	for _, migration := range pending {
		err = db.Transaction(func(tx *gorm.DB) error {
			return applyLocked(tx, migration.ID)
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", migration.Name, err)
		}

		m.logger.WithField("migration", migration.Name).Info("ApplyNewMigrations -- applied migration")
	}

	return nil
}

// applyLocked runs one patch while holding its row lock so concurrent replicas apply it once.
func applyLocked(tx *gorm.DB, id string) error {
	var row Migration
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", id).Error
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return nil
		}
		return err
	}

	if row.AppliedAt.Valid {
		return nil
	}

	if err = tx.Exec(row.Patch).Error; err != nil {
		return err
	}

	return tx.Model(&Migration{}).
		Where("id = ? AND applied_at IS NULL", row.ID).
		Update("applied_at", time.Now().UTC()).Error
}
