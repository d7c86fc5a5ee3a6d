package pool

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pitabwire/util"
	"gorm.io/gorm"

	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/datastore/migration"
)

var ErrNoWritableDatabase = errors.New("no writable database configured")

type pool struct {
	readIdx     uint64       // atomic counter for round-robin
	writeIdx    uint64       // atomic counter for round-robin
	mu          sync.RWMutex // protects db slices
	allReadDBs  []*gorm.DB
	allWriteDBs []*gorm.DB
}

func NewPool(_ context.Context) Pool {
	return &pool{
		allReadDBs:  []*gorm.DB{},
		allWriteDBs: []*gorm.DB{},
	}
}

// AddConnection safely adds a DB connection to the pool.
func (s *pool) AddConnection(ctx context.Context, opts ...Option) error {
	poolOpts := &Options{
		PreferSimpleProtocol:   true,
		SkipDefaultTransaction: true,
	}

	for _, opt := range opts {
		opt(poolOpts)
	}

	for _, conn := range poolOpts.Connections {
		db, err := s.createConnection(ctx, conn.DSN, poolOpts)
		if err != nil {
			return err
		}

		s.mu.Lock()
		if conn.ReadOnly {
			s.allReadDBs = append(s.allReadDBs, db)
		} else {
			s.allWriteDBs = append(s.allWriteDBs, db)
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *pool) Close(_ context.Context) {
	s.mu.RLock()
	all := append([]*gorm.DB(nil), s.allReadDBs...)
	all = append(all, s.allWriteDBs...)
	s.mu.RUnlock()

	for _, db := range all {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
}

func (s *pool) DB(ctx context.Context, readOnly bool) *gorm.DB {
	var selectedDB *gorm.DB

	s.mu.RLock()
	if readOnly && len(s.allReadDBs) != 0 {
		selectedDB = s.selectOne(s.allReadDBs, &s.readIdx)
	}
	if selectedDB == nil {
		selectedDB = s.selectOne(s.allWriteDBs, &s.writeIdx)
	}
	s.mu.RUnlock()

	if selectedDB == nil {
		return nil
	}

	return selectedDB.Session(&gorm.Session{NewDB: true}).WithContext(ctx)
}

// selectOne uses atomic round-robin for high concurrency.
func (s *pool) selectOne(pool []*gorm.DB, idx *uint64) *gorm.DB {
	if len(pool) == 0 {
		return nil
	}
	pos := atomic.AddUint64(idx, 1)
	return pool[int(pos-1)%len(pool)] //nolint:gosec // G115: index is result of (val % len), always < len and fits in int.
}

func (s *pool) Ping(ctx context.Context) error {
	db := s.DB(ctx, false)
	if db == nil {
		return ErrNoWritableDatabase
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *pool) Migrate(ctx context.Context, fsys fs.FS, dir string) error {
	if dir == "" {
		dir = "."
	}

	db := s.DB(ctx, false)
	if db == nil {
		return errors.New("migrate datastore: " + ErrNoWritableDatabase.Error())
	}

	// Ensure migration metadata table exists. Handle concurrent startup races gracefully.
	err := db.Migrator().AutoMigrate(&migration.Migration{})
	if err != nil {
		if !isRelationAlreadyExistsErr(err) {
			util.Log(ctx).WithError(err).Error("MigrateDatastore -- couldn't create migration table")
			return err
		}

		util.Log(ctx).WithError(err).Warn("MigrateDatastore -- migration table already created concurrently")
	}

	migrationExecutor := migration.NewMigrator(ctx, func(ctx context.Context) *gorm.DB {
		return s.DB(ctx, false)
	})

	err = migrationExecutor.ScanMigrationFiles(ctx, fsys, dir)
	if err != nil {
		util.Log(ctx).WithError(err).Error("MigrateDatastore -- Error scanning for new migrations")
		return err
	}

	err = migrationExecutor.ApplyNewMigrations(ctx)
	if err != nil {
		util.Log(ctx).WithError(err).Error("MigrateDatastore -- Error applying migrations ")
		return err
	}
	return nil
}

func isRelationAlreadyExistsErr(err error) bool {
	if data.ErrorIsRelationExists(err) {
		return true
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
