package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pitabwire/util"
	"gorm.io/gorm"

	"github.com/pitabwire/tenantkit/datastore/pool"
)

const (
	bindStatement = `SELECT set_config('` + SettingUserID + `', $1, false),
	set_config('` + SettingWorkspaceID + `', $2, false),
	set_config('` + SettingRole + `', $3, false)`

	unbindStatement = `SELECT set_config('` + SettingUserID + `', '', false),
	set_config('` + SettingWorkspaceID + `', '', false),
	set_config('` + SettingRole + `', '', false)`

	defaultUnbindTimeout = 5 * time.Second
)

var (
	ErrBind   = errors.New("session binding failed")
	ErrUnbind = errors.New("session unbinding failed")
	ErrNoDB   = errors.New("no database available for session binding")
)

// Execer runs one statement.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Binder projects a Binding onto a dedicated connection for the life of one call.
type Binder struct {
	pool          pool.Pool
	unbindTimeout time.Duration
}

type BinderOption func(*Binder)

// WithUnbindTimeout bounds the cleanup statement, which runs even after the request is cancelled.
func WithUnbindTimeout(timeout time.Duration) BinderOption {
	return func(b *Binder) {
		if timeout > 0 {
			b.unbindTimeout = timeout
		}
	}
}

func NewBinder(p pool.Pool, opts ...BinderOption) *Binder {
	b := &Binder{pool: p, unbindTimeout: defaultUnbindTimeout}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind sets all three session variables in a single statement.
func (b *Binder) Bind(ctx context.Context, conn Execer, binding Binding) error {
	userID, workspaceID, role := binding.settings()
	if _, err := conn.ExecContext(ctx, bindStatement, userID, workspaceID, role); err != nil {
		return fmt.Errorf("%w: %w", ErrBind, err)
	}
	return nil
}

// Unbind clears all three session variables in a single statement.
func (b *Binder) Unbind(ctx context.Context, conn Execer) error {
	if _, err := conn.ExecContext(ctx, unbindStatement); err != nil {
		return fmt.Errorf("%w: %w", ErrUnbind, err)
	}
	return nil
}

// Run pins one writable connection from the pool, binds it, calls fn and unbinds it again before the
// connection goes back to the pool. The unbind runs on every exit path of fn, including
// errors, panics and a cancelled ctx. Errors from fn are returned unchanged; a failed
// unbind is logged and the connection is discarded instead of being reused.
func (b *Binder) Run(ctx context.Context, binding Binding, fn func(ctx context.Context, conn *Conn) error) error {
	if b.pool == nil {
		return ErrNoDB
	}
	db := b.pool.DB(ctx, false)
	if db == nil {
		return ErrNoDB
	}

	return db.Connection(func(tx *gorm.DB) error {
		raw, ok := tx.Statement.ConnPool.(*sql.Conn)
		if !ok {
			return fmt.Errorf("%w: connection pool is not pinned", ErrBind)
		}

		if err := b.Bind(ctx, raw, binding); err != nil {
			return err
		}
		defer func() {
			_ = b.release(ctx, raw, func(ctx context.Context) { discard(ctx, raw) })
		}()

		conn := &Conn{db: tx, raw: raw, binding: binding}
		return fn(ToContext(ctx, conn), conn)
	})
}

// release clears the binding on conn, ignoring cancellation of ctx. When that fails the
// connection still carries the caller's identity, so onFailure must keep it out of the pool.
func (b *Binder) release(ctx context.Context, conn Execer, onFailure func(ctx context.Context)) error {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.unbindTimeout)
	defer cancel()

	err := b.Unbind(cleanupCtx, conn)
	if err == nil {
		return nil
	}

	util.Log(ctx).WithError(err).Error("session unbind failed, discarding connection")
	onFailure(cleanupCtx)
	return err
}

// discard closes the physical connection so neither database/sql nor pgxpool hands it out again.
func discard(ctx context.Context, raw *sql.Conn) {
	_ = raw.Raw(func(driverConn any) error {
		if c, ok := driverConn.(*stdlib.Conn); ok {
			_ = c.Conn().Close(ctx)
		}
		return driver.ErrBadConn
	})
}
