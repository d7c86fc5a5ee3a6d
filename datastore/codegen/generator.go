package codegen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit/data"
)

var (
	ErrInvalidScope      = errors.New("invalid code scope")
	ErrScopeMismatch     = errors.New("code scope tenant mismatch")
	ErrCodeFormat        = errors.New("stored code does not match the expected format")
	ErrMaxCodesExhausted = errors.New("all codes for this prefix are allocated")
	ErrCodeConflict      = errors.New("code already allocated")
)

// DuplicateCodeError reports a caller supplied code that is already stored in its scope.
type DuplicateCodeError struct {
	Table string
	Code  string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("%s code %q already exists", e.Table, e.Code)
}

// Is matches ErrCodeConflict so callers can treat both the same way.
func (e *DuplicateCodeError) Is(target error) bool {
	return target == ErrCodeConflict
}

// Querier runs the single row lookups allocation needs. pgx connections and pools satisfy
// it directly; database/sql handles go through FromSQL.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// SQLQuerier is the single row subset of *sql.DB, *sql.Conn and *sql.Tx.
type SQLQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlQuerier struct {
	q SQLQuerier
}

// FromSQL adapts a database/sql handle to Querier.
func FromSQL(q SQLQuerier) Querier {
	return sqlQuerier{q: q}
}

func (s sqlQuerier) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return s.q.QueryRowContext(ctx, query, args...)
}

// Generator allocates sequential per scope codes such as "JD-00001".
//
// NextCode takes no lock: two concurrent callers can be handed the same code. The unique
// index on (tenant, code) rejects the second insert and Allocate retries it once.
type Generator struct {
	attempts int
}

func NewGenerator() *Generator {
	return &Generator{attempts: 2}
}

// NextCode returns the code after the highest one already stored for the prefix derived from name.
func (g *Generator) NextCode(ctx context.Context, q Querier, scope Scope, name string) (string, error) {
	scope, err := scope.normalize()
	if err != nil {
		return "", err
	}

	prefix := DerivePrefix(name, scope.PrefixLength)
	query, args := lastCodeQuery(scope, prefix)

	var last string
	err = q.QueryRow(ctx, query, args...).Scan(&last)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return formatCode(prefix, scope, 1), nil
		}
		return "", fmt.Errorf("read last %s code: %w", scope.Table, err)
	}

	current, err := trailingNumber(last, scope.NumberLength)
	if err != nil {
		return "", err
	}

	next := current + 1
	if next > maxNumber(scope.NumberLength) {
		return "", fmt.Errorf("%w: prefix %q in %s", ErrMaxCodesExhausted, prefix, scope.Table)
	}

	return formatCode(prefix, scope, next), nil
}

// Exists reports whether code is already stored in scope.
func (g *Generator) Exists(ctx context.Context, q Querier, scope Scope, code string) (bool, error) {
	scope, err := scope.normalize()
	if err != nil {
		return false, err
	}

	table, codeCol, tenantCol := scope.quoted()
	query := "SELECT 1 FROM " + table + " WHERE " + codeCol + " = $1"
	args := []any{code}
	if scope.partitioned() {
		query = "SELECT 1 FROM " + table + " WHERE " + tenantCol + " = $1 AND " + codeCol + " = $2"
		args = []any{scope.TenantID.String(), code}
	}
	query += " LIMIT 1"

	var one int
	err = q.QueryRow(ctx, query, args...).Scan(&one)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check %s code: %w", scope.Table, err)
	}
	return true, nil
}

// Claim checks that code is free in scope and then hands it to insert. A code that is
// taken, either before the insert or by a racing insert, is reported as *DuplicateCodeError.
func (g *Generator) Claim(
	ctx context.Context,
	q Querier,
	scope Scope,
	code string,
	insert func(ctx context.Context, code string) error,
) error {
	exists, err := g.Exists(ctx, q, scope, code)
	if err != nil {
		return err
	}
	if exists {
		return &DuplicateCodeError{Table: scope.Table, Code: code}
	}

	err = insert(ctx, code)
	if err != nil && data.ErrorIsDuplicateKey(err) {
		return fmt.Errorf("%w: %w", &DuplicateCodeError{Table: scope.Table, Code: code}, err)
	}
	return err
}

// Allocate generates the next code for name and hands it to insert. When insert fails with a
// uniqueness violation the allocation is computed again and tried once more; a second
// violation is reported as ErrCodeConflict.
func (g *Generator) Allocate(
	ctx context.Context,
	q Querier,
	scope Scope,
	name string,
	insert func(ctx context.Context, code string) error,
) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		code, err := g.NextCode(ctx, q, scope, name)
		if err != nil {
			return "", err
		}

		err = insert(ctx, code)
		if err == nil {
			return code, nil
		}
		if !data.ErrorIsDuplicateKey(err) {
			return "", err
		}

		util.Log(ctx).WithFields(map[string]any{
			"table":   scope.Table,
			"code":    code,
			"attempt": attempt,
		}).Warn("code allocation raced with another insert")
		lastErr = err
	}

	return "", fmt.Errorf("%w: %w", ErrCodeConflict, lastErr)
}

func lastCodeQuery(scope Scope, prefix string) (string, []any) {
	table, codeCol, tenantCol := scope.quoted()

	like := escapeLike(prefix+scope.Separator) + "%"
	pattern := "^" + regexp.QuoteMeta(prefix) + regexp.QuoteMeta(scope.Separator) +
		"[0-9]{" + strconv.Itoa(scope.NumberLength) + "}$"

	var b strings.Builder
	b.WriteString("SELECT " + codeCol + " FROM " + table + " WHERE ")
	args := make([]any, 0, 3)
	if scope.partitioned() {
		args = append(args, scope.TenantID.String())
		b.WriteString(tenantCol + " = $1 AND ")
	}
	args = append(args, like, pattern)
	fmt.Fprintf(&b, "%s LIKE $%d AND %s ~ $%d ORDER BY %s DESC LIMIT 1",
		codeCol, len(args)-1, codeCol, len(args), codeCol)

	return b.String(), args
}

func trailingNumber(code string, numberLength int) (int64, error) {
	if len(code) < numberLength {
		return 0, fmt.Errorf("%w: %q", ErrCodeFormat, code)
	}
	n, err := strconv.ParseInt(code[len(code)-numberLength:], 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrCodeFormat, code)
	}
	return n, nil
}

func maxNumber(numberLength int) int64 {
	limit := int64(1)
	for range numberLength {
		limit *= 10
	}
	return limit - 1
}

func formatCode(prefix string, scope Scope, n int64) string {
	return fmt.Sprintf("%s%s%0*d", prefix, scope.Separator, scope.NumberLength, n)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
