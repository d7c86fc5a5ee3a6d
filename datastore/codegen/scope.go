package codegen

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	DefaultCodeColumn   = "code"
	DefaultTenantColumn = "workspace_id"
	DefaultPrefixLength = 2
	DefaultNumberLength = 5
	DefaultSeparator    = "-"

	maxNumberLength = 18
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Scope names the table and partition codes are allocated in. Codes are unique per
// (TenantColumn, code); a Scope with an empty TenantColumn allocates across the whole table.
type Scope struct {
	Table        string
	CodeColumn   string
	TenantColumn string
	TenantID     uuid.UUID
	PrefixLength int
	NumberLength int
	Separator    string
}

// NewScope returns the default scope for table partitioned by workspace.
func NewScope(table string, workspaceID uuid.UUID) Scope {
	return Scope{
		Table:        table,
		CodeColumn:   DefaultCodeColumn,
		TenantColumn: DefaultTenantColumn,
		TenantID:     workspaceID,
		PrefixLength: DefaultPrefixLength,
		NumberLength: DefaultNumberLength,
		Separator:    DefaultSeparator,
	}
}

func (s Scope) partitioned() bool {
	return s.TenantColumn != ""
}

func (s Scope) normalize() (Scope, error) {
	if s.CodeColumn == "" {
		s.CodeColumn = DefaultCodeColumn
	}
	if s.PrefixLength <= 0 {
		s.PrefixLength = DefaultPrefixLength
	}
	if s.NumberLength <= 0 {
		s.NumberLength = DefaultNumberLength
	}
	if s.Separator == "" {
		s.Separator = DefaultSeparator
	}

	if s.NumberLength > maxNumberLength {
		return s, fmt.Errorf("%w: number length %d exceeds %d", ErrInvalidScope, s.NumberLength, maxNumberLength)
	}

	for _, ident := range []string{s.Table, s.CodeColumn} {
		if !identifierPattern.MatchString(ident) {
			return s, fmt.Errorf("%w: %q is not a valid identifier", ErrInvalidScope, ident)
		}
	}

	if s.partitioned() {
		if !identifierPattern.MatchString(s.TenantColumn) {
			return s, fmt.Errorf("%w: %q is not a valid identifier", ErrInvalidScope, s.TenantColumn)
		}
		if s.TenantID == uuid.Nil {
			return s, fmt.Errorf("%w: %s is partitioned by %s but no tenant was given",
				ErrScopeMismatch, s.Table, s.TenantColumn)
		}
	} else if s.TenantID != uuid.Nil {
		return s, fmt.Errorf("%w: tenant given for unpartitioned table %s", ErrScopeMismatch, s.Table)
	}

	return s, nil
}

func (s Scope) quoted() (table, code, tenant string) {
	table = pgx.Identifier{s.Table}.Sanitize()
	code = pgx.Identifier{s.CodeColumn}.Sanitize()
	if s.partitioned() {
		tenant = pgx.Identifier{s.TenantColumn}.Sanitize()
	}
	return table, code, tenant
}
