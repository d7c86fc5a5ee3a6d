package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrUnknownField      = errors.New("unknown filter field")
	ErrInvalidDefinition = errors.New("invalid filter definition")
	ErrMissingScope      = errors.New("tenant and caller are required")

	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

const (
	SortAscending  = "ASC"
	SortDescending = "DESC"
)

// Membership restricts rows to tenants the caller belongs to.
type Membership struct {
	Table        string
	Alias        string
	TenantColumn string
	UserColumn   string
}

// DefaultMembership joins the workspace_users relation.
var DefaultMembership = Membership{
	Table:        "workspace_users",
	Alias:        "wu",
	TenantColumn: "workspace_id",
	UserColumn:   "user_id",
}

// Definition describes one filterable resource. Only identifiers named here ever reach the SQL text.
type Definition struct {
	Table        string
	Alias        string
	Select       []string
	Columns      map[string]string
	TenantColumn string
	Membership   Membership
	Sorts        map[string]string
	DefaultSort  string
}

// Set is what a caller asks for: conditions plus an ordering.
type Set struct {
	Predicates []Predicate
	SortBy     string
	SortOrder  string
}

// Where appends p to the set.
func (s *Set) Where(p Predicate) {
	s.Predicates = append(s.Predicates, p)
}

// Query is a matching SELECT and COUNT pair sharing the same conditions.
type Query struct {
	SelectSQL  string
	SelectArgs []any
	CountSQL   string
	CountArgs  []any

	selection sq.SelectBuilder
}

// Page returns the select statement restricted to one page.
func (q *Query) Page(limit, offset uint64) (string, []any, error) {
	return q.selection.Suffix("LIMIT ? OFFSET ?", limit, offset).ToSql()
}

// Build renders set for rows of tenantID visible to callerID.
func (d *Definition) Build(tenantID, callerID uuid.UUID, set Set) (*Query, error) {
	if tenantID == uuid.Nil || callerID == uuid.Nil {
		return nil, ErrMissingScope
	}
	if err := d.validate(); err != nil {
		return nil, err
	}

	conditions := make([]sq.Sqlizer, 0, len(set.Predicates))
	for _, pred := range set.Predicates {
		if pred == nil {
			continue
		}
		s, err := pred.sqlizer(d)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, s)
	}

	columns := make([]string, 0, len(d.Select))
	for _, col := range d.Select {
		columns = append(columns, d.qualify(col))
	}

	selection := d.scoped(sq.Select(columns...), tenantID, callerID, conditions).
		OrderBy(d.orderBy(set.SortBy, set.SortOrder))
	counting := d.scoped(sq.Select("COUNT(*)"), tenantID, callerID, conditions)

	selectSQL, selectArgs, err := selection.ToSql()
	if err != nil {
		return nil, fmt.Errorf("render %s select: %w", d.Table, err)
	}
	countSQL, countArgs, err := counting.ToSql()
	if err != nil {
		return nil, fmt.Errorf("render %s count: %w", d.Table, err)
	}

	return &Query{
		SelectSQL:  selectSQL,
		SelectArgs: selectArgs,
		CountSQL:   countSQL,
		CountArgs:  countArgs,
		selection:  selection,
	}, nil
}

// scoped applies the tenant and membership conditions ahead of the caller's.
func (d *Definition) scoped(b sq.SelectBuilder, tenantID, callerID uuid.UUID, conditions []sq.Sqlizer) sq.SelectBuilder {
	m := d.Membership
	memberTenant := pgx.Identifier{m.Alias, m.TenantColumn}.Sanitize()
	memberUser := pgx.Identifier{m.Alias, m.UserColumn}.Sanitize()
	tenant := d.qualify(d.TenantColumn)

	b = b.PlaceholderFormat(sq.Dollar).
		From(pgx.Identifier{d.Table}.Sanitize() + " " + pgx.Identifier{d.Alias}.Sanitize()).
		Join(pgx.Identifier{m.Table}.Sanitize() + " " + pgx.Identifier{m.Alias}.Sanitize() +
			" ON " + memberTenant + " = " + tenant).
		Where(sq.Eq{tenant: tenantID.String()}).
		Where(sq.Eq{memberUser: callerID.String()})

	for _, c := range conditions {
		b = b.Where(c)
	}
	return b
}

func (d *Definition) orderBy(sortBy, sortOrder string) string {
	col, ok := d.Sorts[strings.ToLower(strings.TrimSpace(sortBy))]
	if !ok {
		col = d.DefaultSort
	}

	direction := SortDescending
	if strings.EqualFold(strings.TrimSpace(sortOrder), SortAscending) {
		direction = SortAscending
	}
	return d.qualify(col) + " " + direction
}

func (d *Definition) column(field string) (string, error) {
	col, ok := d.Columns[field]
	if !ok {
		return "", fmt.Errorf("%w: %q on %s", ErrUnknownField, field, d.Table)
	}
	return d.qualify(col), nil
}

func (d *Definition) qualify(col string) string {
	return pgx.Identifier{d.Alias, col}.Sanitize()
}

func (d *Definition) validate() error {
	m := d.Membership
	idents := []string{d.Table, d.Alias, d.TenantColumn, d.DefaultSort,
		m.Table, m.Alias, m.TenantColumn, m.UserColumn}
	idents = append(idents, d.Select...)
	for _, col := range d.Columns {
		idents = append(idents, col)
	}
	for _, col := range d.Sorts {
		idents = append(idents, col)
	}

	for _, ident := range idents {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("%w: %q on %s", ErrInvalidDefinition, ident, d.Table)
		}
	}
	if len(d.Select) == 0 {
		return fmt.Errorf("%w: %s selects no columns", ErrInvalidDefinition, d.Table)
	}
	return nil
}
