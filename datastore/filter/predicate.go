package filter

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Predicate is one condition of a Set. The variants are closed: they can only be built with
// the constructors of this package, and every value they carry is bound as a parameter.
type Predicate interface {
	sqlizer(d *Definition) (sq.Sqlizer, error)
}

type equal struct {
	field string
	value any
}

// Equal matches rows whose field equals value.
func Equal(field string, value any) Predicate {
	return equal{field: field, value: bindable(value)}
}

func (p equal) sqlizer(d *Definition) (sq.Sqlizer, error) {
	col, err := d.column(p.field)
	if err != nil {
		return nil, err
	}
	return sq.Eq{col: p.value}, nil
}

type contains struct {
	fields []string
	value  string
	fold   bool
}

// Contains matches rows whose field contains value, case sensitively.
func Contains(field, value string) Predicate {
	return contains{fields: []string{field}, value: value}
}

// ContainsFold is Contains ignoring case.
func ContainsFold(field, value string) Predicate {
	return contains{fields: []string{field}, value: value, fold: true}
}

// Search matches rows where any of fields contains value.
func Search(value string, fold bool, fields ...string) Predicate {
	return contains{fields: fields, value: value, fold: fold}
}

func (p contains) sqlizer(d *Definition) (sq.Sqlizer, error) {
	if len(p.fields) == 0 {
		return nil, fmt.Errorf("%w: substring match without fields", ErrUnknownField)
	}

	pattern := "%" + EscapeLike(p.value) + "%"
	alternatives := make(sq.Or, 0, len(p.fields))
	for _, field := range p.fields {
		col, err := d.column(field)
		if err != nil {
			return nil, err
		}
		if p.fold {
			alternatives = append(alternatives, sq.ILike{col: pattern})
		} else {
			alternatives = append(alternatives, sq.Like{col: pattern})
		}
	}
	if len(alternatives) == 1 {
		return alternatives[0], nil
	}
	return alternatives, nil
}

type membership struct {
	field  string
	values []any
	negate bool
}

// In matches rows whose field is one of values.
func In[T any](field string, values ...T) Predicate {
	return membership{field: field, values: bindableList(values)}
}

// NotIn matches rows whose field is none of values.
func NotIn[T any](field string, values ...T) Predicate {
	return membership{field: field, values: bindableList(values), negate: true}
}

func (p membership) sqlizer(d *Definition) (sq.Sqlizer, error) {
	col, err := d.column(p.field)
	if err != nil {
		return nil, err
	}
	if p.negate {
		return sq.NotEq{col: p.values}, nil
	}
	return sq.Eq{col: p.values}, nil
}

type between struct {
	field    string
	lower, upper any
}

// Range matches rows whose field lies within [lower, upper]. A nil bound is open.
func Range(field string, lower, upper any) Predicate {
	return between{field: field, lower: bindable(lower), upper: bindable(upper)}
}

func (p between) sqlizer(d *Definition) (sq.Sqlizer, error) {
	col, err := d.column(p.field)
	if err != nil {
		return nil, err
	}

	bounds := sq.And{}
	if p.lower != nil {
		bounds = append(bounds, sq.GtOrEq{col: p.lower})
	}
	if p.upper != nil {
		bounds = append(bounds, sq.LtOrEq{col: p.upper})
	}
	return bounds, nil
}

type notNull struct {
	field string
}

// NotNull matches rows whose field has a value.
func NotNull(field string) Predicate {
	return notNull{field: field}
}

func (p notNull) sqlizer(d *Definition) (sq.Sqlizer, error) {
	col, err := d.column(p.field)
	if err != nil {
		return nil, err
	}
	return sq.NotEq{col: nil}, nil
}

// Comparison is the operator of a column to column comparison.
type Comparison string

const (
	LessOrEqual    Comparison = "<="
	Less           Comparison = "<"
	GreaterOrEqual Comparison = ">="
	Greater        Comparison = ">"
	Same           Comparison = "="
)

type compare struct {
	left, right string
	op          Comparison
}

// Compare matches rows where column left relates to column right by op.
func Compare(left string, op Comparison, right string) Predicate {
	return compare{left: left, op: op, right: right}
}

func (p compare) sqlizer(d *Definition) (sq.Sqlizer, error) {
	switch p.op {
	case LessOrEqual, Less, GreaterOrEqual, Greater, Same:
	default:
		return nil, fmt.Errorf("%w: comparison %q", ErrUnknownField, p.op)
	}

	left, err := d.column(p.left)
	if err != nil {
		return nil, err
	}
	right, err := d.column(p.right)
	if err != nil {
		return nil, err
	}
	return sq.Expr(left + " " + string(p.op) + " " + right), nil
}

type all struct {
	preds []Predicate
}

// All matches rows satisfying every one of preds.
func All(preds ...Predicate) Predicate {
	return all{preds: preds}
}

func (p all) sqlizer(d *Definition) (sq.Sqlizer, error) {
	group := make(sq.And, 0, len(p.preds))
	for _, pred := range p.preds {
		s, err := pred.sqlizer(d)
		if err != nil {
			return nil, err
		}
		group = append(group, s)
	}
	return group, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike makes s match literally inside a LIKE pattern.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// bindable turns values squirrel would otherwise expand into lists into scalars.
func bindable(v any) any {
	switch id := v.(type) {
	case uuid.UUID:
		return id.String()
	case *uuid.UUID:
		if id == nil {
			return nil
		}
		return id.String()
	}
	return v
}

func bindableList[T any](values []T) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, bindable(v))
	}
	return out
}
