// Package visibility builds row-scoping filters as data. A Filter renders to a gorm
// clause for queries and can be evaluated in memory against a single loaded row, so the
// same rule set drives both list queries and detail checks.
package visibility

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type kind int

const (
	kindAll kind = iota
	kindNone
	kindEq
	kindIsNull
	kindAnd
	kindOr
)

// Filter is an immutable predicate tree over column names.
type Filter struct {
	kind     kind
	field    string
	value    any
	children []Filter
}

// Row resolves a column to its textual value; ok is false when the column is NULL.
type Row func(field string) (value string, ok bool)

// All matches every row.
func All() Filter { return Filter{kind: kindAll} }

// None matches no row.
func None() Filter { return Filter{kind: kindNone} }

// Eq matches rows where field equals value.
func Eq(field string, value any) Filter {
	return Filter{kind: kindEq, field: field, value: value}
}

// IsNull matches rows where field is NULL.
func IsNull(field string) Filter {
	return Filter{kind: kindIsNull, field: field}
}

// And matches rows satisfying every filter. All() operands are dropped; any None() wins.
func And(filters ...Filter) Filter {
	children := make([]Filter, 0, len(filters))
	for _, f := range filters {
		switch f.kind {
		case kindAll:
			continue
		case kindNone:
			return None()
		}
		children = append(children, f)
	}
	switch len(children) {
	case 0:
		return All()
	case 1:
		return children[0]
	}
	return Filter{kind: kindAnd, children: children}
}

// Or matches rows satisfying any filter. None() operands are dropped; any All() wins.
func Or(filters ...Filter) Filter {
	children := make([]Filter, 0, len(filters))
	for _, f := range filters {
		switch f.kind {
		case kindNone:
			continue
		case kindAll:
			return All()
		}
		children = append(children, f)
	}
	switch len(children) {
	case 0:
		return None()
	case 1:
		return children[0]
	}
	return Filter{kind: kindOr, children: children}
}

// IsAll reports whether the filter places no restriction.
func (f Filter) IsAll() bool { return f.kind == kindAll }

// IsNone reports whether the filter can never match.
func (f Filter) IsNone() bool { return f.kind == kindNone }

// Expression renders the filter as a gorm clause expression. All() renders to nil.
func (f Filter) Expression() clause.Expression {
	switch f.kind {
	case kindAll:
		return nil
	case kindNone:
		return clause.Expr{SQL: "1 = 0"}
	case kindEq:
		return clause.Eq{Column: clause.Column{Name: f.field}, Value: f.value}
	case kindIsNull:
		return clause.Eq{Column: clause.Column{Name: f.field}, Value: nil}
	case kindAnd, kindOr:
		exprs := make([]clause.Expression, 0, len(f.children))
		for _, child := range f.children {
			if expr := child.Expression(); expr != nil {
				exprs = append(exprs, expr)
			}
		}
		if f.kind == kindAnd {
			return clause.And(exprs...)
		}
		return clause.Or(exprs...)
	}
	return nil
}

// Apply scopes the query by the filter.
func (f Filter) Apply(db *gorm.DB) *gorm.DB {
	expr := f.Expression()
	if expr == nil {
		return db
	}
	return db.Where(expr)
}

// Matches evaluates the filter against a single row.
func (f Filter) Matches(row Row) bool {
	switch f.kind {
	case kindAll:
		return true
	case kindNone:
		return false
	case kindEq:
		value, ok := row(f.field)
		return ok && value == fmt.Sprint(f.value)
	case kindIsNull:
		_, ok := row(f.field)
		return !ok
	case kindAnd:
		for _, child := range f.children {
			if !child.Matches(row) {
				return false
			}
		}
		return true
	case kindOr:
		for _, child := range f.children {
			if child.Matches(row) {
				return true
			}
		}
		return false
	}
	return false
}

// String renders a readable form, e.g. `game_id = g AND (supplier_id = s OR status = pending)`.
func (f Filter) String() string {
	switch f.kind {
	case kindAll:
		return "TRUE"
	case kindNone:
		return "FALSE"
	case kindEq:
		return fmt.Sprintf("%s = %v", f.field, f.value)
	case kindIsNull:
		return fmt.Sprintf("%s IS NULL", f.field)
	case kindAnd, kindOr:
		sep := " AND "
		if f.kind == kindOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(f.children))
		for _, child := range f.children {
			s := child.String()
			if child.kind == kindAnd || child.kind == kindOr {
				s = "(" + s + ")"
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, sep)
	}
	return ""
}
