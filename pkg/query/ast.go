// ABOUTME: Query language AST: paths, typed values, predicates, clauses
// ABOUTME: Closed sum of Predicate, AndClause and OrClause

package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jonnycoombes/tarantula/pkg/node"
)

// CoreNamespace is the reserved first path component selecting a
// structural column of a node rather than a category attribute.
const CoreNamespace = "node"

// AttributePath addresses either a core column (node.<field>) or a
// category attribute (<category>.<attribute>).
type AttributePath struct {
	Components []string
}

// IsCore reports whether the path addresses the core namespace.
func (p AttributePath) IsCore() bool {
	return len(p.Components) > 0 && p.Components[0] == CoreNamespace
}

// String joins the path components.
func (p AttributePath) String() string {
	out := ""
	for i, c := range p.Components {
		if i > 0 {
			out += "."
		}
		out += c
	}
	return out
}

// Comparator is a relational comparison operator.
type Comparator int

// Comparators in grammar order
const (
	CompEq Comparator = iota
	CompNe
	CompLt
	CompLe
	CompGt
	CompGe
)

// String returns the source form of the comparator.
func (c Comparator) String() string {
	switch c {
	case CompEq:
		return "=="
	case CompNe:
		return "!="
	case CompLt:
		return "<"
	case CompLe:
		return "<="
	case CompGt:
		return ">"
	case CompGe:
		return ">="
	default:
		return fmt.Sprintf("comparator(%d)", int(c))
	}
}

// ValueKind discriminates the typed literal union.
type ValueKind int

// Literal kinds
const (
	KindString ValueKind = iota
	KindInteger
	KindDate
	KindBoolean
)

// Value is a typed query literal. Exactly one slot is meaningful,
// selected by Kind.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Date time.Time
	Bool bool
}

// StringValue wraps a string literal.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntegerValue wraps an integer literal.
func IntegerValue(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// DateValue wraps a date literal.
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Date: t} }

// BooleanValue wraps a boolean literal.
func BooleanValue(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// String returns the source form of the literal. Quoted forms re-parse
// to the same kind: a date prints in the fixed date format, which the
// parser re-detects as a date.
func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindDate:
		return "'" + v.Date.Format(node.DateFormat) + "'"
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	default:
		return "'" + v.Str + "'"
	}
}

// Clause is a boolean expression over predicates. The variants are
// exactly *Predicate, *AndClause and *OrClause.
type Clause interface {
	fmt.Stringer
	isClause()
}

// Predicate compares one attribute path with one literal.
type Predicate struct {
	Path       AttributePath
	Comparator Comparator
	Value      Value
}

func (p *Predicate) isClause() {}

// String returns the source form of the predicate.
func (p *Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Path, p.Comparator, p.Value)
}

// AndClause is the conjunction of two clauses.
type AndClause struct {
	Left  Clause
	Right Clause
}

func (a *AndClause) isClause() {}

// String parenthesizes the conjunction so printing round-trips through
// the equal-precedence parser unchanged.
func (a *AndClause) String() string {
	return fmt.Sprintf("(%s && %s)", a.Left, a.Right)
}

// OrClause is the disjunction of two clauses.
type OrClause struct {
	Left  Clause
	Right Clause
}

func (o *OrClause) isClause() {}

// String parenthesizes the disjunction.
func (o *OrClause) String() string {
	return fmt.Sprintf("(%s || %s)", o.Left, o.Right)
}
