// ABOUTME: Compiles clause trees into parameterized, set-combined SQL
// ABOUTME: And maps to INTERSECT, Or maps to UNION over identifier selects

package query

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"regexp"

	"github.com/jonnycoombes/tarantula/pkg/node"
	"github.com/jonnycoombes/tarantula/pkg/store"
)

// UnsupportedColumnError reports a core-namespace predicate whose
// logical field is outside the allow-list.
type UnsupportedColumnError struct {
	Field string
}

// Error implements the error interface.
func (e *UnsupportedColumnError) Error() string {
	return fmt.Sprintf("query: unsupported core column %q", e.Field)
}

// Compiled is a ready-to-execute identifier query. SQL selects node
// identifiers; Args carries the named bound parameters.
type Compiled struct {
	SQL  string
	Args []any
}

// coreColumnAllowList maps logical core field names to physical
// columns. Anything outside this map never reaches the statement text.
var coreColumnAllowList = map[string]string{
	"id":         "data_id",
	"parentId":   "parent_id",
	"name":       "name",
	"ownerId":    "owner_id",
	"createDate": "create_date",
	"modifyDate": "modify_date",
	"subType":    "subtype",
	"versionNum": "version_num",
	"originId":   "origin_data_id",
}

// displayNamePattern bounds category and attribute display names that
// are interpolated (after lookup) rather than parameterized.
var displayNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ -]*$`)

// Compile turns a clause tree into one set-combined statement. A
// core-namespace predicate outside the allow-list fails compilation
// with *UnsupportedColumnError.
func Compile(c Clause) (*Compiled, error) {
	comp := &compilation{}
	sqlText, args, err := comp.clause(c)
	if err != nil {
		return nil, err
	}
	return &Compiled{SQL: sqlText, Args: args}, nil
}

// CompileLenient preserves the historical behavior for unsupported core
// columns: the offending predicate contributes nothing to the combined
// result and is reported as a diagnostic instead of an error. A query
// reduced to nothing returns a Compiled with empty SQL.
func CompileLenient(c Clause) (*Compiled, []*UnsupportedColumnError, error) {
	comp := &compilation{lenient: true}
	sqlText, args, err := comp.clause(c)
	if err != nil {
		return nil, comp.diags, err
	}
	return &Compiled{SQL: sqlText, Args: args}, comp.diags, nil
}

// Run executes a compiled statement against the store. An empty
// statement (fully degraded lenient compilation) matches nothing.
func Run(ctx context.Context, s *store.Store, c *Compiled) ([]int64, error) {
	if c == nil || c.SQL == "" {
		return nil, nil
	}
	return s.SelectIDs(ctx, c.SQL, c.Args...)
}

type compilation struct {
	lenient bool
	diags   []*UnsupportedColumnError
}

// clause compiles one subtree. An empty SQL result (lenient mode only)
// means the subtree contributes nothing.
func (c *compilation) clause(cl Clause) (string, []any, error) {
	switch t := cl.(type) {
	case *Predicate:
		return c.predicate(t)
	case *AndClause:
		return c.binary(t.Left, t.Right, "INTERSECT")
	case *OrClause:
		return c.binary(t.Left, t.Right, "UNION")
	default:
		return "", nil, fmt.Errorf("query: unknown clause type %T", cl)
	}
}

func (c *compilation) binary(left, right Clause, combinator string) (string, []any, error) {
	lsql, largs, err := c.clause(left)
	if err != nil {
		return "", nil, err
	}
	rsql, rargs, err := c.clause(right)
	if err != nil {
		return "", nil, err
	}

	// Degraded sides only occur in lenient mode
	if lsql == "" {
		return rsql, rargs, nil
	}
	if rsql == "" {
		return lsql, largs, nil
	}

	combined := fmt.Sprintf("SELECT data_id FROM (%s)\n%s\nSELECT data_id FROM (%s)", lsql, combinator, rsql)
	return combined, mergeArgs(largs, rargs), nil
}

func (c *compilation) predicate(p *Predicate) (string, []any, error) {
	if len(p.Path.Components) != 2 {
		return "", nil, fmt.Errorf("query: malformed attribute path %q", p.Path)
	}

	if p.Path.IsCore() {
		return c.corePredicate(p)
	}
	return c.categoryPredicate(p)
}

func (c *compilation) corePredicate(p *Predicate) (string, []any, error) {
	field := p.Path.Components[1]
	column, ok := coreColumnAllowList[field]
	if !ok {
		uerr := &UnsupportedColumnError{Field: field}
		if c.lenient {
			c.diags = append(c.diags, uerr)
			return "", nil, nil
		}
		return "", nil, uerr
	}

	// Core date columns store full timestamps. A date literal binds as
	// a bare day, so compare the column's day via date() or the
	// predicate would never match a stamped row.
	lhs := column
	if coreDateColumns[column] && p.Value.Kind == KindDate {
		lhs = fmt.Sprintf("date(%s)", column)
	}

	tag := paramTag(p)
	sqlText := fmt.Sprintf("SELECT data_id FROM %s WHERE %s %s :%s",
		store.TableNodes, lhs, sqlComparator(p.Comparator), tag)
	return sqlText, []any{sql.Named(tag, paramValue(p.Value))}, nil
}

// coreDateColumns names the physical columns holding timestamp text.
var coreDateColumns = map[string]bool{
	"create_date": true,
	"modify_date": true,
}

func (c *compilation) categoryPredicate(p *Predicate) (string, []any, error) {
	category := p.Path.Components[0]
	attribute := p.Path.Components[1]
	if !displayNamePattern.MatchString(category) {
		return "", nil, fmt.Errorf("query: invalid category name %q", category)
	}
	if !displayNamePattern.MatchString(attribute) {
		return "", nil, fmt.Errorf("query: invalid attribute name %q", attribute)
	}

	tag := paramTag(p)
	sqlText := fmt.Sprintf(
		"SELECT n.data_id FROM %s n JOIN %s a ON a.data_id = n.data_id AND a.version_num = n.version_num "+
			"WHERE a.category = '%s' AND a.attribute = '%s' AND a.%s %s :%s",
		store.TableNodes, store.ViewAttrs, category, attribute,
		valueColumn(p.Value), sqlComparator(p.Comparator), tag)
	return sqlText, []any{sql.Named(tag, paramValue(p.Value))}, nil
}

// paramTag derives a deterministic bind-parameter name from the
// predicate, so identical predicates share one binding and the combined
// statement stays collision-free.
func paramTag(p *Predicate) string {
	h := fnv.New64a()
	h.Write([]byte(p.String()))
	return fmt.Sprintf("p_%016x", h.Sum64())
}

// paramValue converts a typed literal into its driver binding.
// Booleans bind as integers, dates as fixed-format text.
func paramValue(v Value) any {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindDate:
		return v.Date.Format(node.DateFormat)
	case KindBoolean:
		if v.Bool {
			return int64(1)
		}
		return int64(0)
	default:
		return v.Str
	}
}

// valueColumn selects the physical value column for the literal's
// runtime type.
func valueColumn(v Value) string {
	switch v.Kind {
	case KindInteger, KindBoolean:
		return "value_int"
	case KindDate:
		return "value_date"
	default:
		return "value_string"
	}
}

func sqlComparator(c Comparator) string {
	switch c {
	case CompEq:
		return "="
	case CompNe:
		return "<>"
	case CompLt:
		return "<"
	case CompLe:
		return "<="
	case CompGt:
		return ">"
	default:
		return ">="
	}
}

// mergeArgs concatenates bound parameters, dropping duplicate names.
// Identical predicates produce identical tags bound to identical
// values, so a single binding suffices.
func mergeArgs(left, right []any) []any {
	seen := make(map[string]bool, len(left))
	out := make([]any, 0, len(left)+len(right))
	for _, a := range left {
		if named, ok := a.(sql.NamedArg); ok {
			seen[named.Name] = true
		}
		out = append(out, a)
	}
	for _, a := range right {
		if named, ok := a.(sql.NamedArg); ok && seen[named.Name] {
			continue
		}
		out = append(out, a)
	}
	return out
}
