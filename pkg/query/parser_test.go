// ABOUTME: Tests for the query language lexer and parser
// ABOUTME: Pins equal-precedence left associativity and print round-trips

package query

import (
	"errors"
	"testing"
	"time"
)

// clauseEqual compares two trees structurally.
func clauseEqual(a, b Clause) bool {
	switch at := a.(type) {
	case *Predicate:
		bt, ok := b.(*Predicate)
		if !ok || len(at.Path.Components) != len(bt.Path.Components) {
			return false
		}
		for i := range at.Path.Components {
			if at.Path.Components[i] != bt.Path.Components[i] {
				return false
			}
		}
		return at.Comparator == bt.Comparator && at.Value == bt.Value
	case *AndClause:
		bt, ok := b.(*AndClause)
		return ok && clauseEqual(at.Left, bt.Left) && clauseEqual(at.Right, bt.Right)
	case *OrClause:
		bt, ok := b.(*OrClause)
		return ok && clauseEqual(at.Left, bt.Left) && clauseEqual(at.Right, bt.Right)
	default:
		return false
	}
}

func mustParse(t *testing.T, input string) Clause {
	t.Helper()
	c, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", input, err)
	}
	return c
}

func TestParseStringPredicate(t *testing.T) {
	c := mustParse(t, "node.name == 'Invoice'")

	p, ok := c.(*Predicate)
	if !ok {
		t.Fatalf("Expected predicate, got %T", c)
	}
	if !p.Path.IsCore() || p.Path.Components[1] != "name" {
		t.Errorf("Path = %v", p.Path)
	}
	if p.Comparator != CompEq {
		t.Errorf("Comparator = %v", p.Comparator)
	}
	if p.Value.Kind != KindString || p.Value.Str != "Invoice" {
		t.Errorf("Value = %+v", p.Value)
	}
}

func TestParseTypedValues(t *testing.T) {
	tests := []struct {
		input string
		check func(Value) bool
	}{
		{"node.subType == 144", func(v Value) bool { return v.Kind == KindInteger && v.Int == 144 }},
		{"node.id >= -5", func(v Value) bool { return v.Kind == KindInteger && v.Int == -5 }},
		{"Finance.Audited == true", func(v Value) bool { return v.Kind == KindBoolean && v.Bool }},
		{"Finance.Audited != false", func(v Value) bool { return v.Kind == KindBoolean && !v.Bool }},
		{"node.createDate < '2025-03-14'", func(v Value) bool {
			return v.Kind == KindDate && v.Date.Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
		}},
		{"Finance.Status == '2025-13-99'", func(v Value) bool {
			// Not a valid date, stays a string
			return v.Kind == KindString && v.Str == "2025-13-99"
		}},
	}

	for _, tt := range tests {
		c := mustParse(t, tt.input)
		p, ok := c.(*Predicate)
		if !ok {
			t.Fatalf("Parse(%q): expected predicate, got %T", tt.input, c)
		}
		if !tt.check(p.Value) {
			t.Errorf("Parse(%q): value = %+v", tt.input, p.Value)
		}
	}
}

func TestParseComparators(t *testing.T) {
	want := map[string]Comparator{
		"==": CompEq, "!=": CompNe, "<": CompLt, "<=": CompLe, ">": CompGt, ">=": CompGe,
	}
	for src, comp := range want {
		c := mustParse(t, "node.id "+src+" 1")
		if p := c.(*Predicate); p.Comparator != comp {
			t.Errorf("Comparator for %q = %v, want %v", src, p.Comparator, comp)
		}
	}
}

func TestParsePrecedenceIsStrictlyLeftAssociative(t *testing.T) {
	// The grammar gives && and || equal precedence, so this parses as
	// (A || B) && C rather than the conventional A || (B && C).
	c := mustParse(t, "node.id == 1 || node.id == 2 && node.id == 3")

	and, ok := c.(*AndClause)
	if !ok {
		t.Fatalf("Expected top-level And, got %T", c)
	}
	if _, ok := and.Left.(*OrClause); !ok {
		t.Errorf("Expected (A || B) on the left, got %T", and.Left)
	}
	if _, ok := and.Right.(*Predicate); !ok {
		t.Errorf("Expected bare predicate on the right, got %T", and.Right)
	}
}

func TestParseParenthesesOverrideAssociativity(t *testing.T) {
	c := mustParse(t, "node.id == 1 || (node.id == 2 && node.id == 3)")

	or, ok := c.(*OrClause)
	if !ok {
		t.Fatalf("Expected top-level Or, got %T", c)
	}
	if _, ok := or.Right.(*AndClause); !ok {
		t.Errorf("Expected (B && C) on the right, got %T", or.Right)
	}
}

func TestParsePrintParseIdempotence(t *testing.T) {
	inputs := []string{
		"node.name == 'Invoice'",
		"node.subType == 144 && Finance.Status == 'Approved'",
		"(node.id == 1 || node.id == 2) && node.ownerId != 1000",
		"Finance.Due <= '2025-12-31'",
		"Finance.Audited == true || Finance.Amount > 100",
	}

	for _, input := range inputs {
		first := mustParse(t, input)
		second := mustParse(t, first.String())
		if !clauseEqual(first, second) {
			t.Errorf("Round trip changed structure for %q: printed %q", input, first.String())
		}
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"",
		"node.name ==",
		"node.name = 'x'",
		"node.name == 'unterminated",
		"node == 'x'",
		"node.name == 'a' &&",
		"node.name == 'a' extra",
		"(node.name == 'a'",
		"node.name == 'a' & node.id == 1",
		"node.name == banana",
	}

	for _, input := range inputs {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
			continue
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q) returned %T, want *ParseError", input, err)
		}
	}
}
