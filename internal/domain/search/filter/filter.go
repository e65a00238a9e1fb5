// Package filter is the index filter language: a conjunction of equality and
// set-membership clauses over scalar record fields, with one level of disjunction.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxClauses is the maximum number of clauses in one expression.
	MaxClauses = 32
	// MaxValuesPerClause bounds the value list of an In clause.
	MaxValuesPerClause = 100
)

// Op is a clause operator.
type Op int

const (
	// OpEq matches a single value.
	OpEq Op = iota
	// OpIn matches any of several values.
	OpIn
	// OpAny matches when any of its sub-clauses matches.
	OpAny
)

// Clause is a single filter condition.
type Clause struct {
	field  string
	op     Op
	values []string
	any    []Clause
}

// Eq builds an equality clause.
func Eq(field, value string) Clause {
	return Clause{field: field, op: OpEq, values: []string{value}}
}

// In builds a set-membership clause.
func In(field string, values ...string) Clause {
	return Clause{field: field, op: OpIn, values: values}
}

// AnyOf builds a disjunction of Eq/In clauses. Nesting AnyOf is not allowed.
func AnyOf(clauses ...Clause) Clause {
	return Clause{op: OpAny, any: clauses}
}

// Field returns the record field name. Empty for AnyOf.
func (c Clause) Field() string { return c.field }

// Op returns the clause operator.
func (c Clause) Op() Op { return c.op }

// Values returns the values to match. Eq clauses carry exactly one.
func (c Clause) Values() []string { return c.values }

// Any returns the alternatives of an AnyOf clause.
func (c Clause) Any() []Clause { return c.any }

// Value returns the first value.
func (c Clause) Value() string {
	if len(c.values) == 0 {
		return ""
	}
	return c.values[0]
}

func (c Clause) validate() error {
	if c.op == OpAny {
		if len(c.any) == 0 {
			return fmt.Errorf("any-of requires at least one clause")
		}
		if len(c.any) > MaxClauses {
			return fmt.Errorf("too many clauses in any-of (max %d)", MaxClauses)
		}
		for _, sub := range c.any {
			if sub.op == OpAny {
				return fmt.Errorf("nested any-of is not supported")
			}
			if err := sub.validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if c.field == "" {
		return fmt.Errorf("filter field is required")
	}
	if len(c.values) == 0 {
		return fmt.Errorf("at least one value is required for field %q", c.field)
	}
	if len(c.values) > MaxValuesPerClause {
		return fmt.Errorf("too many values for field %q (max %d)", c.field, MaxValuesPerClause)
	}
	for _, v := range c.values {
		if v == "" {
			return fmt.Errorf("empty value for field %q", c.field)
		}
	}
	return nil
}

func (c Clause) String() string {
	if c.op == OpAny {
		parts := make([]string, len(c.any))
		for i, sub := range c.any {
			parts[i] = sub.String()
		}
		return "(" + strings.Join(parts, " || ") + ")"
	}
	if c.op == OpEq {
		return c.field + " == " + strconv.Quote(c.Value())
	}
	quoted := make([]string, len(c.values))
	for i, v := range c.values {
		quoted[i] = strconv.Quote(v)
	}
	return c.field + " in [" + strings.Join(quoted, ", ") + "]"
}

// Expression is a conjunction of clauses.
type Expression struct {
	clauses []Clause
}

// New validates and creates an Expression.
func New(clauses ...Clause) (Expression, error) {
	if len(clauses) > MaxClauses {
		return Expression{}, fmt.Errorf("too many clauses (max %d)", MaxClauses)
	}
	for _, c := range clauses {
		if err := c.validate(); err != nil {
			return Expression{}, err
		}
	}
	return Expression{clauses: clauses}, nil
}

// MustNew is New for statically known clauses.
func MustNew(clauses ...Clause) Expression {
	e, err := New(clauses...)
	if err != nil {
		panic(err)
	}
	return e
}

// Clauses returns the clauses in declaration order.
func (e Expression) Clauses() []Clause { return e.clauses }

// IsEmpty reports whether the expression matches everything.
func (e Expression) IsEmpty() bool { return len(e.clauses) == 0 }

// String renders the expression for logs, e.g. document_id == "x" && owner_id in ["a", "b"].
func (e Expression) String() string {
	parts := make([]string, len(e.clauses))
	for i, c := range e.clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, " && ")
}
