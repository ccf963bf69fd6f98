package library

import (
	"cmp"
	"slices"
	"time"
)

type FieldString = string

// Operator is the comparison applied by a Predicate.
type Operator int

const (
	OpEq Operator = iota
	OpNotEq
	OpLt
	OpLte
	OpGt
	OpGte
	OpIsNull
	OpIsNotNull
)

/***** Predicate *****/

// Predicate compares one field against a value.
type Predicate struct {
	field FieldString
	op    Operator
	val   any
}

func Eq(field FieldString, val any) Predicate    { return Predicate{field: field, op: OpEq, val: val} }
func NotEq(field FieldString, val any) Predicate { return Predicate{field: field, op: OpNotEq, val: val} }
func Lt(field FieldString, val any) Predicate    { return Predicate{field: field, op: OpLt, val: val} }
func Lte(field FieldString, val any) Predicate   { return Predicate{field: field, op: OpLte, val: val} }
func Gt(field FieldString, val any) Predicate    { return Predicate{field: field, op: OpGt, val: val} }
func Gte(field FieldString, val any) Predicate   { return Predicate{field: field, op: OpGte, val: val} }
func IsNull(field FieldString) Predicate         { return Predicate{field: field, op: OpIsNull} }
func IsNotNull(field FieldString) Predicate      { return Predicate{field: field, op: OpIsNotNull} }

func (p Predicate) Field() FieldString { return p.field }
func (p Predicate) Op() Operator       { return p.op }
func (p Predicate) Val() any           { return p.val }

/***** Condition *****/

// Condition is a declarative filter over one entity type.
// Stores compile it into their query language, Matches evaluates it in memory, and both must agree.
//
// Supported shapes:
//
//   - MatchAll()                   no restriction
//   - AllOf(predicate...)          predicate AND predicate...
//   - AnyOf(predicate...)          predicate OR predicate...
type Condition struct {
	predicates []Predicate
	anyOf      bool
}

// MatchAll returns a Condition without predicates.
func MatchAll() Condition {
	return Condition{}
}

// AllOf returns a Condition that matches when every predicate matches.
//
// It sanitizes the input by dropping predicates with an empty field name.
func AllOf(predicate Predicate, predicates ...Predicate) Condition {
	return Condition{predicates: sanitize(append([]Predicate{predicate}, predicates...))}
}

// AnyOf returns a Condition that matches when at least one predicate matches.
//
// It sanitizes the input by dropping predicates with an empty field name.
func AnyOf(predicate Predicate, predicates ...Predicate) Condition {
	return Condition{predicates: sanitize(append([]Predicate{predicate}, predicates...)), anyOf: true}
}

func (c Condition) Predicates() []Predicate { return c.predicates }
func (c Condition) IsAnyOf() bool           { return c.anyOf }
func (c Condition) IsEmpty() bool           { return len(c.predicates) == 0 }

// Matches evaluates the Condition against an entity's column values.
func (c Condition) Matches(fields map[string]any) bool {
	if c.IsEmpty() {
		return true
	}

	for _, p := range c.predicates {
		matched := p.matches(fields)

		if c.anyOf && matched {
			return true
		}

		if !c.anyOf && !matched {
			return false
		}
	}

	return !c.anyOf
}

func (p Predicate) matches(fields map[string]any) bool {
	actual := normalize(fields[p.field])

	switch p.op {
	case OpIsNull:
		return actual == nil
	case OpIsNotNull:
		return actual != nil
	}

	if actual == nil {
		return false
	}

	result, ok := compare(actual, normalize(p.val))
	if !ok {
		return false
	}

	switch p.op {
	case OpEq:
		return result == 0
	case OpNotEq:
		return result != 0
	case OpLt:
		return result < 0
	case OpLte:
		return result <= 0
	case OpGt:
		return result > 0
	case OpGte:
		return result >= 0
	default:
		return false
	}
}

func sanitize(predicates []Predicate) []Predicate {
	return slices.DeleteFunc(predicates, func(p Predicate) bool {
		return p.field == ""
	})
}

// normalize folds the supported value types onto int64, string, and time.Time.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case string:
		return val
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	default:
		return v
	}
}

func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		return cmp.Compare(x, y), ok
	case string:
		y, ok := b.(string)
		return cmp.Compare(x, y), ok
	case time.Time:
		y, ok := b.(time.Time)
		return x.Compare(y), ok
	default:
		return 0, false
	}
}
