package postgresengine

import (
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/library-history-go/library"
)

var errUnknownField = errors.New("condition references an unknown column")

// compileCondition turns a Condition into a goqu expression over the given table.
// It returns nil for an empty condition.
func (s Store) compileCondition(table string, hasColumn func(string) bool, condition library.Condition) (exp.Expression, error) {
	if condition.IsEmpty() {
		return nil, nil
	}

	expressions := make([]exp.Expression, 0, len(condition.Predicates()))

	for _, predicate := range condition.Predicates() {
		if !hasColumn(predicate.Field()) {
			return nil, fmt.Errorf("%w: %s.%s", errUnknownField, table, predicate.Field())
		}

		expression, err := compilePredicate(goqu.T(table).Col(predicate.Field()), s.sqlValue(predicate.Val()), predicate.Op())
		if err != nil {
			return nil, err
		}

		expressions = append(expressions, expression)
	}

	if condition.IsAnyOf() {
		return goqu.Or(expressions...), nil
	}

	return goqu.And(expressions...), nil
}

func compilePredicate(column exp.IdentifierExpression, value any, op library.Operator) (exp.Expression, error) {
	switch op {
	case library.OpEq:
		return column.Eq(value), nil
	case library.OpNotEq:
		return column.Neq(value), nil
	case library.OpLt:
		return column.Lt(value), nil
	case library.OpLte:
		return column.Lte(value), nil
	case library.OpGt:
		return column.Gt(value), nil
	case library.OpGte:
		return column.Gte(value), nil
	case library.OpIsNull:
		return column.IsNull(), nil
	case library.OpIsNotNull:
		return column.IsNotNull(), nil
	default:
		return nil, fmt.Errorf("unsupported condition operator %d", op)
	}
}

// sqliteTimeFormat is fixed width, so sqlite's text comparison orders instants correctly.
// go-sqlite3 parses it back into a UTC time.Time for DATETIME columns.
const sqliteTimeFormat = "2006-01-02 15:04:05.000000000"

// sqlValue converts a condition or column value into what the dialect compares correctly.
func (s Store) sqlValue(v any) any {
	switch val := v.(type) {
	case *time.Time:
		if val == nil {
			return nil
		}
		return s.sqlTime(*val)
	case time.Time:
		return s.sqlTime(val)
	default:
		return v
	}
}

func (s Store) sqlTime(t time.Time) any {
	if s.dialectName == dialectSQLite3 {
		return t.UTC().Format(sqliteTimeFormat)
	}

	return t.UTC()
}

// sqlRecord applies sqlValue to every column of record.
func (s Store) sqlRecord(record goqu.Record) goqu.Record {
	for column, value := range record {
		record[column] = s.sqlValue(value)
	}

	return record
}
