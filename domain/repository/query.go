// Package repository provides the query options and store contract shared by
// every persisted aggregate.
package repository

import "fmt"

// Option applies a modification to a Query.
type Option func(Query) Query

// Query holds conditions, ordering and a limit for store lookups.
type Query struct {
	conditions []Condition
	orders     []Order
	limit      int
}

// Build creates a Query from a set of options.
func Build(options ...Option) Query {
	q := Query{}
	for _, opt := range options {
		q = opt(q)
	}
	return q
}

// Conditions returns the query conditions.
func (q Query) Conditions() []Condition {
	result := make([]Condition, len(q.conditions))
	copy(result, q.conditions)
	return result
}

// Orders returns the query ordering specifications.
func (q Query) Orders() []Order {
	result := make([]Order, len(q.orders))
	copy(result, q.orders)
	return result
}

// LimitValue returns the limit (0 means no limit).
func (q Query) LimitValue() int {
	return q.limit
}

// Operator is the comparison used by a Condition.
type Operator string

// Operator values.
const (
	OpEqual              Operator = "="
	OpIn                 Operator = "IN"
	OpLessThanOrEqual    Operator = "<="
	OpGreaterThanOrEqual Operator = ">="
	OpIsNull             Operator = "IS NULL"
	OpIsNotNull          Operator = "IS NOT NULL"
	OpRaw                Operator = "RAW"
)

// Condition represents a single query condition.
type Condition struct {
	field string
	op    Operator
	value any
}

// Field returns the condition field name.
func (c Condition) Field() string { return c.field }

// Value returns the condition value.
func (c Condition) Value() any { return c.value }

// Operator returns the comparison operator.
func (c Condition) Operator() Operator {
	if c.op == "" {
		return OpEqual
	}
	return c.op
}

// In returns true if this is an IN condition (value is a slice).
func (c Condition) In() bool { return c.op == OpIn }

// Args returns the bind values for Clause.
func (c Condition) Args() []any {
	switch c.Operator() {
	case OpIsNull, OpIsNotNull:
		return nil
	case OpRaw:
		args, _ := c.value.([]any)
		return args
	default:
		return []any{c.value}
	}
}

// Clause renders the condition as a parameterized SQL fragment.
func (c Condition) Clause() string {
	switch c.Operator() {
	case OpRaw:
		return c.field
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", c.field, c.Operator())
	case OpIn:
		return fmt.Sprintf("%s IN ?", c.field)
	default:
		return fmt.Sprintf("%s %s ?", c.field, c.Operator())
	}
}

// String returns a readable representation.
func (c Condition) String() string {
	switch c.Operator() {
	case OpIsNull, OpIsNotNull:
		return c.Clause()
	case OpRaw:
		return fmt.Sprintf("%s %v", c.field, c.value)
	default:
		return fmt.Sprintf("%s %s %v", c.field, c.Operator(), c.value)
	}
}

// Order represents a sort specification.
type Order struct {
	field     string
	ascending bool
}

// Field returns the order field name.
func (o Order) Field() string { return o.field }

// Ascending returns true for ASC, false for DESC.
func (o Order) Ascending() bool { return o.ascending }

// WithCondition adds a field = value equality condition.
// Domain packages use this to define their own typed options.
func WithCondition(field string, value any) Option {
	return WithConditionOp(field, OpEqual, value)
}

// WithConditionIn adds a field IN (values) condition.
func WithConditionIn(field string, values any) Option {
	return WithConditionOp(field, OpIn, values)
}

// WithConditionOp adds a condition with an explicit operator.
func WithConditionOp(field string, op Operator, value any) Option {
	return func(q Query) Query {
		q.conditions = append(q.conditions, Condition{field: field, op: op, value: value})
		return q
	}
}

// WithWhere adds a raw parameterized clause, for disjunctions the typed
// operators cannot express.
func WithWhere(clause string, args ...any) Option {
	return WithConditionOp(clause, OpRaw, args)
}

// WithID filters by the "id" column.
func WithID(id int64) Option {
	return WithCondition("id", id)
}

// WithIDIn filters by the "id" column using IN.
func WithIDIn(ids []int64) Option {
	return WithConditionIn("id", ids)
}

// WithUserID filters by the "user_id" column.
func WithUserID(id int64) Option {
	return WithCondition("user_id", id)
}

// WithLimit sets the maximum number of results.
func WithLimit(n int) Option {
	return func(q Query) Query {
		q.limit = n
		return q
	}
}

// WithOrderAsc adds ascending ordering on a field.
func WithOrderAsc(field string) Option {
	return func(q Query) Query {
		q.orders = append(q.orders, Order{field: field, ascending: true})
		return q
	}
}

// WithOrderDesc adds descending ordering on a field.
func WithOrderDesc(field string) Option {
	return func(q Query) Query {
		q.orders = append(q.orders, Order{field: field, ascending: false})
		return q
	}
}
