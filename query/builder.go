// Package query provides the fluent, dialect-aware SQL query builder.
// A builder accumulates clause state through chained calls, appending
// bindable values to a flat vector as each clause is inserted; the
// grammar later emits placeholders in the same order.
package query

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/genesysflow/go-fluentsql/contracts"
)

// Errors surfaced by terminal operations. Fluent calls never fail
// mid-chain; malformed input is recorded on the builder and returned by
// the first terminal.
var (
	ErrUnknownMethod = errors.New("query: no such method")
	ErrBadArgument   = errors.New("query: bad argument")
	ErrNoTable       = errors.New("query: no table specified")
)

// operators is the known operator set. An unrecognized operator string in
// a two-value Where is treated as the value (operator shortcut).
var operators = map[string]struct{}{
	"=": {}, "<": {}, ">": {}, "<=": {}, ">=": {}, "<>": {}, "!=": {},
	"like": {}, "not like": {}, "between": {}, "ilike": {},
}

func isOperator(s string) bool {
	_, ok := operators[strings.ToLower(s)]
	return ok
}

// Where predicate variants.
const (
	whereBasic   = "basic"
	whereNested  = "nested"
	whereSub     = "sub"
	whereExists  = "exists"
	whereIn      = "in"
	whereInSub   = "inSub"
	whereNull    = "null"
	whereBetween = "between"
	whereRaw     = "raw"
)

// whereClause is one entry of the wheres sequence. whereType selects the
// variant; boolean is the conjunction with the preceding entry and is
// dropped by the grammar for the first one. Between carries no values:
// its two operands live only in the binding vector.
type whereClause struct {
	whereType string
	column    string
	operator  string
	value     any
	query     *Builder
	values    []any
	negated   bool
	sql       string
	boolean   string
}

type havingClause struct {
	havingType string // "basic" or "raw"
	column     string
	operator   string
	value      any
	sql        string
	boolean    string
}

type orderClause struct {
	column    string
	direction string
	sql       string
}

type unionClause struct {
	query *Builder
	all   bool
}

type aggregateClause struct {
	function string
	columns  []string
}

// Builder owns the clause IR of one query under construction. It is a
// single-owner mutable value: fluent calls mutate in place and return the
// receiver, and concurrent use of one builder is not supported.
type Builder struct {
	connection contracts.Connection
	grammar    contracts.Grammar
	processor  contracts.Processor

	table     string
	columns   []any // column selector strings and SelectRaw fragments
	distinct  bool
	joins     []*JoinClause
	wheres    []whereClause
	groups    []string
	havings   []havingClause
	orders    []orderClause
	limit     *int
	offset    *int
	unions    []unionClause
	aggregate *aggregateClause

	bindings []any

	cacheKey     string
	cacheMinutes *int

	err error
}

// NewBuilder creates a builder bound to a connection, grammar and
// processor. The triple is shared read-only across the builder tree.
func NewBuilder(conn contracts.Connection, grammar contracts.Grammar, processor contracts.Processor) *Builder {
	return &Builder{
		connection: conn,
		grammar:    grammar,
		processor:  processor,
	}
}

// NewQuery returns a fresh builder on the same connection, grammar and
// processor, with empty IR and bindings. Sub-selects, nested groups,
// exists clauses and union branches are built on such fresh scopes.
func (b *Builder) NewQuery() *Builder {
	return NewBuilder(b.connection, b.grammar, b.processor)
}

// Connection returns the connection the builder executes through.
func (b *Builder) Connection() contracts.Connection {
	return b.connection
}

// GetTable returns the target table name.
func (b *Builder) GetTable() string {
	return b.table
}

// GetBindings returns the accumulated binding vector in append order.
func (b *Builder) GetBindings() []any {
	return b.bindings
}

// Err returns the first deferred argument error, if any.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// mergeBindings appends a sub-builder's bindings at the point its
// predicate is inserted, keeping document order.
func (b *Builder) mergeBindings(sub *Builder) {
	b.bindings = append(b.bindings, sub.bindings...)
	if sub.err != nil {
		b.setErr(sub.err)
	}
}

// addBinding appends a value unless it is an Expression, which the
// grammar inlines instead.
func (b *Builder) addBinding(value any) {
	if _, ok := value.(Expression); ok {
		return
	}
	b.bindings = append(b.bindings, value)
}

// From sets the table the query targets.
func (b *Builder) From(table string) *Builder {
	b.table = table
	return b
}

// Select sets the columns to retrieve. With no arguments it selects
// everything.
func (b *Builder) Select(columns ...string) *Builder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	b.columns = columnList(columns)
	return b
}

// AddSelect appends columns to the current selection.
func (b *Builder) AddSelect(columns ...string) *Builder {
	b.columns = append(b.columns, columnList(columns)...)
	return b
}

// rawSelect is a select fragment added through SelectRaw. Unlike an
// Expression it may carry ? placeholders for its bindings, which
// numbered dialects renumber in place.
type rawSelect struct {
	sql string
}

// SelectRaw appends a raw select expression and its bindings. The
// expression is never identifier-quoted; its ? placeholders match the
// given bindings in order.
func (b *Builder) SelectRaw(expression string, bindings ...any) *Builder {
	b.columns = append(b.columns, rawSelect{sql: expression})
	b.bindings = append(b.bindings, bindings...)
	return b
}

func columnList(columns []string) []any {
	list := make([]any, len(columns))
	for i, column := range columns {
		list[i] = column
	}
	return list
}

// Distinct constrains the query to distinct results.
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Join adds an inner join. The arguments are either a column comparison
// (first, operator, second) or a single func(*JoinClause) building the
// on-predicates. Join bindings enter the flat binding vector at the point
// the join is added, so joins belong before wheres in a chain.
func (b *Builder) Join(table string, args ...any) *Builder {
	return b.join(joinInner, table, args)
}

// LeftJoin adds a left join.
func (b *Builder) LeftJoin(table string, args ...any) *Builder {
	return b.join(joinLeft, table, args)
}

// RightJoin adds a right join.
func (b *Builder) RightJoin(table string, args ...any) *Builder {
	return b.join(joinRight, table, args)
}

// CrossJoin adds a cross join.
func (b *Builder) CrossJoin(table string) *Builder {
	return b.join(joinCross, table, nil)
}

func (b *Builder) join(joinType, table string, args []any) *Builder {
	join := NewJoinClause(joinType, table)

	switch len(args) {
	case 0:
		if joinType != joinCross {
			b.setErr(fmt.Errorf("%w: join on %q needs conditions", ErrBadArgument, table))
		}
	case 1:
		fn, ok := args[0].(func(*JoinClause))
		if !ok {
			b.setErr(fmt.Errorf("%w: join argument must be func(*JoinClause)", ErrBadArgument))
			return b
		}
		fn(join)
	case 3:
		first, ok1 := args[0].(string)
		operator, ok2 := args[1].(string)
		second, ok3 := args[2].(string)
		if !ok1 || !ok2 || !ok3 {
			b.setErr(fmt.Errorf("%w: join conditions must be column strings", ErrBadArgument))
			return b
		}
		join.On(first, operator, second)
	default:
		b.setErr(fmt.Errorf("%w: join takes a callback or (first, operator, second)", ErrBadArgument))
		return b
	}

	b.joins = append(b.joins, join)
	b.bindings = append(b.bindings, join.bindings...)
	return b
}

// Where adds an and-conjoined where. It normalizes several shapes:
//
//	Where(func(q *Builder) {...})      nested boolean group
//	Where("votes", ">", 100)           column, operator, value
//	Where("name", "Alice")             operator shortcut, "=" implied
//	Where("email", "=", nil)           null check
//	Where("id", "=", callback)         value callback compiles a sub-select
//
// A lone value that is a recognized operator string is a null-check
// shorthand, negated for every operator but "=".
func (b *Builder) Where(column any, args ...any) *Builder {
	return b.addWhere(column, "and", args)
}

// OrWhere adds an or-conjoined where with the same normalization.
func (b *Builder) OrWhere(column any, args ...any) *Builder {
	return b.addWhere(column, "or", args)
}

func (b *Builder) addWhere(column any, boolean string, args []any) *Builder {
	if fn, ok := column.(func(*Builder)); ok {
		return b.whereNestedWith(fn, boolean)
	}

	col, ok := column.(string)
	if !ok {
		b.setErr(fmt.Errorf("%w: where column must be a string or callback", ErrBadArgument))
		return b
	}

	var operator string
	var value any

	switch len(args) {
	case 1:
		if op, isStr := args[0].(string); isStr && isOperator(op) {
			return b.whereNullTagged(col, boolean, strings.ToLower(op) != "=")
		}
		operator, value = "=", args[0]
	case 2:
		op, isStr := args[0].(string)
		if !isStr || !isOperator(op) {
			// Operator shortcut: the given operator is really the value.
			operator, value = "=", args[0]
		} else {
			operator, value = op, args[1]
		}
	default:
		b.setErr(fmt.Errorf("%w: where takes (value) or (operator, value)", ErrBadArgument))
		return b
	}

	if fn, isFn := value.(func(*Builder)); isFn {
		return b.whereSubquery(col, operator, fn, boolean)
	}
	if value == nil {
		return b.whereNullTagged(col, boolean, operator != "=")
	}

	b.wheres = append(b.wheres, whereClause{
		whereType: whereBasic,
		column:    col,
		operator:  operator,
		value:     value,
		boolean:   boolean,
	})
	b.addBinding(value)
	return b
}

// WhereNested runs fn on a fresh builder sharing the table and inlines
// the accumulated wheres as a parenthesized group. An empty group
// produces no clause and no bindings.
func (b *Builder) WhereNested(fn func(*Builder)) *Builder {
	return b.whereNestedWith(fn, "and")
}

// OrWhereNested adds an or-conjoined nested group.
func (b *Builder) OrWhereNested(fn func(*Builder)) *Builder {
	return b.whereNestedWith(fn, "or")
}

func (b *Builder) whereNestedWith(fn func(*Builder), boolean string) *Builder {
	sub := b.NewQuery().From(b.table)
	fn(sub)
	if len(sub.wheres) == 0 {
		return b
	}
	b.wheres = append(b.wheres, whereClause{
		whereType: whereNested,
		query:     sub,
		boolean:   boolean,
	})
	b.mergeBindings(sub)
	return b
}

func (b *Builder) whereSubquery(column, operator string, fn func(*Builder), boolean string) *Builder {
	sub := b.NewQuery()
	fn(sub)
	b.wheres = append(b.wheres, whereClause{
		whereType: whereSub,
		column:    column,
		operator:  operator,
		query:     sub,
		boolean:   boolean,
	})
	b.mergeBindings(sub)
	return b
}

// WhereExists runs fn on a fresh builder and adds an exists predicate.
func (b *Builder) WhereExists(fn func(*Builder)) *Builder {
	return b.whereExistsTagged(fn, "and", false)
}

// OrWhereExists adds an or-conjoined exists predicate.
func (b *Builder) OrWhereExists(fn func(*Builder)) *Builder {
	return b.whereExistsTagged(fn, "or", false)
}

// WhereNotExists adds a negated exists predicate.
func (b *Builder) WhereNotExists(fn func(*Builder)) *Builder {
	return b.whereExistsTagged(fn, "and", true)
}

// OrWhereNotExists adds an or-conjoined negated exists predicate.
func (b *Builder) OrWhereNotExists(fn func(*Builder)) *Builder {
	return b.whereExistsTagged(fn, "or", true)
}

func (b *Builder) whereExistsTagged(fn func(*Builder), boolean string, negated bool) *Builder {
	sub := b.NewQuery()
	fn(sub)
	b.wheres = append(b.wheres, whereClause{
		whereType: whereExists,
		query:     sub,
		negated:   negated,
		boolean:   boolean,
	})
	b.mergeBindings(sub)
	return b
}

// WhereIn constrains column to a value set. values is a slice of any
// element type, a func(*Builder) compiling a sub-select, or a pre-built
// sub-builder.
func (b *Builder) WhereIn(column string, values any) *Builder {
	return b.whereInTagged(column, values, "and", false)
}

// OrWhereIn adds an or-conjoined in predicate.
func (b *Builder) OrWhereIn(column string, values any) *Builder {
	return b.whereInTagged(column, values, "or", false)
}

// WhereNotIn constrains column to the complement of a value set.
func (b *Builder) WhereNotIn(column string, values any) *Builder {
	return b.whereInTagged(column, values, "and", true)
}

// OrWhereNotIn adds an or-conjoined not-in predicate.
func (b *Builder) OrWhereNotIn(column string, values any) *Builder {
	return b.whereInTagged(column, values, "or", true)
}

func (b *Builder) whereInTagged(column string, values any, boolean string, negated bool) *Builder {
	switch v := values.(type) {
	case func(*Builder):
		sub := b.NewQuery()
		v(sub)
		return b.whereInSubquery(column, sub, boolean, negated)
	case *Builder:
		return b.whereInSubquery(column, v, boolean, negated)
	}

	list, ok := toValueList(values)
	if !ok {
		b.setErr(fmt.Errorf("%w: where in values must be a slice or callback", ErrBadArgument))
		return b
	}
	b.wheres = append(b.wheres, whereClause{
		whereType: whereIn,
		column:    column,
		values:    list,
		negated:   negated,
		boolean:   boolean,
	})
	for _, value := range list {
		b.addBinding(value)
	}
	return b
}

// toValueList widens a slice of any element type to []any.
func toValueList(values any) ([]any, bool) {
	if list, ok := values.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(values)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func (b *Builder) whereInSubquery(column string, sub *Builder, boolean string, negated bool) *Builder {
	b.wheres = append(b.wheres, whereClause{
		whereType: whereInSub,
		column:    column,
		query:     sub,
		negated:   negated,
		boolean:   boolean,
	})
	b.mergeBindings(sub)
	return b
}

// WhereNull constrains column to null.
func (b *Builder) WhereNull(column string) *Builder {
	return b.whereNullTagged(column, "and", false)
}

// OrWhereNull adds an or-conjoined null check.
func (b *Builder) OrWhereNull(column string) *Builder {
	return b.whereNullTagged(column, "or", false)
}

// WhereNotNull constrains column to non-null.
func (b *Builder) WhereNotNull(column string) *Builder {
	return b.whereNullTagged(column, "and", true)
}

// OrWhereNotNull adds an or-conjoined non-null check.
func (b *Builder) OrWhereNotNull(column string) *Builder {
	return b.whereNullTagged(column, "or", true)
}

func (b *Builder) whereNullTagged(column, boolean string, negated bool) *Builder {
	b.wheres = append(b.wheres, whereClause{
		whereType: whereNull,
		column:    column,
		negated:   negated,
		boolean:   boolean,
	})
	return b
}

// WhereBetween constrains column to an inclusive range. values must hold
// exactly the low and high bound; both enter the binding vector in that
// order, and the predicate itself stores nothing else.
func (b *Builder) WhereBetween(column string, values []any) *Builder {
	return b.whereBetweenTagged(column, values, "and")
}

// OrWhereBetween adds an or-conjoined between predicate.
func (b *Builder) OrWhereBetween(column string, values []any) *Builder {
	return b.whereBetweenTagged(column, values, "or")
}

func (b *Builder) whereBetweenTagged(column string, values []any, boolean string) *Builder {
	if len(values) != 2 {
		b.setErr(fmt.Errorf("%w: where between needs exactly two values, got %d", ErrBadArgument, len(values)))
		return b
	}
	b.wheres = append(b.wheres, whereClause{
		whereType: whereBetween,
		column:    column,
		boolean:   boolean,
	})
	b.bindings = append(b.bindings, values[0], values[1])
	return b
}

// WhereRaw adds a raw predicate fragment with its bindings.
func (b *Builder) WhereRaw(sql string, bindings ...any) *Builder {
	return b.whereRawTagged(sql, bindings, "and")
}

// OrWhereRaw adds an or-conjoined raw predicate.
func (b *Builder) OrWhereRaw(sql string, bindings ...any) *Builder {
	return b.whereRawTagged(sql, bindings, "or")
}

func (b *Builder) whereRawTagged(sql string, bindings []any, boolean string) *Builder {
	b.wheres = append(b.wheres, whereClause{
		whereType: whereRaw,
		sql:       sql,
		boolean:   boolean,
	})
	b.bindings = append(b.bindings, bindings...)
	return b
}

// GroupBy appends grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groups = append(b.groups, columns...)
	return b
}

// Having adds a basic having predicate.
func (b *Builder) Having(column, operator string, value any) *Builder {
	b.havings = append(b.havings, havingClause{
		havingType: "basic",
		column:     column,
		operator:   operator,
		value:      value,
	})
	b.addBinding(value)
	return b
}

// HavingRaw adds a raw having fragment with its bindings.
func (b *Builder) HavingRaw(sql string, bindings ...any) *Builder {
	return b.havingRawTagged(sql, bindings, "and")
}

// OrHavingRaw adds an or-conjoined raw having fragment.
func (b *Builder) OrHavingRaw(sql string, bindings ...any) *Builder {
	return b.havingRawTagged(sql, bindings, "or")
}

func (b *Builder) havingRawTagged(sql string, bindings []any, boolean string) *Builder {
	b.havings = append(b.havings, havingClause{
		havingType: "raw",
		sql:        sql,
		boolean:    boolean,
	})
	b.bindings = append(b.bindings, bindings...)
	return b
}

// OrderBy appends an ordering; direction defaults to ascending and
// anything but "desc" orders ascending.
func (b *Builder) OrderBy(column string, direction ...string) *Builder {
	dir := "asc"
	if len(direction) > 0 && strings.EqualFold(direction[0], "desc") {
		dir = "desc"
	}
	b.orders = append(b.orders, orderClause{column: column, direction: dir})
	return b
}

// OrderByDesc appends a descending ordering.
func (b *Builder) OrderByDesc(column string) *Builder {
	return b.OrderBy(column, "desc")
}

// OrderByRaw appends a raw ordering fragment with its bindings.
func (b *Builder) OrderByRaw(sql string, bindings ...any) *Builder {
	b.orders = append(b.orders, orderClause{sql: sql})
	b.bindings = append(b.bindings, bindings...)
	return b
}

// Take limits the result set. Non-positive values leave the limit
// unchanged.
func (b *Builder) Take(n int) *Builder {
	if n > 0 {
		b.limit = &n
	}
	return b
}

// Limit is an alias for Take.
func (b *Builder) Limit(n int) *Builder {
	return b.Take(n)
}

// Skip sets the result offset, clamped at zero.
func (b *Builder) Skip(n int) *Builder {
	if n < 0 {
		n = 0
	}
	b.offset = &n
	return b
}

// Offset is an alias for Skip.
func (b *Builder) Offset(n int) *Builder {
	return b.Skip(n)
}

// ForPage constrains the query to the given page of perPage rows.
func (b *Builder) ForPage(page, perPage int) *Builder {
	return b.Skip((page - 1) * perPage).Take(perPage)
}

// Union appends a union branch. query is a pre-built builder or a
// func(*Builder) run on a fresh one; its bindings merge at append.
func (b *Builder) Union(query any) *Builder {
	return b.union(query, false)
}

// UnionAll appends a union all branch.
func (b *Builder) UnionAll(query any) *Builder {
	return b.union(query, true)
}

func (b *Builder) union(query any, all bool) *Builder {
	var sub *Builder
	switch q := query.(type) {
	case *Builder:
		sub = q
	case func(*Builder):
		sub = b.NewQuery()
		q(sub)
	default:
		b.setErr(fmt.Errorf("%w: union takes a builder or callback", ErrBadArgument))
		return b
	}
	b.unions = append(b.unions, unionClause{query: sub, all: all})
	b.mergeBindings(sub)
	return b
}

// Remember memoizes the next select for the given number of minutes. An
// explicit key overrides the derived one.
func (b *Builder) Remember(minutes int, key ...string) *Builder {
	b.cacheMinutes = &minutes
	if len(key) > 0 {
		b.cacheKey = key[0]
	}
	return b
}

// Clone returns an independent copy of the builder sharing the
// connection, grammar and processor. Sub-builders inside predicates are
// shared; they are never mutated after insertion.
func (b *Builder) Clone() *Builder {
	clone := *b
	clone.columns = append([]any(nil), b.columns...)
	clone.joins = append([]*JoinClause(nil), b.joins...)
	clone.wheres = append([]whereClause(nil), b.wheres...)
	clone.groups = append([]string(nil), b.groups...)
	clone.havings = append([]havingClause(nil), b.havings...)
	clone.orders = append([]orderClause(nil), b.orders...)
	clone.unions = append([]unionClause(nil), b.unions...)
	clone.bindings = append([]any(nil), b.bindings...)
	if b.limit != nil {
		v := *b.limit
		clone.limit = &v
	}
	if b.offset != nil {
		v := *b.offset
		clone.offset = &v
	}
	if b.cacheMinutes != nil {
		v := *b.cacheMinutes
		clone.cacheMinutes = &v
	}
	if b.aggregate != nil {
		v := *b.aggregate
		clone.aggregate = &v
	}
	return &clone
}
