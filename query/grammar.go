package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/genesysflow/go-fluentsql/contracts"
)

// NewGrammar returns the grammar for the given driver name. Unknown
// drivers get the base grammar, which speaks standard double-quoted SQL.
func NewGrammar(driver string) contracts.Grammar {
	switch driver {
	case "mysql":
		return NewMySQLGrammar()
	case "pgsql", "postgres", "postgresql":
		return NewPostgresGrammar()
	case "sqlite", "sqlite3":
		return NewSQLiteGrammar()
	default:
		return &Grammar{quote: '"'}
	}
}

// Grammar compiles builder IR into SQL. It is stateless and pure:
// compilation never mutates the builder and emits one placeholder per
// accumulated binding, in binding order. Dialect grammars embed it and
// override what differs.
type Grammar struct {
	quote    byte
	numbered bool // emit $1..$n instead of ?
}

// argCounter numbers placeholders as they are emitted, so only runes the
// compiler itself produced are ever numbered; a literal ? inside an
// inlined expression can never steal a sequence slot. Sub-query
// recursion shares the counter of the enclosing compilation.
type argCounter struct {
	n int
}

// placeholder emits the next placeholder.
func (g *Grammar) placeholder(ac *argCounter) string {
	if !g.numbered {
		return "?"
	}
	ac.n++
	return "$" + strconv.Itoa(ac.n)
}

// parameter emits the placeholder for one value, or the value itself
// when it is an Expression.
func (g *Grammar) parameter(value any, ac *argCounter) string {
	if expr, ok := value.(Expression); ok {
		return expr.Value()
	}
	return g.placeholder(ac)
}

// parameterize emits comma-joined placeholders for a value list.
func (g *Grammar) parameterize(values []any, ac *argCounter) string {
	params := make([]string, len(values))
	for i, value := range values {
		params[i] = g.parameter(value, ac)
	}
	return strings.Join(params, ", ")
}

// rawFragment renders a caller-supplied raw fragment whose contract is
// ? placeholders matching its bindings. On numbered dialects each ?
// becomes the next $N and ?? escapes a literal ?; on ? dialects the
// fragment passes through unchanged.
func (g *Grammar) rawFragment(sql string, ac *argCounter) string {
	if !g.numbered || !strings.ContainsRune(sql, '?') {
		return sql
	}
	var out strings.Builder
	out.Grow(len(sql) + 8)
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			out.WriteByte(sql[i])
			continue
		}
		if i+1 < len(sql) && sql[i+1] == '?' {
			out.WriteByte('?')
			i++
			continue
		}
		out.WriteString(g.placeholder(ac))
	}
	return out.String()
}

// Wrap quotes an identifier. "*" and anything containing parentheses
// pass through raw; dotted identifiers are wrapped per segment; a
// trailing " as alias" wraps both sides.
func (g *Grammar) Wrap(value string) string {
	if idx := strings.Index(strings.ToLower(value), " as "); idx >= 0 {
		return g.Wrap(value[:idx]) + " as " + g.wrapValue(value[idx+4:])
	}
	if strings.ContainsRune(value, '(') {
		return value
	}
	segments := strings.Split(value, ".")
	for i, segment := range segments {
		segments[i] = g.wrapValue(segment)
	}
	return strings.Join(segments, ".")
}

func (g *Grammar) wrapValue(value string) string {
	if value == "*" {
		return value
	}
	q := string(g.quote)
	return q + strings.ReplaceAll(value, q, q+q) + q
}

// columnize wraps and comma-joins a column list.
func (g *Grammar) columnize(columns []string) string {
	wrapped := make([]string, len(columns))
	for i, column := range columns {
		wrapped[i] = g.Wrap(column)
	}
	return strings.Join(wrapped, ", ")
}

// columnizeSelectors renders a selector list that may mix column names
// with raw select fragments and expressions.
func (g *Grammar) columnizeSelectors(columns []any, ac *argCounter) string {
	wrapped := make([]string, len(columns))
	for i, column := range columns {
		switch c := column.(type) {
		case rawSelect:
			wrapped[i] = g.rawFragment(c.sql, ac)
		case Expression:
			wrapped[i] = c.Value()
		case string:
			wrapped[i] = g.Wrap(c)
		default:
			wrapped[i] = g.Wrap(fmt.Sprint(c))
		}
	}
	return strings.Join(wrapped, ", ")
}

// CompileSelect serializes the select IR. Sections are traversed in
// canonical order and unset sections are omitted; an aggregate displaces
// ordinary column selection.
func (g *Grammar) CompileSelect(builder contracts.QueryBuilder) string {
	return g.compileSelect(builder.(*Builder), &argCounter{})
}

func (g *Grammar) compileSelect(b *Builder, ac *argCounter) string {
	parts := make([]string, 0, 10)
	if b.aggregate != nil {
		parts = append(parts, g.compileAggregate(b))
	} else {
		parts = append(parts, g.compileColumns(b, ac))
	}
	parts = append(parts, "from "+g.Wrap(b.table))

	if s := g.compileJoins(b, ac); s != "" {
		parts = append(parts, s)
	}
	if s := g.compileWheres(b, ac); s != "" {
		parts = append(parts, s)
	}
	if len(b.groups) > 0 {
		parts = append(parts, "group by "+g.columnize(b.groups))
	}
	if s := g.compileHavings(b, ac); s != "" {
		parts = append(parts, s)
	}
	if s := g.compileOrders(b, ac); s != "" {
		parts = append(parts, s)
	}
	if b.limit != nil {
		parts = append(parts, fmt.Sprintf("limit %d", *b.limit))
	}
	if b.offset != nil {
		parts = append(parts, fmt.Sprintf("offset %d", *b.offset))
	}
	for _, union := range b.unions {
		glue := "union"
		if union.all {
			glue = "union all"
		}
		parts = append(parts, glue+" "+g.compileSelect(union.query, ac))
	}

	return strings.Join(parts, " ")
}

func (g *Grammar) compileColumns(b *Builder, ac *argCounter) string {
	sel := "select "
	if b.distinct {
		sel += "distinct "
	}
	if len(b.columns) == 0 {
		return sel + "*"
	}
	return sel + g.columnizeSelectors(b.columns, ac)
}

func (g *Grammar) compileAggregate(b *Builder) string {
	column := g.columnize(b.aggregate.columns)
	if b.distinct && column != "*" {
		column = "distinct " + column
	}
	return "select " + b.aggregate.function + "(" + column + ") as aggregate"
}

func (g *Grammar) compileJoins(b *Builder, ac *argCounter) string {
	if len(b.joins) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.joins))
	for _, join := range b.joins {
		if join.joinType == joinCross {
			parts = append(parts, "cross join "+g.Wrap(join.table))
			continue
		}
		conds := make([]string, 0, len(join.conditions))
		for i, c := range join.conditions {
			var s string
			if c.where {
				s = g.Wrap(c.first) + " " + c.operator + " " + g.parameter(c.value, ac)
			} else {
				s = g.Wrap(c.first) + " " + c.operator + " " + g.Wrap(c.second)
			}
			if i > 0 {
				s = c.boolean + " " + s
			}
			conds = append(conds, s)
		}
		parts = append(parts, join.joinType+" join "+g.Wrap(join.table)+" on "+strings.Join(conds, " "))
	}
	return strings.Join(parts, " ")
}

func (g *Grammar) compileWheres(b *Builder, ac *argCounter) string {
	conditions := g.whereConditions(b, ac)
	if conditions == "" {
		return ""
	}
	return "where " + conditions
}

// whereConditions renders the predicate list without the "where"
// keyword, so nested groups can reuse it inside parentheses. The first
// predicate's connector is dropped.
func (g *Grammar) whereConditions(b *Builder, ac *argCounter) string {
	if len(b.wheres) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.wheres))
	for i, w := range b.wheres {
		s := g.compileWhere(w, ac)
		if i > 0 {
			s = w.boolean + " " + s
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// compileWhere dispatches on the predicate variant. Sub-builders are
// compiled recursively for their SQL only; their bindings were merged
// into the parent when the predicate was inserted.
func (g *Grammar) compileWhere(w whereClause, ac *argCounter) string {
	switch w.whereType {
	case whereBasic:
		return g.Wrap(w.column) + " " + w.operator + " " + g.parameter(w.value, ac)
	case whereNested:
		return "(" + g.whereConditions(w.query, ac) + ")"
	case whereSub:
		return g.Wrap(w.column) + " " + w.operator + " (" + g.compileSelect(w.query, ac) + ")"
	case whereExists:
		if w.negated {
			return "not exists (" + g.compileSelect(w.query, ac) + ")"
		}
		return "exists (" + g.compileSelect(w.query, ac) + ")"
	case whereIn:
		if len(w.values) == 0 {
			// An empty set can match nothing; "in ()" is not SQL.
			if w.negated {
				return "1 = 1"
			}
			return "0 = 1"
		}
		if w.negated {
			return g.Wrap(w.column) + " not in (" + g.parameterize(w.values, ac) + ")"
		}
		return g.Wrap(w.column) + " in (" + g.parameterize(w.values, ac) + ")"
	case whereInSub:
		if w.negated {
			return g.Wrap(w.column) + " not in (" + g.compileSelect(w.query, ac) + ")"
		}
		return g.Wrap(w.column) + " in (" + g.compileSelect(w.query, ac) + ")"
	case whereNull:
		if w.negated {
			return g.Wrap(w.column) + " is not null"
		}
		return g.Wrap(w.column) + " is null"
	case whereBetween:
		// Both operands live in the binding vector only.
		return g.Wrap(w.column) + " between " + g.placeholder(ac) + " and " + g.placeholder(ac)
	case whereRaw:
		return g.rawFragment(w.sql, ac)
	}
	return ""
}

func (g *Grammar) compileHavings(b *Builder, ac *argCounter) string {
	if len(b.havings) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.havings))
	for i, h := range b.havings {
		var s, boolean string
		if h.havingType == "raw" {
			s, boolean = g.rawFragment(h.sql, ac), h.boolean
		} else {
			s, boolean = g.Wrap(h.column)+" "+h.operator+" "+g.parameter(h.value, ac), "and"
		}
		if i > 0 {
			s = boolean + " " + s
		}
		parts = append(parts, s)
	}
	return "having " + strings.Join(parts, " ")
}

func (g *Grammar) compileOrders(b *Builder, ac *argCounter) string {
	if len(b.orders) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.orders))
	for _, order := range b.orders {
		if order.sql != "" {
			parts = append(parts, g.rawFragment(order.sql, ac))
			continue
		}
		parts = append(parts, g.Wrap(order.column)+" "+order.direction)
	}
	return "order by " + strings.Join(parts, ", ")
}

// sortedColumns returns a record's column names in the deterministic
// order both the compiler and the builder's binding flattener use.
func sortedColumns(record map[string]any) []string {
	columns := make([]string, 0, len(record))
	for column := range record {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// CompileInsert compiles a multi-row insert. Every record is flattened
// in the first record's sorted column order, matching the builder's
// binding layout.
func (g *Grammar) CompileInsert(builder contracts.QueryBuilder, records []map[string]any) string {
	return g.compileInsertVerb(builder.(*Builder), records, "insert into", &argCounter{})
}

func (g *Grammar) compileInsertVerb(b *Builder, records []map[string]any, verb string, ac *argCounter) string {
	columns := sortedColumns(records[0])

	rows := make([]string, len(records))
	for i, record := range records {
		values := make([]any, len(columns))
		for j, column := range columns {
			values[j] = record[column]
		}
		rows[i] = "(" + g.parameterize(values, ac) + ")"
	}

	return verb + " " + g.Wrap(b.table) +
		" (" + g.columnize(columns) + ") values " + strings.Join(rows, ", ")
}

// CompileInsertGetID compiles a single-record insert; the base form
// relies on the connection reporting the last inserted id.
func (g *Grammar) CompileInsertGetID(builder contracts.QueryBuilder, values map[string]any, sequence string) string {
	return g.CompileInsert(builder, []map[string]any{values})
}

// CompileInsertIgnore compiles the duplicate-ignoring insert form.
func (g *Grammar) CompileInsertIgnore(builder contracts.QueryBuilder, records []map[string]any) string {
	return g.compileInsertVerb(builder.(*Builder), records, "insert ignore into", &argCounter{})
}

// CompileInsertIgnoreGetID combines the ignore form with key reporting.
func (g *Grammar) CompileInsertIgnoreGetID(builder contracts.QueryBuilder, values map[string]any, sequence string) string {
	return g.CompileInsertIgnore(builder, []map[string]any{values})
}

// CompileUpdate compiles an update of the given column/value set. The
// sections come in join, set, where order; the builder lays update
// bindings out the same way. Set clauses use sorted column order,
// matching the binding flattener; expression values are inlined.
func (g *Grammar) CompileUpdate(builder contracts.QueryBuilder, values map[string]any) string {
	b := builder.(*Builder)
	ac := &argCounter{}

	sql := "update " + g.Wrap(b.table)
	if s := g.compileJoins(b, ac); s != "" {
		sql += " " + s
	}

	columns := sortedColumns(values)
	sets := make([]string, len(columns))
	for i, column := range columns {
		sets[i] = g.Wrap(column) + " = " + g.parameter(values[column], ac)
	}
	sql += " set " + strings.Join(sets, ", ")

	if s := g.compileWheres(b, ac); s != "" {
		sql += " " + s
	}
	return sql
}

// CompileDelete compiles a delete constrained by the builder's wheres.
func (g *Grammar) CompileDelete(builder contracts.QueryBuilder) string {
	b := builder.(*Builder)
	sql := "delete from " + g.Wrap(b.table)
	if s := g.compileWheres(b, &argCounter{}); s != "" {
		sql += " " + s
	}
	return sql
}

// CompileTruncate compiles the statements emptying the table.
func (g *Grammar) CompileTruncate(builder contracts.QueryBuilder) []contracts.SQLStatement {
	b := builder.(*Builder)
	return []contracts.SQLStatement{{SQL: "truncate " + g.Wrap(b.table)}}
}
