package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/hashstructure"
	"github.com/spf13/cast"

	"github.com/genesysflow/go-fluentsql/contracts"
)

// preflight gates every terminal operation: deferred argument errors and
// a missing table surface here rather than mid-chain.
func (b *Builder) preflight() error {
	if b.err != nil {
		return b.err
	}
	if b.table == "" {
		return ErrNoTable
	}
	return nil
}

// ToSQL compiles the select without executing it. The returned bindings
// are cleaned of expressions and safe to hand to a driver.
func (b *Builder) ToSQL() (string, []any) {
	return b.grammar.CompileSelect(b), CleanBindings(b.bindings)
}

// Get executes the query and returns all rows. When no columns were
// selected yet, the given ones apply. A pending cache directive routes
// the select through the connection's cache manager.
func (b *Builder) Get(columns ...string) ([]map[string]any, error) {
	if err := b.preflight(); err != nil {
		return nil, err
	}
	if b.cacheMinutes != nil {
		return b.getCached(columns)
	}
	return b.getFresh(columns)
}

func (b *Builder) getFresh(columns []string) ([]map[string]any, error) {
	if b.columns == nil && len(columns) > 0 {
		b.columns = columnList(columns)
	}
	sql, bindings := b.ToSQL()
	rows, err := b.connection.Select(sql, bindings)
	if err != nil {
		return nil, err
	}
	return b.processor.ProcessSelect(b, rows)
}

func (b *Builder) getCached(columns []string) ([]map[string]any, error) {
	store := b.connection.CacheManager()
	if store == nil {
		return b.getFresh(columns)
	}

	key := b.cacheKey
	if key == "" {
		key = b.deriveCacheKey()
	}
	ttl := time.Duration(*b.cacheMinutes) * time.Minute

	value, err := store.Remember(key, ttl, func() (any, error) {
		return b.getFresh(columns)
	})
	if err != nil {
		return nil, err
	}
	rows, ok := value.([]map[string]any)
	if !ok {
		// A foreign value under our key; recompute rather than fail.
		return b.getFresh(columns)
	}
	return rows, nil
}

// deriveCacheKey hashes the connection name, compiled SQL and bindings
// into a deterministic key.
func (b *Builder) deriveCacheKey() string {
	sql, bindings := b.ToSQL()
	h, err := hashstructure.Hash(struct {
		Name     string
		SQL      string
		Bindings []any
	}{b.connection.Name(), sql, bindings}, nil)
	if err != nil {
		return fmt.Sprintf("%s|%s|%v", b.connection.Name(), sql, bindings)
	}
	return strconv.FormatUint(h, 16)
}

// First returns the first row, or nil when the result set is empty.
func (b *Builder) First(columns ...string) (map[string]any, error) {
	rows, err := b.Take(1).Get(columns...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Find retrieves a record by its id column.
func (b *Builder) Find(id any, columns ...string) (map[string]any, error) {
	return b.Where("id", "=", id).First(columns...)
}

// Value returns a single column of the first row, or nil.
func (b *Builder) Value(column string) (any, error) {
	return b.Pluck(column)
}

// Pluck returns the named column of the first row, or nil when the
// result set is empty.
func (b *Builder) Pluck(column string) (any, error) {
	row, err := b.First(column)
	if err != nil || row == nil {
		return nil, err
	}
	return row[fieldName(column)], nil
}

// Lists returns the ordered values of one column across all rows.
func (b *Builder) Lists(column string) ([]any, error) {
	rows, err := b.Get(column)
	if err != nil {
		return nil, err
	}
	field := fieldName(column)
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, row[field])
	}
	return values, nil
}

// ListsKeyed returns column values keyed by another column's values.
func (b *Builder) ListsKeyed(column, key string) (map[any]any, error) {
	rows, err := b.Get(column, key)
	if err != nil {
		return nil, err
	}
	field, keyField := fieldName(column), fieldName(key)
	values := make(map[any]any, len(rows))
	for _, row := range rows {
		values[row[keyField]] = row[field]
	}
	return values, nil
}

// fieldName reduces a dotted selector to the field name rows carry.
func fieldName(column string) string {
	if i := strings.LastIndex(column, "."); i >= 0 {
		return column[i+1:]
	}
	return column
}

// aggregateValue runs the query with an aggregate displacing the column
// selection, then restores both so later compilations are unaffected.
func (b *Builder) aggregateValue(function string, columns []string) (any, error) {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	previous := b.columns
	b.aggregate = &aggregateClause{function: function, columns: columns}

	rows, err := b.Get(columns...)

	b.aggregate = nil
	b.columns = previous

	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0]["aggregate"], nil
}

// Count returns the number of matching rows.
func (b *Builder) Count(columns ...string) (int64, error) {
	value, err := b.aggregateValue("count", columns)
	if err != nil {
		return 0, err
	}
	return cast.ToInt64E(value)
}

// Min returns the minimum value of a column, or nil on an empty set.
func (b *Builder) Min(column string) (any, error) {
	return b.aggregateValue("min", []string{column})
}

// Max returns the maximum value of a column, or nil on an empty set.
func (b *Builder) Max(column string) (any, error) {
	return b.aggregateValue("max", []string{column})
}

// Sum returns the sum of a column; an empty set sums to zero.
func (b *Builder) Sum(column string) (float64, error) {
	value, err := b.aggregateValue("sum", []string{column})
	if err != nil {
		return 0, err
	}
	return cast.ToFloat64E(value)
}

// Avg returns the average of a column; an empty set averages to zero.
func (b *Builder) Avg(column string) (float64, error) {
	value, err := b.aggregateValue("avg", []string{column})
	if err != nil {
		return 0, err
	}
	return cast.ToFloat64E(value)
}

// Exists reports whether any row matches.
func (b *Builder) Exists() (bool, error) {
	count, err := b.Count()
	return count > 0, err
}

// DoesntExist reports whether no row matches.
func (b *Builder) DoesntExist() (bool, error) {
	exists, err := b.Exists()
	return !exists, err
}

// Paginate returns one page of results with the total count. Grouped
// queries cannot be counted with a plain count aggregate, so they run in
// full and are sliced in memory; the caller opted into that by grouping.
func (b *Builder) Paginate(perPage int, columns ...string) (contracts.Paginator, error) {
	if err := b.preflight(); err != nil {
		return nil, err
	}
	env := b.connection.Paginator()
	if env == nil {
		return nil, fmt.Errorf("query: connection supplies no paginator environment")
	}
	if len(b.groups) > 0 {
		return b.groupedPaginate(env, perPage, columns)
	}
	return b.ungroupedPaginate(env, perPage, columns)
}

func (b *Builder) ungroupedPaginate(env contracts.PaginatorEnv, perPage int, columns []string) (contracts.Paginator, error) {
	total, err := b.PaginationCount()
	if err != nil {
		return nil, err
	}
	page := env.CurrentPage()
	rows, err := b.ForPage(page, perPage).Get(columns...)
	if err != nil {
		return nil, err
	}
	return env.Make(rows, total, perPage), nil
}

func (b *Builder) groupedPaginate(env contracts.PaginatorEnv, perPage int, columns []string) (contracts.Paginator, error) {
	rows, err := b.Get(columns...)
	if err != nil {
		return nil, err
	}
	page := env.CurrentPage()
	total := int64(len(rows))

	start := (page - 1) * perPage
	if start > len(rows) {
		start = len(rows)
	}
	end := start + perPage
	if end > len(rows) {
		end = len(rows)
	}
	return env.Make(rows[start:end], total, perPage), nil
}

// PaginationCount counts the matching rows with orderings suppressed;
// they cannot change the count and some engines reject unselected order
// columns inside a count. The orders are restored before returning.
func (b *Builder) PaginationCount() (int64, error) {
	orders := b.orders
	b.orders = nil
	total, err := b.Count()
	b.orders = orders
	return total, err
}

// flattenRecords lays out record values in sorted column order, one
// record after another, matching the insert compilation.
func flattenRecords(records []map[string]any) []any {
	columns := sortedColumns(records[0])
	bindings := make([]any, 0, len(records)*len(columns))
	for _, record := range records {
		for _, column := range columns {
			bindings = append(bindings, record[column])
		}
	}
	return bindings
}

// Insert inserts one or more records in a single statement. All records
// must share the first one's column set.
func (b *Builder) Insert(records ...map[string]any) (bool, error) {
	if err := b.preflight(); err != nil {
		return false, err
	}
	if len(records) == 0 {
		return true, nil
	}
	sql := b.grammar.CompileInsert(b, records)
	return b.connection.Insert(sql, CleanBindings(flattenRecords(records)))
}

// InsertGetID inserts a record and returns the generated key, by default
// the id column.
func (b *Builder) InsertGetID(values map[string]any, sequence ...string) (int64, error) {
	return b.insertGetID(values, sequence, false)
}

// InsertIgnore inserts records with the dialect's duplicate-ignoring
// form.
func (b *Builder) InsertIgnore(records ...map[string]any) (bool, error) {
	if err := b.preflight(); err != nil {
		return false, err
	}
	if len(records) == 0 {
		return true, nil
	}
	sql := b.grammar.CompileInsertIgnore(b, records)
	return b.connection.Insert(sql, CleanBindings(flattenRecords(records)))
}

// InsertIgnoreGetID combines InsertIgnore with generated key reporting.
// On PostgreSQL a skipped duplicate reports key zero; the other dialects
// report the driver's last-insert-id, which an ignored row does not reset.
func (b *Builder) InsertIgnoreGetID(values map[string]any, sequence ...string) (int64, error) {
	return b.insertGetID(values, sequence, true)
}

func (b *Builder) insertGetID(values map[string]any, sequence []string, ignore bool) (int64, error) {
	if err := b.preflight(); err != nil {
		return 0, err
	}
	seq := "id"
	if len(sequence) > 0 && sequence[0] != "" {
		seq = sequence[0]
	}
	var sql string
	if ignore {
		sql = b.grammar.CompileInsertIgnoreGetID(b, values, seq)
	} else {
		sql = b.grammar.CompileInsertGetID(b, values, seq)
	}
	bindings := CleanBindings(flattenRecords([]map[string]any{values}))
	return b.processor.ProcessInsertGetID(b, sql, bindings, seq)
}

// Update sets the given columns on all matching rows and returns the
// affected count. The compiled text runs join, set, where; the binding
// vector is laid out the same way: any join condition values first, then
// the update values in sorted column order, then the remaining
// accumulated bindings. Joins must have been added before wheres, the
// same premise the flat binding vector rests on. Expression values are
// inlined, not bound.
func (b *Builder) Update(values map[string]any) (int64, error) {
	if err := b.preflight(); err != nil {
		return 0, err
	}
	updates := make([]any, 0, len(values))
	for _, column := range sortedColumns(values) {
		updates = append(updates, values[column])
	}

	joinCount := 0
	for _, join := range b.joins {
		joinCount += len(join.bindings)
	}
	if joinCount > len(b.bindings) {
		joinCount = len(b.bindings)
	}

	bindings := make([]any, 0, len(b.bindings)+len(updates))
	bindings = append(bindings, b.bindings[:joinCount]...)
	bindings = append(bindings, updates...)
	bindings = append(bindings, b.bindings[joinCount:]...)

	sql := b.grammar.CompileUpdate(b, values)
	return b.connection.Update(sql, CleanBindings(bindings))
}

// Increment adds amount to a column, optionally updating extra columns
// in the same statement.
func (b *Builder) Increment(column string, amount int, extra ...map[string]any) (int64, error) {
	return b.stepColumn(column, "+", amount, extra)
}

// Decrement subtracts amount from a column.
func (b *Builder) Decrement(column string, amount int, extra ...map[string]any) (int64, error) {
	return b.stepColumn(column, "-", amount, extra)
}

func (b *Builder) stepColumn(column, op string, amount int, extra []map[string]any) (int64, error) {
	wrapped := b.grammar.Wrap(column)
	values := map[string]any{
		column: Raw(fmt.Sprintf("%s %s %d", wrapped, op, amount)),
	}
	for _, m := range extra {
		for k, v := range m {
			values[k] = v
		}
	}
	return b.Update(values)
}

// Delete removes all matching rows; an id constrains the delete to that
// record first.
func (b *Builder) Delete(id ...any) (int64, error) {
	if len(id) > 0 && id[0] != nil {
		b.Where("id", "=", id[0])
	}
	if err := b.preflight(); err != nil {
		return 0, err
	}
	sql := b.grammar.CompileDelete(b)
	return b.connection.Delete(sql, CleanBindings(b.bindings))
}

// Truncate empties the table, running every statement the grammar
// produced in order.
func (b *Builder) Truncate() error {
	if err := b.preflight(); err != nil {
		return err
	}
	for _, stmt := range b.grammar.CompileTruncate(b) {
		if _, err := b.connection.Statement(stmt.SQL, stmt.Bindings); err != nil {
			return err
		}
	}
	return nil
}
