package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/genesysflow/go-fluentsql/contracts"
	"github.com/genesysflow/go-fluentsql/query"
)

// Connection wraps a *sql.DB as the query core's connection: it runs
// compiled SQL with positional bindings and supplies the grammar,
// processor, cache and paginator its builders consult.
type Connection struct {
	name      string
	driver    string
	db        *sql.DB
	grammar   contracts.Grammar
	processor contracts.Processor
	cache     contracts.Cache
	paginator contracts.PaginatorEnv
	logger    contracts.Logger
	err       error
}

// NewConnection creates a connection over an open database handle. The
// grammar and processor are chosen by driver; cache, paginator and
// logger may be nil.
func NewConnection(name, driver string, db *sql.DB, cacheStore contracts.Cache, paginator contracts.PaginatorEnv, logger contracts.Logger) *Connection {
	return &Connection{
		name:      name,
		driver:    driver,
		db:        db,
		grammar:   query.NewGrammar(driver),
		processor: query.NewProcessor(),
		cache:     cacheStore,
		paginator: paginator,
		logger:    logger,
	}
}

// Name returns the connection name.
func (c *Connection) Name() string {
	return c.name
}

// Driver returns the configured driver name.
func (c *Connection) Driver() string {
	return c.driver
}

// DB returns the underlying handle.
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Error returns the construction error of an error-state connection.
func (c *Connection) Error() error {
	return c.err
}

// Table starts a builder for the given table on this connection.
func (c *Connection) Table(table string) *query.Builder {
	return query.NewBuilder(c, c.grammar, c.processor).From(table)
}

// Query starts a builder on this connection with no table yet.
func (c *Connection) Query() *query.Builder {
	return query.NewBuilder(c, c.grammar, c.processor)
}

// Raw marks a SQL fragment as literal, bypassing binding.
func (c *Connection) Raw(value string) query.Expression {
	return query.Raw(value)
}

// CacheManager returns the cache store selects memoize through.
func (c *Connection) CacheManager() contracts.Cache {
	return c.cache
}

// Paginator returns the paginator environment.
func (c *Connection) Paginator() contracts.PaginatorEnv {
	return c.paginator
}

// SetPaginator replaces the paginator environment, typically per
// request.
func (c *Connection) SetPaginator(env contracts.PaginatorEnv) {
	c.paginator = env
}

// Select runs a query and returns all rows as column maps.
func (c *Connection) Select(sqlQuery string, bindings []any) ([]map[string]any, error) {
	if c.err != nil {
		return nil, c.err
	}
	start := time.Now()
	rows, err := c.db.Query(sqlQuery, bindings...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, err := scanRows(rows)
	c.logQuery(sqlQuery, len(bindings), start)
	return result, err
}

// Insert runs an insert statement.
func (c *Connection) Insert(sqlQuery string, bindings []any) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	start := time.Now()
	_, err := c.db.Exec(sqlQuery, bindings...)
	c.logQuery(sqlQuery, len(bindings), start)
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertGetID runs an insert and reports the generated key. On
// PostgreSQL the compiled statement carries a returning clause and the
// key is scanned from it; elsewhere the driver's last-insert-id is used.
// A returning clause yielding no row (an ignored duplicate) reports nil.
func (c *Connection) InsertGetID(sqlQuery string, bindings []any) (any, error) {
	if c.err != nil {
		return nil, c.err
	}
	start := time.Now()
	defer func() { c.logQuery(sqlQuery, len(bindings), start) }()

	if isPostgres(c.driver) {
		var id int64
		err := c.db.QueryRow(sqlQuery, bindings...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return id, nil
	}

	result, err := c.db.Exec(sqlQuery, bindings...)
	if err != nil {
		return nil, err
	}
	return result.LastInsertId()
}

// Update runs an update statement and returns the affected count.
func (c *Connection) Update(sqlQuery string, bindings []any) (int64, error) {
	return c.affecting(sqlQuery, bindings)
}

// Delete runs a delete statement and returns the affected count.
func (c *Connection) Delete(sqlQuery string, bindings []any) (int64, error) {
	return c.affecting(sqlQuery, bindings)
}

func (c *Connection) affecting(sqlQuery string, bindings []any) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	start := time.Now()
	result, err := c.db.Exec(sqlQuery, bindings...)
	c.logQuery(sqlQuery, len(bindings), start)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Statement runs any other statement.
func (c *Connection) Statement(sqlQuery string, bindings []any) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	start := time.Now()
	_, err := c.db.Exec(sqlQuery, bindings...)
	c.logQuery(sqlQuery, len(bindings), start)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Transaction runs fn inside a transaction, committing on nil and
// rolling back on error or panic.
func (c *Connection) Transaction(fn func(tx *Tx) error) error {
	tx, err := c.BeginTransaction()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// BeginTransaction starts a transaction. The returned Tx is itself a
// connection: builders started from it execute inside the transaction.
func (c *Connection) BeginTransaction() (*Tx, error) {
	if c.err != nil {
		return nil, c.err
	}
	tx, err := c.db.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, conn: c}, nil
}

// Close closes the connection.
func (c *Connection) Close() error {
	if c.err != nil {
		return c.err
	}
	return c.db.Close()
}

// Ping verifies the connection is alive.
func (c *Connection) Ping() error {
	if c.err != nil {
		return c.err
	}
	return c.db.Ping()
}

func (c *Connection) logQuery(sqlQuery string, bindings int, start time.Time) {
	if c.logger == nil {
		return
	}
	c.logger.Debug("query executed",
		"connection", c.name,
		"sql", sqlQuery,
		"bindings", bindings,
		"duration", time.Since(start).String(),
	)
}

func isPostgres(driver string) bool {
	switch driver {
	case "pgsql", "postgres", "postgresql":
		return true
	}
	return false
}

// scanRows converts sql.Rows to a slice of column maps. Byte slices
// become strings so drivers that report text columns as []byte compare
// naturally.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// Tx is an active transaction speaking the same connection contract, so
// builders run inside it unchanged.
type Tx struct {
	tx   *sql.Tx
	conn *Connection
}

// Name returns the parent connection's name.
func (t *Tx) Name() string {
	return t.conn.name
}

// Table starts a builder for the given table inside the transaction.
func (t *Tx) Table(table string) *query.Builder {
	return query.NewBuilder(t, t.conn.grammar, t.conn.processor).From(table)
}

// CacheManager returns nil: transactional reads are not memoized.
func (t *Tx) CacheManager() contracts.Cache {
	return nil
}

// Paginator returns the parent connection's paginator environment.
func (t *Tx) Paginator() contracts.PaginatorEnv {
	return t.conn.paginator
}

// Select runs a query inside the transaction.
func (t *Tx) Select(sqlQuery string, bindings []any) ([]map[string]any, error) {
	rows, err := t.tx.Query(sqlQuery, bindings...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// Insert runs an insert inside the transaction.
func (t *Tx) Insert(sqlQuery string, bindings []any) (bool, error) {
	if _, err := t.tx.Exec(sqlQuery, bindings...); err != nil {
		return false, err
	}
	return true, nil
}

// InsertGetID runs an insert inside the transaction and reports the
// generated key.
func (t *Tx) InsertGetID(sqlQuery string, bindings []any) (any, error) {
	if isPostgres(t.conn.driver) {
		var id int64
		err := t.tx.QueryRow(sqlQuery, bindings...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return id, nil
	}
	result, err := t.tx.Exec(sqlQuery, bindings...)
	if err != nil {
		return nil, err
	}
	return result.LastInsertId()
}

// Update runs an update inside the transaction.
func (t *Tx) Update(sqlQuery string, bindings []any) (int64, error) {
	result, err := t.tx.Exec(sqlQuery, bindings...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete runs a delete inside the transaction.
func (t *Tx) Delete(sqlQuery string, bindings []any) (int64, error) {
	return t.Update(sqlQuery, bindings)
}

// Statement runs any other statement inside the transaction.
func (t *Tx) Statement(sqlQuery string, bindings []any) (bool, error) {
	if _, err := t.tx.Exec(sqlQuery, bindings...); err != nil {
		return false, err
	}
	return true, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

var _ contracts.Connection = (*Connection)(nil)
var _ contracts.Connection = (*Tx)(nil)
