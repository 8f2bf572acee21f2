package query

import (
	"github.com/genesysflow/go-fluentsql/contracts"
)

// SQLiteGrammar speaks SQLite: "insert or ignore" and a truncate that
// deletes rows and resets the autoincrement sequence, since SQLite has
// no truncate statement.
type SQLiteGrammar struct {
	Grammar
}

// NewSQLiteGrammar creates the SQLite grammar.
func NewSQLiteGrammar() *SQLiteGrammar {
	return &SQLiteGrammar{Grammar{quote: '"'}}
}

// CompileInsertIgnore compiles SQLite's or-ignore insert form.
func (g *SQLiteGrammar) CompileInsertIgnore(builder contracts.QueryBuilder, records []map[string]any) string {
	return g.compileInsertVerb(builder.(*Builder), records, "insert or ignore into", &argCounter{})
}

// CompileInsertIgnoreGetID compiles an or-ignore insert; the generated
// key is read back through the connection's last-insert-id.
func (g *SQLiteGrammar) CompileInsertIgnoreGetID(builder contracts.QueryBuilder, values map[string]any, sequence string) string {
	return g.CompileInsertIgnore(builder, []map[string]any{values})
}

// CompileTruncate empties the table and resets its sequence.
func (g *SQLiteGrammar) CompileTruncate(builder contracts.QueryBuilder) []contracts.SQLStatement {
	b := builder.(*Builder)
	return []contracts.SQLStatement{
		{SQL: "delete from sqlite_sequence where name = ?", Bindings: []any{b.table}},
		{SQL: "delete from " + g.Wrap(b.table)},
	}
}
