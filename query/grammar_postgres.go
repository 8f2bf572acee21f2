package query

import (
	"github.com/genesysflow/go-fluentsql/contracts"
)

// PostgresGrammar speaks PostgreSQL: $N placeholders, returning clauses
// for generated keys, and on-conflict for the ignore forms. Placeholders
// are numbered as they are emitted, so literal ? runes inside inlined
// expressions are never renumbered.
type PostgresGrammar struct {
	Grammar
}

// NewPostgresGrammar creates the PostgreSQL grammar.
func NewPostgresGrammar() *PostgresGrammar {
	return &PostgresGrammar{Grammar{quote: '"', numbered: true}}
}

// CompileInsertGetID requests the generated key with a returning clause.
func (g *PostgresGrammar) CompileInsertGetID(builder contracts.QueryBuilder, values map[string]any, sequence string) string {
	sql := g.compileInsertVerb(builder.(*Builder), []map[string]any{values}, "insert into", &argCounter{})
	return sql + " returning " + g.Wrap(sequence)
}

// CompileInsertIgnore compiles the on-conflict ignore form.
func (g *PostgresGrammar) CompileInsertIgnore(builder contracts.QueryBuilder, records []map[string]any) string {
	sql := g.compileInsertVerb(builder.(*Builder), records, "insert into", &argCounter{})
	return sql + " on conflict do nothing"
}

// CompileInsertIgnoreGetID combines on-conflict with returning. When the
// row is skipped no row comes back and the reported key is zero.
func (g *PostgresGrammar) CompileInsertIgnoreGetID(builder contracts.QueryBuilder, values map[string]any, sequence string) string {
	sql := g.compileInsertVerb(builder.(*Builder), []map[string]any{values}, "insert into", &argCounter{})
	return sql + " on conflict do nothing returning " + g.Wrap(sequence)
}

// CompileTruncate truncates and restarts the identity sequence.
func (g *PostgresGrammar) CompileTruncate(builder contracts.QueryBuilder) []contracts.SQLStatement {
	b := builder.(*Builder)
	return []contracts.SQLStatement{{SQL: "truncate " + g.Wrap(b.table) + " restart identity"}}
}
