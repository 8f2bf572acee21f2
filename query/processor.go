package query

import (
	"github.com/spf13/cast"

	"github.com/genesysflow/go-fluentsql/contracts"
)

// Processor adapts raw connection results to caller-facing shapes.
type Processor struct{}

// NewProcessor creates the default processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// ProcessSelect passes select rows through unchanged.
func (p *Processor) ProcessSelect(builder contracts.QueryBuilder, rows []map[string]any) ([]map[string]any, error) {
	return rows, nil
}

// ProcessInsertGetID executes the compiled insert and coerces whatever
// key shape the driver reported to an int64. A nil key (an ignored
// duplicate on dialects that return no row) coerces to zero.
func (p *Processor) ProcessInsertGetID(builder contracts.QueryBuilder, query string, bindings []any, sequence string) (int64, error) {
	b := builder.(*Builder)
	raw, err := b.connection.InsertGetID(query, bindings)
	if err != nil {
		return 0, err
	}
	return cast.ToInt64E(raw)
}
