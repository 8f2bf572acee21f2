package query

// MySQLGrammar speaks MySQL: backtick identifier quoting. The base
// grammar's insert-ignore form is already MySQL's.
type MySQLGrammar struct {
	Grammar
}

// NewMySQLGrammar creates the MySQL grammar.
func NewMySQLGrammar() *MySQLGrammar {
	return &MySQLGrammar{Grammar{quote: '`'}}
}
