package query

// Expression wraps a raw SQL fragment. Grammars emit the inner string
// verbatim wherever a bindable value is expected, and CleanBindings
// strips expressions from binding vectors before they reach the
// connection.
type Expression struct {
	value string
}

// Raw marks a SQL fragment as literal.
func Raw(value string) Expression {
	return Expression{value: value}
}

// Value returns the wrapped fragment.
func (e Expression) Value() string {
	return e.value
}

// CleanBindings removes expression values from a binding vector. The
// grammar has already inlined them into the SQL, so handing them to the
// driver would shift every later placeholder.
func CleanBindings(bindings []any) []any {
	cleaned := make([]any, 0, len(bindings))
	for _, binding := range bindings {
		if _, ok := binding.(Expression); ok {
			continue
		}
		cleaned = append(cleaned, binding)
	}
	return cleaned
}
