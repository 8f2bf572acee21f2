package contracts

// Logger is the structured logger the database layer reports through.
// Fields are alternating key/value pairs. The query core itself never
// logs; surfacing failures is the caller's responsibility.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// WithField returns a logger with a field attached to every entry.
	WithField(key string, value any) Logger
}
