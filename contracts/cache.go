package contracts

import "time"

// Cache is the store the builder memoizes select results through.
type Cache interface {
	// Remember returns the stored value for key if present and not
	// expired; otherwise it evaluates fn, stores the result for ttl and
	// returns it. An error from fn is returned without storing.
	Remember(key string, ttl time.Duration, fn func() (any, error)) (any, error)
}
