package contracts

// PaginatorEnv supplies the current page and assembles result pages.
type PaginatorEnv interface {
	// CurrentPage returns the page the environment is on, starting at 1.
	CurrentPage() int

	// Make builds a paginator from a result slice and the total row
	// count of the unsliced query.
	Make(items []map[string]any, total int64, perPage int) Paginator
}

// Paginator is one page of results with its page metadata.
type Paginator interface {
	Items() []map[string]any
	Total() int64
	PerPage() int
	CurrentPage() int
	LastPage() int
}
