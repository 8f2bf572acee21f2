// Package pagination supplies the paginator environment the builder
// consults: where the current page comes from and how a result slice and
// total become a page.
package pagination

import (
	"sync"

	"github.com/genesysflow/go-fluentsql/contracts"
)

// Env is a paginator environment carrying the current page, typically
// resolved from the request before queries run.
type Env struct {
	page int
	mu   sync.RWMutex
}

// NewEnv creates an environment on the given page; pages start at 1.
func NewEnv(page int) *Env {
	if page < 1 {
		page = 1
	}
	return &Env{page: page}
}

// CurrentPage returns the page the environment is on.
func (e *Env) CurrentPage() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.page
}

// SetCurrentPage moves the environment to another page.
func (e *Env) SetCurrentPage(page int) {
	if page < 1 {
		page = 1
	}
	e.mu.Lock()
	e.page = page
	e.mu.Unlock()
}

// Make builds a paginator from a result slice and the total row count of
// the unsliced query.
func (e *Env) Make(items []map[string]any, total int64, perPage int) contracts.Paginator {
	return &Paginator{
		items:       items,
		total:       total,
		perPage:     perPage,
		currentPage: e.CurrentPage(),
	}
}

// Paginator is one page of results with its page metadata.
type Paginator struct {
	items       []map[string]any
	total       int64
	perPage     int
	currentPage int
}

// Items returns the rows of this page.
func (p *Paginator) Items() []map[string]any {
	return p.items
}

// Total returns the total row count across all pages.
func (p *Paginator) Total() int64 {
	return p.total
}

// PerPage returns the page size.
func (p *Paginator) PerPage() int {
	return p.perPage
}

// CurrentPage returns this page's number.
func (p *Paginator) CurrentPage() int {
	return p.currentPage
}

// LastPage returns the number of the final page.
func (p *Paginator) LastPage() int {
	if p.perPage <= 0 {
		return 0
	}
	last := int(p.total) / p.perPage
	if int(p.total)%p.perPage > 0 {
		last++
	}
	return last
}

// HasMorePages reports whether pages follow this one.
func (p *Paginator) HasMorePages() bool {
	return p.currentPage < p.LastPage()
}
