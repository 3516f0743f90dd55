package paginator

import (
	"context"
	"fmt"

	"github.com/paulexconde/justasking/internal/pkg/store"
)

const DefaultLimit = 10

type Page[T any] struct {
	Items       []T  `json:"items"`
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	PrevPage    *int `json:"prev_page"`
	NextPage    *int `json:"next_page"`
	TotalItems  int  `json:"total_items"`
}

type Paginator[T any] interface {
	// PaginateQuery counts the rows of query, then selects one page of them.
	// query must not carry its own LIMIT or OFFSET.
	PaginateQuery(ctx context.Context, query string, args []any, page, limit int) (*Page[T], error)
}

type paginatorImpl[T any] struct {
	datastore store.Datastorer[T]
}

func NewPaginator[T any](ds store.Datastorer[T]) Paginator[T] {
	return &paginatorImpl[T]{datastore: ds}
}

func (p *paginatorImpl[T]) PaginateQuery(ctx context.Context, query string, args []any, page, limit int) (*Page[T], error) {
	page, limit = Normalize(page, limit)

	raw, err := p.datastore.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS total_count", query), args...)
	if err != nil {
		return nil, err
	}
	total, err := toInt(raw)
	if err != nil {
		return nil, err
	}

	paged := fmt.Sprintf("%s LIMIT $%d OFFSET $%d", query, len(args)+1, len(args)+2)
	pagedArgs := append(append(make([]any, 0, len(args)+2), args...), limit, (page-1)*limit)

	items, err := p.datastore.Select(ctx, paged, pagedArgs...)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}

	return newPage(items, page, limit, total), nil
}

// Normalize clamps page to at least 1 and falls back to DefaultLimit for a
// non-positive limit.
func Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return page, limit
}

func newPage[T any](items []T, page, limit, total int) *Page[T] {
	totalPages := (total + limit - 1) / limit

	var prev, next *int
	if page > 1 {
		p := page - 1
		prev = &p
	}
	if page < totalPages {
		n := page + 1
		next = &n
	}

	return &Page[T]{
		Items:       items,
		CurrentPage: page,
		TotalPages:  totalPages,
		PrevPage:    prev,
		NextPage:    next,
		TotalItems:  total,
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case []byte:
		var out int
		if _, err := fmt.Sscan(string(n), &out); err != nil {
			return 0, fmt.Errorf("count: %w", err)
		}
		return out, nil
	}
	return 0, fmt.Errorf("expected integer count, got %T", v)
}
