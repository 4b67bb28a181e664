// Package query filters, searches, sorts and paginates entity snapshots.
// One engine serves every entity kind through an Accessors table.
package query

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"

	"admincore/internal/model"
)

// Any disables a filter when used as its value.
const Any = "all"

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

type Params struct {
	Filters  map[string]string
	Search   string
	SortBy   string
	Order    Order
	Page     int
	PageSize int
}

type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// Accessors describes how the engine reads one entity kind.
type Accessors[T any] struct {
	ID     func(T) int64
	Fields map[string]func(T) string
	Search []func(T) string
	Sort   map[string]func(a, b T) int
}

// Validate checks p against the accessor table without touching any data.
func (a Accessors[T]) Validate(p Params) error {
	for key := range p.Filters {
		if _, ok := a.Fields[key]; !ok {
			return model.NewValidationError("filter", fmt.Sprintf("unknown key %q (allowed: %s)", key, strings.Join(keys(a.Fields), ", ")))
		}
	}
	if p.SortBy != "" {
		if _, ok := a.Sort[p.SortBy]; !ok {
			return model.NewValidationError("sort", fmt.Sprintf("unknown key %q (allowed: %s)", p.SortBy, strings.Join(keys(a.Sort), ", ")))
		}
	}
	switch p.Order {
	case "", Asc, Desc:
	default:
		return model.NewValidationError("order", "must be asc or desc")
	}
	if p.Page < 1 {
		return model.NewValidationError("page", "must be at least 1")
	}
	if p.PageSize < 1 {
		return model.NewValidationError("page_size", "must be at least 1")
	}
	return nil
}

// Run returns the requested page of items. items is never modified.
func Run[T any](items []T, a Accessors[T], p Params) (Page[T], error) {
	if err := a.Validate(p); err != nil {
		return Page[T]{}, err
	}

	matched := make([]T, 0, len(items))
	needle := strings.ToLower(strings.TrimSpace(p.Search))
	for _, it := range items {
		if a.matchFilters(it, p.Filters) && a.matchSearch(it, needle) {
			matched = append(matched, it)
		}
	}

	byID := func(x, y T) int { return cmp.Compare(a.ID(x), a.ID(y)) }
	if p.SortBy == "" {
		slices.SortStableFunc(matched, byID)
	} else {
		compare := a.Sort[p.SortBy]
		desc := p.Order == Desc
		slices.SortStableFunc(matched, func(x, y T) int {
			c := compare(x, y)
			if desc {
				c = -c
			}
			if c != 0 {
				return c
			}
			return byID(x, y)
		})
	}

	total := len(matched)
	page := Page[T]{
		Items:      []T{},
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: total / p.PageSize,
	}
	if total%p.PageSize != 0 {
		page.TotalPages++
	}
	// Compare page indexes rather than offsets so huge values cannot overflow.
	if total == 0 || p.Page-1 > (total-1)/p.PageSize {
		return page, nil
	}
	start := (p.Page - 1) * p.PageSize
	end := start + min(p.PageSize, total-start)
	page.Items = append(page.Items, matched[start:end]...)
	return page, nil
}

func (a Accessors[T]) matchFilters(it T, filters map[string]string) bool {
	for key, want := range filters {
		if want == "" || want == Any {
			continue
		}
		if a.Fields[key](it) != want {
			return false
		}
	}
	return true
}

func (a Accessors[T]) matchSearch(it T, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range a.Search {
		if strings.Contains(strings.ToLower(field(it)), needle) {
			return true
		}
	}
	return false
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
