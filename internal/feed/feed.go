// Package feed filters, orders and paginates posts.
//
// The same algorithm runs in two places: Apply works on an in-memory slice
// (client mirror, tests) and repository.PostRepository.Query expresses it in
// SQL. Both order newest first with ties kept in insertion (id) order.
package feed

import (
	"slices"
	"strconv"

	"vibefeed/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Filter holds the optional exact-match predicates. Zero values mean "any".
type Filter struct {
	UserID   uint
	Category string
	Type     models.PostType
}

// Matches reports whether p satisfies every set predicate.
func (f Filter) Matches(p *models.Post) bool {
	if f.UserID != 0 && p.UserID != f.UserID {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	return true
}

// PageRequest is a normalized page/limit pair.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest clamps page and limit: values below 1 fall back to the
// defaults and limit is capped at MaxLimit.
func NewPageRequest(page, limit int) PageRequest {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

// ParsePageRequest parses raw query values. Non-numeric input is treated like a missing value.
func ParsePageRequest(page, limit string) PageRequest {
	p, err := strconv.Atoi(page)
	if err != nil {
		p = DefaultPage
	}
	l, err := strconv.Atoi(limit)
	if err != nil {
		l = DefaultLimit
	}
	return NewPageRequest(p, l)
}

// Offset is the index of the first element of the page.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.Limit
}

// Meta builds the pagination metadata for a result set of total items.
func (r PageRequest) Meta(total int64) models.Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(r.Limit) - 1) / int64(r.Limit))
	}
	return models.Pagination{
		Page:       r.Page,
		Limit:      r.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    r.Page < totalPages,
		HasPrev:    r.Page > 1,
	}
}

// Apply filters posts, sorts the matches newest first and returns the requested page.
// posts must be in insertion order; it is not modified.
func Apply(posts []models.Post, f Filter, req PageRequest) ([]models.Post, models.Pagination) {
	matched := make([]models.Post, 0, len(posts))
	for i := range posts {
		if f.Matches(&posts[i]) {
			matched = append(matched, posts[i])
		}
	}

	SortNewestFirst(matched)

	meta := req.Meta(int64(len(matched)))
	start := req.Offset()
	if start >= len(matched) {
		return []models.Post{}, meta
	}
	end := min(start+req.Limit, len(matched))
	return matched[start:end], meta
}

// SortNewestFirst orders posts by CreatedAt descending. Equal timestamps keep their relative order.
func SortNewestFirst(posts []models.Post) {
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
