// Package search matches users and posts by case-insensitive substring.
package search

import (
	"context"
	"strings"

	"vibefeed/internal/models"
)

// Scope restricts which collections are searched.
type Scope string

const (
	ScopeAll   Scope = "all"
	ScopeUsers Scope = "users"
	ScopePosts Scope = "posts"
)

// ParseScope maps the raw "type" query value to a Scope. Empty means ScopeAll.
func ParseScope(raw string) (Scope, error) {
	switch s := Scope(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return ScopeAll, nil
	case ScopeAll, ScopeUsers, ScopePosts:
		return s, nil
	}
	return "", models.NewValidationError("Search type must be one of all, users or posts")
}

func (s Scope) includesUsers() bool { return s == ScopeAll || s == ScopeUsers }
func (s Scope) includesPosts() bool { return s == ScopeAll || s == ScopePosts }

// Result is the search response. Slices are never nil so they encode as [].
type Result struct {
	Users      []models.User `json:"users"`
	Posts      []models.Post `json:"posts"`
	Tags       []string      `json:"tags"`
	Categories []string      `json:"categories"`
}

func emptyResult() *Result {
	return &Result{
		Users:      []models.User{},
		Posts:      []models.Post{},
		Tags:       []string{},
		Categories: []string{},
	}
}

// Source provides search candidates in id order. q is trimmed and
// lower-cased. A source may return a superset of the real matches; Match
// makes the final decision.
type Source interface {
	CandidateUsers(ctx context.Context, q string) ([]models.User, error)
	CandidatePosts(ctx context.Context, q string) ([]models.Post, error)
}

// Engine runs queries against a Source.
type Engine struct {
	source Source
}

// NewEngine returns an Engine reading from source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Search validates the query and scans the collections the scope asks for.
func (e *Engine) Search(ctx context.Context, query string, scope Scope) (*Result, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, models.NewValidationError("Search query is required")
	}

	var users []models.User
	var posts []models.Post
	var err error

	if scope.includesUsers() {
		if users, err = e.source.CandidateUsers(ctx, q); err != nil {
			return nil, err
		}
	}
	if scope.includesPosts() {
		if posts, err = e.source.CandidatePosts(ctx, q); err != nil {
			return nil, err
		}
	}

	return Match(q, users, posts), nil
}

// Match filters users and posts in their given order. The query is
// lower-cased and compared against lower-cased fields.
func Match(query string, users []models.User, posts []models.Post) *Result {
	q := strings.ToLower(strings.TrimSpace(query))
	res := emptyResult()
	if q == "" {
		return res
	}

	for _, u := range users {
		if UserMatches(q, &u) {
			res.Users = append(res.Users, u)
		}
	}

	seenTags := map[string]bool{}
	seenCategories := map[string]bool{}
	for _, p := range posts {
		if PostMatches(q, &p) {
			res.Posts = append(res.Posts, p)
		}
		for _, tag := range p.Tags {
			if !seenTags[tag] && contains(tag, q) {
				seenTags[tag] = true
				res.Tags = append(res.Tags, tag)
			}
		}
		if p.Category != "" && !seenCategories[p.Category] && contains(p.Category, q) {
			seenCategories[p.Category] = true
			res.Categories = append(res.Categories, p.Category)
		}
	}

	return res
}

// UserMatches reports whether the lower-cased query q occurs in the user's name, username or bio.
func UserMatches(q string, u *models.User) bool {
	return contains(u.Name, q) || contains(u.Username, q) || contains(u.Bio, q)
}

// PostMatches reports whether the lower-cased query q occurs in the post's content or any tag.
func PostMatches(q string, p *models.Post) bool {
	if contains(p.Content, q) {
		return true
	}
	for _, tag := range p.Tags {
		if contains(tag, q) {
			return true
		}
	}
	return false
}

func contains(field, q string) bool {
	return strings.Contains(strings.ToLower(field), q)
}
