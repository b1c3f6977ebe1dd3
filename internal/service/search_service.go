package service

import (
	"context"

	"vibefeed/internal/models"
	"vibefeed/internal/observability"
	"vibefeed/internal/repository"
	"vibefeed/internal/search"

	"go.opentelemetry.io/otel/attribute"
)

// repoSource feeds the search engine from the repositories' SQL pre-filter.
type repoSource struct {
	users repository.UserRepository
	posts repository.PostRepository
}

func (r repoSource) CandidateUsers(ctx context.Context, q string) ([]models.User, error) {
	return r.users.CandidateUsers(ctx, q)
}

func (r repoSource) CandidatePosts(ctx context.Context, q string) ([]models.Post, error) {
	return r.posts.CandidatePosts(ctx, q)
}

type SearchService struct {
	engine *search.Engine
}

func NewSearchService(userRepo repository.UserRepository, postRepo repository.PostRepository) *SearchService {
	return &SearchService{engine: search.NewEngine(repoSource{users: userRepo, posts: postRepo})}
}

// Search runs query over the collections named by rawScope ("", all, users, posts).
func (s *SearchService) Search(ctx context.Context, query, rawScope string) (*search.Result, error) {
	scope, err := search.ParseScope(rawScope)
	if err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "SearchService", "Search",
		attribute.String("vibefeed.search.scope", string(scope)))
	res, err := s.engine.Search(ctx, query, scope)
	if err == nil {
		span.SetAttributes(
			attribute.Int("vibefeed.search.users", len(res.Users)),
			attribute.Int("vibefeed.search.posts", len(res.Posts)),
		)
	}
	observability.EndSpan(span, err)
	return res, err
}
