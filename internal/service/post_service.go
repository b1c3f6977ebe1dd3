package service

import (
	"context"
	"encoding/json"
	"strings"

	"vibefeed/internal/feed"
	"vibefeed/internal/models"
	"vibefeed/internal/observability"
	"vibefeed/internal/repository"
	"vibefeed/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxContentLen  = 5000
	maxCategoryLen = 50
	maxTagLen      = 50
	maxTags        = 10
)

type PostService struct {
	postRepo      repository.PostRepository
	uploader      *storage.Uploader
	maxMediaBytes int64
}

type CreatePostInput struct {
	ActorID  uint
	UserID   uint
	Type     string
	Content  string
	Tags     []string
	Category string
	Media    *storage.File
}

type ListPostsInput struct {
	Filter   feed.Filter
	Page     feed.PageRequest
	ViewerID uint
}

func NewPostService(postRepo repository.PostRepository, uploader *storage.Uploader, maxMediaBytes int64) *PostService {
	return &PostService{
		postRepo:      postRepo,
		uploader:      uploader,
		maxMediaBytes: maxMediaBytes,
	}
}

// ParseTags accepts a JSON array or a comma separated list.
func ParseTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, models.NewValidationError("Tags must be a JSON array of strings")
		}
		return tags, nil
	}
	return strings.Split(raw, ","), nil
}

// cleanTags trims, drops empties and removes duplicates keeping first-seen order.
func cleanTags(in []string) (models.Tags, error) {
	out := models.Tags{}
	seen := make(map[string]struct{}, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}
		if len([]rune(tag)) > maxTagLen {
			return nil, models.NewValidationError("Tags must not exceed 50 characters")
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > maxTags {
		return nil, models.NewValidationError("A post can have at most 10 tags")
	}
	return out, nil
}

// CreatePost stores an optional media attachment, then the post. A media
// attachment decides the post type from its content type.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "PostService", "CreatePost",
		attribute.Int64("vibefeed.user_id", int64(in.UserID)),
		attribute.Bool("vibefeed.has_media", in.Media != nil),
	)
	post, err := s.createPost(ctx, in)
	observability.EndSpan(span, err)
	return post, err
}

func (s *PostService) createPost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.ActorID != in.UserID {
		return nil, models.NewForbiddenError("Can only create posts as yourself")
	}

	content := strings.TrimSpace(in.Content)
	if len([]rune(content)) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 5000 characters)")
	}
	category := strings.TrimSpace(in.Category)
	if len([]rune(category)) > maxCategoryLen {
		return nil, models.NewValidationError("Category too long (max 50 characters)")
	}
	tags, err := cleanTags(in.Tags)
	if err != nil {
		return nil, err
	}

	postType := models.PostType(strings.ToLower(strings.TrimSpace(in.Type)))
	if postType == "" {
		postType = models.PostTypeText
	}
	if !postType.Valid() {
		return nil, models.NewValidationError("Post type must be one of text, image or video")
	}

	post := &models.Post{
		UserID:   in.UserID,
		Content:  content,
		Tags:     tags,
		Category: category,
	}

	if in.Media != nil {
		media, err := storage.ValidatePostMedia(*in.Media, s.maxMediaBytes)
		if err != nil {
			return nil, err
		}
		url, err := s.uploader.Store(ctx, storage.PurposePost, media)
		if err != nil {
			return nil, err
		}
		postType = media.Kind
		post.MediaURL = url
		post.MediaType = media.ContentType
	} else {
		if postType != models.PostTypeText {
			return nil, models.NewValidationError("Image and video posts need a media file")
		}
		if content == "" {
			return nil, models.NewValidationError("Content is required")
		}
	}
	post.Type = postType

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, in.ActorID)
}

// ListPosts returns one filtered page, newest first.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]models.Post, models.Pagination, error) {
	posts, total, err := s.postRepo.Query(ctx, in.Filter, in.Page, in.ViewerID)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return posts, in.Page.Meta(total), nil
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, viewerID)
}

func (s *PostService) ListSaved(ctx context.Context, userID uint, page feed.PageRequest) ([]models.Post, models.Pagination, error) {
	posts, total, err := s.postRepo.ListSaved(ctx, userID, page)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return posts, page.Meta(total), nil
}

func (s *PostService) LikePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return s.engage(ctx, "LikePost", userID, postID, s.postRepo.Like)
}

func (s *PostService) UnlikePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return s.engage(ctx, "UnlikePost", userID, postID, s.postRepo.Unlike)
}

func (s *PostService) SavePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return s.engage(ctx, "SavePost", userID, postID, s.postRepo.Save)
}

func (s *PostService) UnsavePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return s.engage(ctx, "UnsavePost", userID, postID, s.postRepo.Unsave)
}

type engagementFunc func(ctx context.Context, userID, postID uint) (*models.Post, error)

func (s *PostService) engage(ctx context.Context, op string, userID, postID uint, fn engagementFunc) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "PostService", op,
		attribute.Int64("vibefeed.user_id", int64(userID)),
		attribute.Int64("vibefeed.post_id", int64(postID)),
	)
	post, err := fn(ctx, userID, postID)
	observability.EndSpan(span, err)
	return post, err
}
