package repository

import (
	"context"

	"vibefeed/internal/cache"
	"vibefeed/internal/feed"
	"vibefeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	Query(ctx context.Context, filter feed.Filter, page feed.PageRequest, viewerID uint) ([]models.Post, int64, error)
	ListSaved(ctx context.Context, userID uint, page feed.PageRequest) ([]models.Post, int64, error)
	Like(ctx context.Context, userID, postID uint) (*models.Post, error)
	Unlike(ctx context.Context, userID, postID uint) (*models.Post, error)
	Save(ctx context.Context, userID, postID uint) (*models.Post, error)
	Unsave(ctx context.Context, userID, postID uint) (*models.Post, error)
	CandidatePosts(ctx context.Context, q string) ([]models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func postNotFound(id uint) *models.AppError {
	return models.NewNotFoundError("Post", id)
}

// Create inserts the post and bumps the owner's posts counter in one transaction.
// The owner must exist.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.Tags == nil {
		post.Tags = models.Tags{}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.Select("id").First(&owner, post.UserID).Error; err != nil {
			return notFoundOr(err, models.NewNotFoundMessage("User not found"))
		}
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			if isForeignKeyError(err) {
				return models.NewNotFoundMessage("User not found")
			}
			return models.NewInternalError(err)
		}
		return tx.Model(&models.User{}).
			Where("id = ?", post.UserID).
			UpdateColumn("posts_count", gorm.Expr("posts_count + 1")).Error
	})
	if err != nil {
		return notFoundOr(err, models.NewNotFoundMessage("User not found"))
	}
	cache.InvalidateUser(ctx, post.UserID)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := r.db.WithContext(ctx).Preload("User").First(&post, id).Error; err != nil {
			return notFoundOr(err, postNotFound(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	posts := []models.Post{post}
	if err := r.annotate(ctx, r.db, viewerID, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// Query applies the feed filters, orders newest first (ties by id) and returns one page plus the total.
func (r *postRepository) Query(ctx context.Context, filter feed.Filter, page feed.PageRequest, viewerID uint) ([]models.Post, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Post{})
	if filter.UserID != 0 {
		base = base.Where("posts.user_id = ?", filter.UserID)
	}
	if filter.Category != "" {
		base = base.Where("posts.category = ?", filter.Category)
	}
	if filter.Type != "" {
		base = base.Where("posts.type = ?", filter.Type)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	posts := []models.Post{}
	if total > 0 {
		err := base.Session(&gorm.Session{}).
			Preload("User").
			Order("posts.created_at DESC").
			Order("posts.id ASC").
			Limit(page.Limit).
			Offset(page.Offset()).
			Find(&posts).Error
		if err != nil {
			return nil, 0, models.NewInternalError(err)
		}
	}

	if err := r.annotate(ctx, r.db, viewerID, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListSaved returns the user's bookmarked posts, most recently saved first.
func (r *postRepository) ListSaved(ctx context.Context, userID uint, page feed.PageRequest) ([]models.Post, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Post{}).
		Joins("JOIN saved_posts sp ON sp.post_id = posts.id").
		Where("sp.user_id = ?", userID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	posts := []models.Post{}
	if total > 0 {
		err := base.Session(&gorm.Session{}).
			Select("posts.*").
			Preload("User").
			Order("sp.created_at DESC").
			Order("sp.id DESC").
			Limit(page.Limit).
			Offset(page.Offset()).
			Find(&posts).Error
		if err != nil {
			return nil, 0, models.NewInternalError(err)
		}
	}

	if err := r.annotate(ctx, r.db, userID, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Like records the relation and increments the counter only when the relation is new.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return r.toggle(ctx, userID, postID, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Like{UserID: userID, PostID: postID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("likes", gorm.Expr("likes + 1")).Error
	})
}

// Unlike removes the relation and decrements the counter, never below zero.
func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return r.toggle(ctx, userID, postID, func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("likes", gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")).Error
	})
}

func (r *postRepository) Save(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return r.toggle(ctx, userID, postID, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.SavedPost{UserID: userID, PostID: postID}).Error
	})
}

func (r *postRepository) Unsave(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return r.toggle(ctx, userID, postID, func(tx *gorm.DB) error {
		return tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.SavedPost{}).Error
	})
}

// toggle runs mutate in a transaction after checking the post exists and
// returns the post as the user now sees it.
func (r *postRepository) toggle(ctx context.Context, userID, postID uint, mutate func(tx *gorm.DB) error) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&post, postID).Error; err != nil {
			return err
		}
		if err := mutate(tx); err != nil {
			if isForeignKeyError(err) {
				return models.NewNotFoundMessage("User not found")
			}
			return err
		}
		return tx.Preload("User").First(&post, postID).Error
	})
	if err != nil {
		return nil, notFoundOr(err, postNotFound(postID))
	}

	posts := []models.Post{post}
	if err := r.annotate(ctx, r.db, userID, posts); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, postID)
	return &posts[0], nil
}

// annotate fills Liked and Saved for viewerID. A zero viewer leaves both false.
func (r *postRepository) annotate(ctx context.Context, db *gorm.DB, viewerID uint, posts []models.Post) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}

	var liked, saved []uint
	if err := db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &liked).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.WithContext(ctx).Model(&models.SavedPost{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &saved).Error; err != nil {
		return models.NewInternalError(err)
	}

	likedSet := make(map[uint]bool, len(liked))
	for _, id := range liked {
		likedSet[id] = true
	}
	savedSet := make(map[uint]bool, len(saved))
	for _, id := range saved {
		savedSet[id] = true
	}
	for i := range posts {
		posts[i].Liked = likedSet[posts[i].ID]
		posts[i].Saved = savedSet[posts[i].ID]
	}
	return nil
}

func (r *postRepository) CandidatePosts(ctx context.Context, q string) ([]models.Post, error) {
	var posts []models.Post
	err := whereContainsFold(r.db.WithContext(ctx).Preload("User"), q, "content", "tags", "category").
		Order("id ASC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}
