package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"vibefeed/internal/feed"
	"vibefeed/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postIDs(posts []models.Post) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestPostRepository_CreateBumpsPostsCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ada := createUser(t, db, "ada")

	createPost(t, db, ada.ID, "first", time.Now())
	createPost(t, db, ada.ID, "second", time.Now())

	got, err := NewUserRepository(db).GetByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PostsCount)
}

func TestPostRepository_CreateOrphanIsNotFound(t *testing.T) {
	db := newTestDB(t)
	err := NewPostRepository(db).Create(context.Background(), &models.Post{
		UserID:  99,
		Type:    models.PostTypeText,
		Content: "nobody home",
	})
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	var count int64
	db.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestPostRepository_QuerySecondPage(t *testing.T) {
	db := newTestDB(t)
	ada := createUser(t, db, "ada")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		createPost(t, db, ada.ID, "post", base.Add(time.Duration(i)*time.Hour))
	}

	posts, total, err := NewPostRepository(db).Query(context.Background(), feed.Filter{}, feed.NewPageRequest(2, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, []uint{3, 2}, postIDs(posts))
	require.NotNil(t, posts[0].User)
	assert.Equal(t, "ada", posts[0].User.Username)

	meta := feed.NewPageRequest(2, 2).Meta(total)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)
}

func TestPostRepository_QueryFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	ada := createUser(t, db, "ada")
	grace := createUser(t, db, "grace")
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &models.Post{UserID: ada.ID, Type: models.PostTypeText, Content: "a", Category: "tech", CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &models.Post{UserID: ada.ID, Type: models.PostTypeImage, Content: "b", Category: "art", MediaURL: "/uploads/b.png", CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &models.Post{UserID: grace.ID, Type: models.PostTypeText, Content: "c", Category: "tech", CreatedAt: now.Add(2 * time.Minute)}))

	tests := []struct {
		name   string
		filter feed.Filter
		want   int
	}{
		{"no filter", feed.Filter{}, 3},
		{"by user", feed.Filter{UserID: ada.ID}, 2},
		{"by category", feed.Filter{Category: "tech"}, 2},
		{"by type", feed.Filter{Type: models.PostTypeImage}, 1},
		{"combined", feed.Filter{UserID: grace.ID, Category: "tech"}, 1},
		{"no match", feed.Filter{Category: "food"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, total, err := repo.Query(ctx, tt.filter, feed.NewPageRequest(1, 10), 0)
			require.NoError(t, err)
			assert.Equal(t, int64(tt.want), total)
			assert.Len(t, posts, tt.want)
			assert.NotNil(t, posts)
		})
	}
}

func TestPostRepository_QueryTiesBreakByID(t *testing.T) {
	db := newTestDB(t)
	ada := createUser(t, db, "ada")
	same := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for range 3 {
		createPost(t, db, ada.ID, "same instant", same)
	}

	posts, _, err := NewPostRepository(db).Query(context.Background(), feed.Filter{}, feed.NewPageRequest(1, 10), 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, postIDs(posts))
}

func TestPostRepository_LikeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	ada := createUser(t, db, "ada")
	grace := createUser(t, db, "grace")
	post := createPost(t, db, ada.ID, "like me", time.Now())

	got, err := repo.Like(ctx, grace.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Likes)
	assert.True(t, got.Liked)

	got, err = repo.Like(ctx, grace.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Likes, "second like must not double count")

	got, err = repo.Unlike(ctx, grace.ID, post.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Likes)
	assert.False(t, got.Liked)

	got, err = repo.Unlike(ctx, grace.ID, post.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Likes, "counter never goes below zero")
}

func TestPostRepository_LikeMissingPost(t *testing.T) {
	db := newTestDB(t)
	ada := createUser(t, db, "ada")

	_, err := NewPostRepository(db).Like(context.Background(), ada.ID, 42)
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.Equal(t, "Post with ID 42 not found", err.Error())
}

func TestPostRepository_LikedIsPerViewer(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	ada := createUser(t, db, "ada")
	grace := createUser(t, db, "grace")
	post := createPost(t, db, ada.ID, "hello", time.Now())

	_, err := repo.Like(ctx, grace.ID, post.ID)
	require.NoError(t, err)

	asGrace, err := repo.GetByID(ctx, post.ID, grace.ID)
	require.NoError(t, err)
	assert.True(t, asGrace.Liked)

	asAda, err := repo.GetByID(ctx, post.ID, ada.ID)
	require.NoError(t, err)
	assert.False(t, asAda.Liked)
	assert.Equal(t, 1, asAda.Likes)

	anon, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, anon.Liked)
}

func TestPostRepository_SaveAndListSaved(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	ada := createUser(t, db, "ada")
	grace := createUser(t, db, "grace")
	first := createPost(t, db, ada.ID, "first", time.Now())
	second := createPost(t, db, ada.ID, "second", time.Now())

	got, err := repo.Save(ctx, grace.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Saved)
	_, err = repo.Save(ctx, grace.ID, first.ID)
	require.NoError(t, err)
	_, err = repo.Save(ctx, grace.ID, second.ID)
	require.NoError(t, err)

	posts, total, err := repo.ListSaved(ctx, grace.ID, feed.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []uint{second.ID, first.ID}, postIDs(posts))
	for _, p := range posts {
		assert.True(t, p.Saved)
	}

	got, err = repo.Unsave(ctx, grace.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, got.Saved)

	posts, total, err = repo.ListSaved(ctx, grace.ID, feed.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []uint{second.ID}, postIDs(posts))

	posts, total, err = repo.ListSaved(ctx, ada.ID, feed.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, posts)
}

func TestPostRepository_CandidatePosts(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	ada := createUser(t, db, "ada")

	require.NoError(t, repo.Create(ctx, &models.Post{UserID: ada.ID, Type: models.PostTypeText, Content: "Learning Go today", Tags: models.Tags{"golang"}}))
	require.NoError(t, repo.Create(ctx, &models.Post{UserID: ada.ID, Type: models.PostTypeText, Content: "Brunch", Category: "Food"}))
	require.NoError(t, repo.Create(ctx, &models.Post{UserID: ada.ID, Type: models.PostTypeText, Content: "R&D notes", Tags: models.Tags{"r&d"}}))

	posts, err := repo.CandidatePosts(ctx, "go")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].User)

	posts, err = repo.CandidatePosts(ctx, "food")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Brunch", posts[0].Content)

	posts, err = repo.CandidatePosts(ctx, "r&d")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, models.Tags{"r&d"}, posts[0].Tags)
}

func TestPostRepository_QuerySQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "posts" WHERE posts.category = $1`)).
		WithArgs("tech").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE posts.category = $1 ORDER BY posts.created_at DESC,posts.id ASC LIMIT $2 OFFSET $3`)).
		WithArgs("tech", 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "content", "category", "created_at"}).
			AddRow(1, 7, "text", "oldest", "tech", now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(7, "ada"))

	posts, total, err := repo.Query(context.Background(), feed.Filter{Category: "tech"}, feed.NewPageRequest(2, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, posts, 1)
	assert.Equal(t, "ada", posts[0].User.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_QuerySQLEmptySkipsSelect(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	posts, total, err := repo.Query(context.Background(), feed.Filter{}, feed.NewPageRequest(1, 10), 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, posts)
	assert.NotNil(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
