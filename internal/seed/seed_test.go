package seed

import (
	"context"
	"testing"
	"time"

	"vibefeed/internal/auth"
	"vibefeed/internal/database"
	"vibefeed/internal/models"
	"vibefeed/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestApplyFixture(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	s := NewSeeder(db)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	f, err := LoadFixture("testdata/fixture.yml")
	require.NoError(t, err)
	sum, err := s.ApplyFixture(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, Summary{Users: 3, Posts: 3, Likes: 3, Saves: 1, Conversations: 1, Messages: 3}, sum)

	users := repository.NewUserRepository(db)
	grace, err := users.GetByUsername(ctx, "grace")
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", grace.Email)
	assert.True(t, auth.CheckPassword(grace.Password, DefaultPassword))

	linus, err := users.GetByUsername(ctx, "linus")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(linus.Password, "kernelhacker1"))

	ada, err := users.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, 1, ada.PostsCount)
	assert.True(t, ada.Verified)

	var first models.Post
	require.NoError(t, db.Where("user_id = ?", ada.ID).First(&first).Error)
	assert.Equal(t, 2, first.Likes)
	assert.Equal(t, models.Tags{"math", "history"}, first.Tags)
	assert.True(t, first.CreatedAt.Equal(now.Add(-48*time.Hour)))

	convs, err := repository.NewChatRepository(db).GetUserConversations(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Coffee later?", convs[0].LastMessage)
	assert.Equal(t, 2, convs[0].UnreadCount)
}

func TestApplyFixture_UnknownUser(t *testing.T) {
	s := NewSeeder(setupDB(t))
	f, err := ParseFixture([]byte(`
users:
  - username: ada
posts:
  - author: nobody
    content: orphan
`))
	require.NoError(t, err)

	_, err = s.ApplyFixture(context.Background(), f)
	assert.ErrorContains(t, err, `unknown user "nobody"`)
}

func TestParseFixture_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseFixture([]byte("users:\n  - username: ada\n    shoeSize: 9\n"))
	assert.Error(t, err)
}

func TestRandom(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	s := NewSeeder(db)

	sum, err := s.Random(ctx, 6, 10, 42)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Users)
	assert.Equal(t, 10, sum.Posts)
	assert.Equal(t, 3, sum.Conversations)
	assert.Equal(t, 9, sum.Messages)

	assert.Equal(t, int64(6), count(t, db, &models.User{}))
	assert.Equal(t, int64(10), count(t, db, &models.Post{}))
	assert.Equal(t, int64(sum.Likes), count(t, db, &models.Like{}))

	var likeTotal int64
	require.NoError(t, db.Model(&models.Post{}).Select("COALESCE(SUM(likes), 0)").Scan(&likeTotal).Error)
	assert.Equal(t, int64(sum.Likes), likeTotal, "counters match like rows")

	var postsCount int64
	require.NoError(t, db.Model(&models.User{}).Select("COALESCE(SUM(posts_count), 0)").Scan(&postsCount).Error)
	assert.Equal(t, int64(10), postsCount)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	s := NewSeeder(db)
	_, err := s.Random(ctx, 4, 5, 7)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	for _, m := range []any{&models.User{}, &models.Post{}, &models.Like{}, &models.Message{}, &models.Conversation{}} {
		assert.Zero(t, count(t, db, m))
	}

	// a cleared database accepts the fixture again
	f, err := LoadFixture("testdata/fixture.yml")
	require.NoError(t, err)
	_, err = s.ApplyFixture(ctx, f)
	assert.NoError(t, err)
}
