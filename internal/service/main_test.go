package service

import (
	"context"
	"testing"

	"vibefeed/internal/auth"
	"vibefeed/internal/database"
	"vibefeed/internal/models"
	"vibefeed/internal/notifications"
	"vibefeed/internal/repository"
	"vibefeed/internal/storage"
	"vibefeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

type fixture struct {
	db      *gorm.DB
	users   repository.UserRepository
	posts   repository.PostRepository
	chats   repository.ChatRepository
	store   *testutil.MemoryStore
	tokens  *auth.TokenIssuer
	authSvc *AuthService
	userSvc *UserService
	postSvc *PostService
	search  *SearchService
	chatSvc *ChatService
	events  *publisherMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		db:     db,
		users:  repository.NewUserRepository(db),
		posts:  repository.NewPostRepository(db),
		chats:  repository.NewChatRepository(db),
		store:  testutil.NewMemoryStore(),
		tokens: auth.NewTokenIssuer(testSecret),
		events: &publisherMock{},
	}
	uploader := storage.NewUploader(f.store)
	f.authSvc = NewAuthService(f.users, f.tokens)
	f.userSvc = NewUserService(f.users, uploader)
	f.postSvc = NewPostService(f.posts, uploader, 10*1024*1024)
	f.search = NewSearchService(f.users, f.posts)
	f.chatSvc = NewChatService(f.chats, f.users, f.events)
	return f
}

// signup registers username with a valid password and returns the user.
func (f *fixture) signup(t *testing.T, username string) *models.User {
	t.Helper()
	res, err := f.authSvc.Signup(context.Background(), SignupInput{
		Email:    username + "@example.com",
		Password: "password123",
		Username: username,
	})
	require.NoError(t, err)
	return res.User
}

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) PublishEvent(ctx context.Context, userIDs []uint, ev notifications.Event) error {
	args := m.Called(ctx, userIDs, ev)
	return args.Error(0)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, models.ErrorCode(err), err.Error())
}
