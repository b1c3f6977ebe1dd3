package client

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"vibefeed/internal/feed"
	"vibefeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	s := NewStore()
	tick := epoch
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func strPtr(s string) *string { return &s }

func TestStore_AddPostPrependsWithNextID(t *testing.T) {
	s := newTestStore()
	s.PutPosts(
		models.Post{ID: 3, Content: "three", CreatedAt: epoch.Add(-time.Hour)},
		models.Post{ID: 7, Content: "seven", CreatedAt: epoch.Add(-time.Minute)},
	)

	p := s.AddPost(models.Post{UserID: 1, Content: "fresh", Likes: 12})
	assert.Equal(t, uint(8), p.ID)
	assert.Zero(t, p.Likes, "engagement counters start at zero")
	assert.Equal(t, models.PostTypeText, p.Type)

	posts := s.Posts()
	require.Len(t, posts, 3)
	assert.Equal(t, []uint{8, 7, 3}, []uint{posts[0].ID, posts[1].ID, posts[2].ID})
}

func TestStore_LikeUnlike(t *testing.T) {
	s := newTestStore()
	s.PutPosts(models.Post{ID: 1, Likes: 4, CreatedAt: epoch})

	p, err := s.LikePost(1)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Likes)
	assert.True(t, p.Liked)

	p, err = s.LikePost(1)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Likes, "a second like is not counted")

	p, err = s.UnlikePost(1)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Likes, "like then unlike restores the counter")
	assert.False(t, s.IsLiked(1))

	p, err = s.UnlikePost(1)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Likes)

	_, err = s.LikePost(99)
	assert.ErrorIs(t, err, ErrUnknownPost)
}

func TestStore_UnlikeNeverGoesNegative(t *testing.T) {
	s := newTestStore()
	// server says liked but the counter has already been reset
	s.PutPosts(models.Post{ID: 1, Likes: 0, Liked: true, CreatedAt: epoch})

	p, err := s.UnlikePost(1)
	require.NoError(t, err)
	assert.Zero(t, p.Likes)
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	s := newTestStore()
	s.PutPosts(models.Post{ID: 1, CreatedAt: epoch})

	for range 2 {
		p, err := s.SavePost(1)
		require.NoError(t, err)
		assert.True(t, p.Saved)
	}
	for range 2 {
		p, err := s.UnsavePost(1)
		require.NoError(t, err)
		assert.False(t, p.Saved)
	}
	assert.False(t, s.IsSaved(1))
}

func TestStore_UpdateUser(t *testing.T) {
	s := newTestStore()
	s.PutUser(models.User{ID: 1, Username: "ada", Bio: "old"})

	u, err := s.UpdateUser(1, models.UserPatch{Bio: strPtr("new"), Location: strPtr("London")})
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.Equal(t, "new", u.Bio)
	assert.Equal(t, "London", u.Location)
	assert.True(t, u.UpdatedAt.After(epoch))

	_, err = s.UpdateUser(2, models.UserPatch{Bio: strPtr("x")})
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestStore_SendMessage(t *testing.T) {
	s := newTestStore()
	s.PutConversations(models.Conversation{ID: 5, UnreadCount: 3, LastMessage: "older"})
	s.PutMessage(models.Message{ID: 10, ConversationID: 5, SenderID: 2, Text: "ping", CreatedAt: epoch}, false)

	msg, err := s.SendMessage(5, 1, "pong")
	require.NoError(t, err)
	assert.Equal(t, uint(11), msg.ID)
	assert.True(t, msg.IsOwn)

	msgs := s.Messages(5)
	require.Len(t, msgs, 2)
	assert.Equal(t, "pong", msgs[1].Text)

	conv, ok := s.Conversation(5)
	require.True(t, ok)
	assert.Equal(t, "pong", conv.LastMessage)
	assert.Zero(t, conv.UnreadCount)

	_, err = s.SendMessage(6, 1, "nobody home")
	assert.ErrorIs(t, err, ErrUnknownConversation)
}

func TestStore_PutMessageCountsUnreadAndSkipsDuplicates(t *testing.T) {
	s := newTestStore()
	s.PutConversations(models.Conversation{ID: 1})
	incoming := models.Message{ID: 4, ConversationID: 1, SenderID: 9, Text: "hey", CreatedAt: epoch}

	s.PutMessage(incoming, false)
	s.PutMessage(incoming, false)

	assert.Len(t, s.Messages(1), 1)
	conv, _ := s.Conversation(1)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, "hey", conv.LastMessage)

	s.MarkRead(1)
	conv, _ = s.Conversation(1)
	assert.Zero(t, conv.UnreadCount)
}

func TestStore_FeedMatchesServerPaging(t *testing.T) {
	s := newTestStore()
	for i := 1; i <= 5; i++ {
		s.PutPosts(models.Post{
			ID:        uint(i),
			UserID:    uint(i%2 + 1),
			Content:   fmt.Sprintf("post %d", i),
			CreatedAt: epoch.Add(time.Duration(i) * time.Minute),
		})
	}

	page, meta := s.Feed(feed.Filter{}, feed.NewPageRequest(2, 2))
	require.Len(t, page, 2)
	assert.Equal(t, "post 3", page[0].Content)
	assert.Equal(t, "post 2", page[1].Content)
	assert.Equal(t, 3, meta.TotalPages)

	page, meta = s.Feed(feed.Filter{UserID: 1}, feed.NewPageRequest(1, 10))
	assert.Equal(t, int64(2), meta.Total)
	for _, p := range page {
		assert.Equal(t, uint(1), p.UserID)
	}
}

func TestStore_ConcurrentMutators(t *testing.T) {
	s := newTestStore()
	s.PutConversations(models.Conversation{ID: 1})
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := s.AddPost(models.Post{Content: fmt.Sprint(i)})
			_, _ = s.LikePost(p.ID)
			_, _ = s.SendMessage(1, 1, "hi")
		}()
	}
	wg.Wait()

	posts := s.Posts()
	require.Len(t, posts, 20)
	seen := map[uint]bool{}
	for _, p := range posts {
		assert.False(t, seen[p.ID], "ids stay unique")
		seen[p.ID] = true
		assert.Equal(t, 1, p.Likes)
	}
	assert.Len(t, s.Messages(1), 20)
}
