package client

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"

	"vibefeed/internal/feed"
	"vibefeed/internal/models"
)

var (
	ErrUnknownUser         = errors.New("client: unknown user")
	ErrUnknownPost         = errors.New("client: unknown post")
	ErrUnknownConversation = errors.New("client: unknown conversation")
)

// Store is the local mirror of the four collections. Posts are kept newest
// first, the order the feed shows them. Every method is safe for concurrent
// use and returns copies.
type Store struct {
	mu            sync.RWMutex
	users         map[uint]models.User
	posts         []models.Post
	conversations []models.Conversation
	messages      map[uint][]models.Message
	liked         map[uint]bool
	saved         map[uint]bool
	now           func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[uint]models.User),
		messages: make(map[uint][]models.Message),
		liked:    make(map[uint]bool),
		saved:    make(map[uint]bool),
		now:      time.Now,
	}
}

// User returns the cached user with id.
func (s *Store) User(id uint) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

// UpdateUser merges patch into the cached user and stamps UpdatedAt.
func (s *Store) UpdateUser(id uint, patch models.UserPatch) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrUnknownUser
	}
	patch.Apply(&u)
	u.UpdatedAt = s.now()
	s.users[id] = u
	return u, nil
}

// Posts returns every cached post, newest first.
func (s *Store) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decorated(s.posts)
}

// Post returns the cached post with id.
func (s *Store) Post(id uint) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.postIndex(id)
	if i < 0 {
		return models.Post{}, false
	}
	return s.decorate(s.posts[i]), true
}

// Feed filters and paginates the cached posts the same way the server does.
func (s *Store) Feed(f feed.Filter, page feed.PageRequest) ([]models.Post, models.Pagination) {
	s.mu.RLock()
	inserted := s.decorated(s.posts)
	s.mu.RUnlock()

	// feed.Apply wants insertion order; ids grow with insertion.
	slices.SortStableFunc(inserted, func(a, b models.Post) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return feed.Apply(inserted, f, page)
}

// AddPost prepends p with the next id (max existing + 1) and zeroed
// engagement counters.
func (s *Store) AddPost(p models.Post) models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	var maxID uint
	for _, existing := range s.posts {
		maxID = max(maxID, existing.ID)
	}
	p.ID = maxID + 1
	p.Likes, p.Comments, p.Shares, p.Views = 0, 0, 0, 0
	if p.Type == "" {
		p.Type = models.PostTypeText
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.posts = append([]models.Post{p}, s.posts...)
	return s.decorate(p)
}

// PutPosts merges server posts into the cache. Known ids are replaced in
// place; new ones are placed by creation time. Liked and saved flags are
// taken from the server copy.
func (s *Store) PutPosts(posts ...models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range posts {
		s.putPost(p)
	}
}

func (s *Store) putPost(p models.Post) {
	s.liked[p.ID] = p.Liked
	s.saved[p.ID] = p.Saved
	if i := s.postIndex(p.ID); i >= 0 {
		s.posts[i] = p
		return
	}
	at := len(s.posts)
	for i, existing := range s.posts {
		if p.CreatedAt.After(existing.CreatedAt) || (p.CreatedAt.Equal(existing.CreatedAt) && p.ID > existing.ID) {
			at = i
			break
		}
	}
	s.posts = slices.Insert(s.posts, at, p)
}

// LikePost counts a like once per post and records it in the liked set.
func (s *Store) LikePost(id uint) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		return models.Post{}, ErrUnknownPost
	}
	if !s.liked[id] {
		s.liked[id] = true
		s.posts[i].Likes++
	}
	return s.decorate(s.posts[i]), nil
}

// UnlikePost removes a like. The counter never drops below zero.
func (s *Store) UnlikePost(id uint) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		return models.Post{}, ErrUnknownPost
	}
	if s.liked[id] {
		delete(s.liked, id)
		if s.posts[i].Likes > 0 {
			s.posts[i].Likes--
		}
	}
	return s.decorate(s.posts[i]), nil
}

// SavePost adds id to the saved set. Saving twice is a no-op.
func (s *Store) SavePost(id uint) (models.Post, error) {
	return s.setSaved(id, true)
}

// UnsavePost removes id from the saved set.
func (s *Store) UnsavePost(id uint) (models.Post, error) {
	return s.setSaved(id, false)
}

func (s *Store) setSaved(id uint, saved bool) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		return models.Post{}, ErrUnknownPost
	}
	if saved {
		s.saved[id] = true
	} else {
		delete(s.saved, id)
	}
	return s.decorate(s.posts[i]), nil
}

// IsLiked reports whether the post is in the liked set.
func (s *Store) IsLiked(id uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liked[id]
}

// IsSaved reports whether the post is in the saved set.
func (s *Store) IsSaved(id uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saved[id]
}

// Conversations returns the cached conversations.
func (s *Store) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.conversations)
}

// Conversation returns the cached conversation with id.
func (s *Store) Conversation(id uint) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.conversationIndex(id)
	if i < 0 {
		return models.Conversation{}, false
	}
	return s.conversations[i], true
}

// PutConversations inserts or replaces conversations by id.
func (s *Store) PutConversations(convs ...models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range convs {
		if i := s.conversationIndex(c.ID); i >= 0 {
			s.conversations[i] = c
			continue
		}
		s.conversations = append(s.conversations, c)
	}
}

// Messages returns the cached history of a conversation, oldest first.
func (s *Store) Messages(convID uint) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages[convID])
}

// SendMessage appends an own message to a known conversation, sets the
// conversation's last message and clears its unread count.
func (s *Store) SendMessage(convID, senderID uint, text string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationIndex(convID) < 0 {
		return models.Message{}, ErrUnknownConversation
	}
	var maxID uint
	for _, m := range s.messages[convID] {
		maxID = max(maxID, m.ID)
	}
	msg := models.Message{
		ID:             maxID + 1,
		ConversationID: convID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      s.now(),
		IsOwn:          true,
	}
	s.appendMessage(msg, true)
	return msg, nil
}

// PutMessage records a server message, skipping ids already cached. own
// messages clear the unread count; others from peers increment it.
func (s *Store) PutMessage(msg models.Message, own bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages[msg.ConversationID] {
		if m.ID == msg.ID {
			return
		}
	}
	msg.IsOwn = own
	s.appendMessage(msg, own)
}

// SetMessages replaces the cached history of a conversation.
func (s *Store) SetMessages(convID uint, msgs []models.Message) {
	s.mu.Lock()
	s.messages[convID] = slices.Clone(msgs)
	s.mu.Unlock()
}

// MarkRead clears the unread count of a cached conversation.
func (s *Store) MarkRead(convID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.conversationIndex(convID); i >= 0 {
		s.conversations[i].UnreadCount = 0
	}
}

func (s *Store) appendMessage(msg models.Message, own bool) {
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	i := s.conversationIndex(msg.ConversationID)
	if i < 0 {
		return
	}
	at := msg.CreatedAt
	s.conversations[i].LastMessage = msg.Text
	s.conversations[i].LastMessageAt = &at
	if own {
		s.conversations[i].UnreadCount = 0
	} else {
		s.conversations[i].UnreadCount++
	}
}

func (s *Store) postIndex(id uint) int {
	return slices.IndexFunc(s.posts, func(p models.Post) bool { return p.ID == id })
}

func (s *Store) conversationIndex(id uint) int {
	return slices.IndexFunc(s.conversations, func(c models.Conversation) bool { return c.ID == id })
}

func (s *Store) decorate(p models.Post) models.Post {
	p.Liked = s.liked[p.ID]
	p.Saved = s.saved[p.ID]
	return p
}

func (s *Store) decorated(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		out[i] = s.decorate(p)
	}
	return out
}
