package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"vibefeed/internal/feed"
	"vibefeed/internal/models"

	"github.com/gorilla/websocket"
)

// ErrNotLoggedIn is returned by operations that act as the session user.
var ErrNotLoggedIn = errors.New("client: not logged in")

const eventMessage = "message"

type event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type messageEvent struct {
	ConversationID uint           `json:"conversationId"`
	Message        models.Message `json:"message"`
}

// Session runs commands against the server and applies the confirmed
// results to a Store. Nothing is written locally before the server answers,
// so a failed call leaves the Store untouched.
type Session struct {
	client *Client
	store  *Store
	dialer *websocket.Dialer

	mu   sync.RWMutex
	self uint
}

// NewSession binds a client to a store.
func NewSession(c *Client, store *Store) *Session {
	return &Session{client: c, store: store, dialer: websocket.DefaultDialer}
}

// Store returns the session's store.
func (s *Session) Store() *Store { return s.store }

// UserID returns the logged-in user, or 0.
func (s *Session) UserID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self
}

func (s *Session) setUser(u models.User) {
	s.store.PutUser(u)
	s.mu.Lock()
	s.self = u.ID
	s.mu.Unlock()
}

func (s *Session) requireUser() (uint, error) {
	id := s.UserID()
	if id == 0 {
		return 0, ErrNotLoggedIn
	}
	return id, nil
}

// Signup registers and logs in.
func (s *Session) Signup(ctx context.Context, req SignupRequest) (models.User, error) {
	res, err := s.client.Signup(ctx, req)
	if err != nil {
		return models.User{}, err
	}
	s.setUser(res.User)
	return res.User, nil
}

// Login authenticates the session.
func (s *Session) Login(ctx context.Context, email, password string) (models.User, error) {
	res, err := s.client.Login(ctx, email, password)
	if err != nil {
		return models.User{}, err
	}
	s.setUser(res.User)
	return res.User, nil
}

// Logout drops the token and the session user.
func (s *Session) Logout(ctx context.Context) error {
	err := s.client.Logout(ctx)
	s.mu.Lock()
	s.self = 0
	s.mu.Unlock()
	return err
}

// UpdateProfile patches the session user and stores the server's copy.
func (s *Session) UpdateProfile(ctx context.Context, patch models.UserPatch) (models.User, error) {
	id, err := s.requireUser()
	if err != nil {
		return models.User{}, err
	}
	u, err := s.client.UpdateUser(ctx, id, patch)
	if err != nil {
		return models.User{}, err
	}
	s.store.PutUser(*u)
	return *u, nil
}

// LoadFeed fetches a page of posts into the store and returns it.
func (s *Session) LoadFeed(ctx context.Context, f feed.Filter, page feed.PageRequest) ([]models.Post, models.Pagination, error) {
	posts, meta, err := s.client.ListPosts(ctx, f, page)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	for _, p := range posts {
		if p.User != nil {
			s.store.PutUser(*p.User)
		}
	}
	s.store.PutPosts(posts...)
	return posts, meta, nil
}

// CreatePost publishes as the session user and stores the created post.
func (s *Session) CreatePost(ctx context.Context, in NewPost) (models.Post, error) {
	id, err := s.requireUser()
	if err != nil {
		return models.Post{}, err
	}
	p, err := s.client.CreatePost(ctx, id, in)
	if err != nil {
		return models.Post{}, err
	}
	s.store.PutPosts(*p)
	return *p, nil
}

// LikePost likes on the server, then mirrors the server's counter and flag.
func (s *Session) LikePost(ctx context.Context, id uint) (models.Post, error) {
	return s.confirmPost(s.client.LikePost(ctx, id))
}

// UnlikePost removes the like on the server, then mirrors the result.
func (s *Session) UnlikePost(ctx context.Context, id uint) (models.Post, error) {
	return s.confirmPost(s.client.UnlikePost(ctx, id))
}

// SavePost bookmarks on the server, then mirrors the result.
func (s *Session) SavePost(ctx context.Context, id uint) (models.Post, error) {
	return s.confirmPost(s.client.SavePost(ctx, id))
}

// UnsavePost removes the bookmark on the server, then mirrors the result.
func (s *Session) UnsavePost(ctx context.Context, id uint) (models.Post, error) {
	return s.confirmPost(s.client.UnsavePost(ctx, id))
}

func (s *Session) confirmPost(p *models.Post, err error) (models.Post, error) {
	if err != nil {
		return models.Post{}, err
	}
	s.store.PutPosts(*p)
	return *p, nil
}

// LoadConversations refreshes the conversation list.
func (s *Session) LoadConversations(ctx context.Context) ([]models.Conversation, error) {
	convs, err := s.client.Conversations(ctx)
	if err != nil {
		return nil, err
	}
	s.store.PutConversations(convs...)
	return convs, nil
}

// StartConversation opens or reuses a conversation with the given users.
func (s *Session) StartConversation(ctx context.Context, participantIDs ...uint) (models.Conversation, error) {
	conv, err := s.client.StartConversation(ctx, participantIDs...)
	if err != nil {
		return models.Conversation{}, err
	}
	s.store.PutConversations(*conv)
	return *conv, nil
}

// LoadMessages replaces the cached history with a page from the server.
// Reading marks the conversation read on the server, so the local unread
// count is cleared too.
func (s *Session) LoadMessages(ctx context.Context, convID uint, page feed.PageRequest) ([]models.Message, error) {
	msgs, _, err := s.client.Messages(ctx, convID, page)
	if err != nil {
		return nil, err
	}
	s.store.SetMessages(convID, msgs)
	s.store.MarkRead(convID)
	return msgs, nil
}

// SendMessage sends text and appends the stored message once the server
// accepts it.
func (s *Session) SendMessage(ctx context.Context, convID uint, text string) (models.Message, error) {
	msg, err := s.client.SendMessage(ctx, convID, text)
	if err != nil {
		return models.Message{}, err
	}
	s.store.PutMessage(*msg, true)
	return *msg, nil
}

// Listen connects to the realtime socket and applies pushed messages to the
// store until ctx is done or the connection drops.
func (s *Session) Listen(ctx context.Context) error {
	target, err := websocketURL(s.client.baseURL)
	if err != nil {
		return err
	}
	header := http.Header{}
	if token := s.client.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return fmt.Errorf("dial websocket: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		s.apply(raw)
	}
}

func (s *Session) apply(raw []byte) {
	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Type != eventMessage {
		return
	}
	var payload messageEvent
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return
	}
	msg := payload.Message
	if msg.ConversationID == 0 {
		msg.ConversationID = payload.ConversationID
	}
	s.store.PutMessage(msg, msg.SenderID == s.UserID())
}

func websocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	return u.String(), nil
}
