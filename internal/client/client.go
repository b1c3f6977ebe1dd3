// Package client is a Go SDK for the vibefeed API.
//
// Client speaks the HTTP contract. Store is a local mirror of users, posts,
// conversations and messages with the same mutators the web front end uses.
// Session ties the two together: it only writes to the Store what the server
// has confirmed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"vibefeed/internal/feed"
	"vibefeed/internal/models"
	"vibefeed/internal/search"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("vibefeed: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("vibefeed: %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Error      string             `json:"error"`
	Message    string             `json:"message"`
	Code       string             `json:"code"`
	Pagination *models.Pagination `json:"pagination"`
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// NewPost describes a post to create. Media is optional and sent as a
// multipart upload when set.
type NewPost struct {
	Type     models.PostType
	Content  string
	Tags     []string
	Category string
	Media    *Upload
}

// Upload is a file sent in a multipart field.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// Client calls the vibefeed HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New returns a Client for the API rooted at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token sent with each request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Signup registers a user and keeps the returned token.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	var res AuthResult
	if _, err := c.doJSON(ctx, http.MethodPost, "/api/auth/signup", nil, req, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var res AuthResult
	if _, err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", nil, body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Logout tells the server and forgets the token locally. The server does
// not revoke it.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
	c.SetToken("")
	return err
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if _, err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a profile by id.
func (c *Client) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if _, err := c.doJSON(ctx, http.MethodGet, userPath(id), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a profile by username.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	path := "/api/users/username/" + url.PathEscape(username)
	if _, err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser patches the profile of id. Only the token owner may do this.
func (c *Client) UpdateUser(ctx context.Context, id uint, patch models.UserPatch) (*models.User, error) {
	var u models.User
	if _, err := c.doJSON(ctx, http.MethodPut, userPath(id), nil, patch, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UploadAvatar replaces the avatar of id and returns the updated user.
func (c *Client) UploadAvatar(ctx context.Context, id uint, file Upload) (*models.User, error) {
	body, contentType, err := multipartBody(nil, "avatar", &file)
	if err != nil {
		return nil, err
	}
	var res struct {
		AvatarURL string      `json:"avatarUrl"`
		User      models.User `json:"user"`
	}
	if _, err := c.do(ctx, http.MethodPost, userPath(id)+"/avatar", nil, body, contentType, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// ListPosts returns one page of the feed.
func (c *Client) ListPosts(ctx context.Context, f feed.Filter, page feed.PageRequest) ([]models.Post, models.Pagination, error) {
	q := pageQuery(page)
	if f.UserID != 0 {
		q.Set("userId", strconv.FormatUint(uint64(f.UserID), 10))
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}

	var posts []models.Post
	env, err := c.doJSON(ctx, http.MethodGet, "/api/posts", q, nil, &posts)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return posts, pagination(env), nil
}

// GetPost fetches a single post.
func (c *Client) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	if _, err := c.doJSON(ctx, http.MethodGet, postPath(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost publishes a post as userID. Posts with media go out as
// multipart, the rest as JSON.
func (c *Client) CreatePost(ctx context.Context, userID uint, in NewPost) (*models.Post, error) {
	path := userPath(userID) + "/posts"
	var p models.Post

	if in.Media == nil {
		body := map[string]any{
			"type":     in.Type,
			"content":  in.Content,
			"tags":     in.Tags,
			"category": in.Category,
		}
		if _, err := c.doJSON(ctx, http.MethodPost, path, nil, body, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}

	fields := map[string]string{
		"type":     string(in.Type),
		"content":  in.Content,
		"category": in.Category,
	}
	if len(in.Tags) > 0 {
		raw, err := json.Marshal(in.Tags)
		if err != nil {
			return nil, err
		}
		fields["tags"] = string(raw)
	}
	body, contentType, err := multipartBody(fields, "media", in.Media)
	if err != nil {
		return nil, err
	}
	if _, err := c.do(ctx, http.MethodPost, path, nil, body, contentType, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LikePost likes a post and returns its server state.
func (c *Client) LikePost(ctx context.Context, id uint) (*models.Post, error) {
	return c.postAction(ctx, http.MethodPost, id, "like")
}

// UnlikePost removes a like.
func (c *Client) UnlikePost(ctx context.Context, id uint) (*models.Post, error) {
	return c.postAction(ctx, http.MethodDelete, id, "like")
}

// SavePost bookmarks a post.
func (c *Client) SavePost(ctx context.Context, id uint) (*models.Post, error) {
	return c.postAction(ctx, http.MethodPost, id, "save")
}

// UnsavePost removes a bookmark.
func (c *Client) UnsavePost(ctx context.Context, id uint) (*models.Post, error) {
	return c.postAction(ctx, http.MethodDelete, id, "save")
}

func (c *Client) postAction(ctx context.Context, method string, id uint, action string) (*models.Post, error) {
	var p models.Post
	if _, err := c.doJSON(ctx, method, postPath(id)+"/"+action, nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SavedPosts returns one page of the caller's bookmarks.
func (c *Client) SavedPosts(ctx context.Context, page feed.PageRequest) ([]models.Post, models.Pagination, error) {
	var posts []models.Post
	env, err := c.doJSON(ctx, http.MethodGet, "/api/users/me/saved", pageQuery(page), nil, &posts)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return posts, pagination(env), nil
}

// Search queries users and posts. scope may be empty for all.
func (c *Client) Search(ctx context.Context, query string, scope search.Scope) (*search.Result, error) {
	q := url.Values{"q": {query}}
	if scope != "" {
		q.Set("type", string(scope))
	}
	var res search.Result
	if _, err := c.doJSON(ctx, http.MethodGet, "/api/search", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Conversations lists the caller's conversations with unread counts.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	if _, err := c.doJSON(ctx, http.MethodGet, "/api/conversations", nil, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// StartConversation opens, or reuses, a conversation with the given users.
func (c *Client) StartConversation(ctx context.Context, participantIDs ...uint) (*models.Conversation, error) {
	body := map[string][]uint{"participantIds": participantIDs}
	var conv models.Conversation
	if _, err := c.doJSON(ctx, http.MethodPost, "/api/conversations", nil, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Messages returns one page of a conversation's history.
func (c *Client) Messages(ctx context.Context, convID uint, page feed.PageRequest) ([]models.Message, models.Pagination, error) {
	var msgs []models.Message
	env, err := c.doJSON(ctx, http.MethodGet, conversationPath(convID)+"/messages", pageQuery(page), nil, &msgs)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return msgs, pagination(env), nil
}

// SendMessage posts text to a conversation.
func (c *Client) SendMessage(ctx context.Context, convID uint, text string) (*models.Message, error) {
	var msg models.Message
	body := map[string]string{"text": text}
	if _, err := c.doJSON(ctx, http.MethodPost, conversationPath(convID)+"/messages", nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body, out any) (*envelope, error) {
	var reader io.Reader
	contentType := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, q, reader, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string, out any) (*envelope, error) {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Error}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &env, nil
}

func multipartBody(fields map[string]string, fileField string, file *Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, file.Filename))
		ct := file.ContentType
		if ct == "" {
			ct = http.DetectContentType(file.Content)
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func pagination(env *envelope) models.Pagination {
	if env == nil || env.Pagination == nil {
		return models.Pagination{}
	}
	return *env.Pagination
}

func pageQuery(page feed.PageRequest) url.Values {
	q := url.Values{}
	if page.Page > 0 {
		q.Set("page", strconv.Itoa(page.Page))
	}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	return q
}

func userPath(id uint) string         { return "/api/users/" + strconv.FormatUint(uint64(id), 10) }
func postPath(id uint) string         { return "/api/posts/" + strconv.FormatUint(uint64(id), 10) }
func conversationPath(id uint) string { return "/api/conversations/" + strconv.FormatUint(uint64(id), 10) }
