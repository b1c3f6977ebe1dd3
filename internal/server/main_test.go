package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"vibefeed/internal/config"
	"vibefeed/internal/database"
	"vibefeed/internal/models"
	"vibefeed/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const testSecret = "server-test-secret-with-32-plus-chars"

type testEnv struct {
	srv   *Server
	app   *fiber.App
	store *testutil.MemoryStore
}

// envelope mirrors models.Envelope with the payload left raw.
type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Error      string             `json:"error"`
	Message    string             `json:"message"`
	Code       string             `json:"code"`
	Pagination *models.Pagination `json:"pagination"`
}

type authPayload struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       testSecret,
		Port:            "0",
		Env:             "test",
		AllowedOrigins:  "http://localhost:5173",
		MediaBackend:    "local",
		MaxUploadSizeMB: 10,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)

	store := testutil.NewMemoryStore()
	srv, err := NewServerWithDeps(testConfig(), db, nil, store)
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.shutdownFn()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &testEnv{srv: srv, app: srv.App(), store: store}
}

// do sends a JSON request (body may be nil) and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return e.send(t, req, token)
}

func (e *testEnv) send(t *testing.T, req *http.Request, token string) (int, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

// signup registers username through the API and returns the user and token.
func (e *testEnv) signup(t *testing.T, username string) (models.User, string) {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    username + "@example.com",
		"password": "password123",
		"username": username,
	}, "")
	require.Equal(t, http.StatusCreated, status, env.Error)
	var res authPayload
	decode(t, env.Data, &res)
	return res.User, res.Token
}

func decode(t *testing.T, raw json.RawMessage, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dest), string(raw))
}

type formFile struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

// multipartRequest builds a multipart/form-data request. The file part
// carries its own Content-Type instead of application/octet-stream.
func multipartRequest(t *testing.T, path string, fields map[string]string, file *formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}
