package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/posts-api/internal/config"
	"github.com/deppfellow/posts-api/internal/errs"
	"github.com/deppfellow/posts-api/internal/handler"
	"github.com/deppfellow/posts-api/internal/lib/token"
	"github.com/deppfellow/posts-api/internal/middleware"
	"github.com/deppfellow/posts-api/internal/model"
	"github.com/deppfellow/posts-api/internal/server"
	"github.com/deppfellow/posts-api/internal/service"
	"github.com/deppfellow/posts-api/internal/sqlerr"
	"github.com/deppfellow/posts-api/internal/storage"
)

// memStore is an in-memory service.PostStore with the same matching rules
// as the SQL repository.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*model.Post
	users  map[int64]model.User
	calls  int
	fault  error
}

func newMemStore() *memStore {
	return &memStore{
		nextID: 1,
		posts:  make(map[int64]*model.Post),
		users: map[int64]model.User{
			7: {ID: 7, Email: "seven@example.com", Name: "Seven"},
			8: {ID: 8, Email: "eight@example.com", Name: "Eight"},
		},
	}
}

func (m *memStore) seed(userID int64, content string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	now := time.Now().UTC()
	m.posts[id] = &model.Post{ID: id, Content: content, UserID: userID, Status: model.PostStatusActive, CreatedAt: now, UpdatedAt: now}
	return id
}

func (m *memStore) withAuthor(p model.Post) model.Post {
	u := m.users[p.UserID]
	p.User = &u
	return p
}

func (m *memStore) List(_ context.Context, limit, offset int) ([]model.Post, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fault != nil {
		return nil, 0, m.fault
	}

	var live []model.Post
	for id := int64(1); id < m.nextID; id++ {
		if p, ok := m.posts[id]; ok && p.DeletedAt == nil {
			live = append(live, m.withAuthor(*p))
		}
	}
	count := int64(len(live))

	if offset > len(live) {
		offset = len(live)
	}
	live = live[offset:]
	if limit > 0 && limit < len(live) {
		live = live[:limit]
	}
	return live, count, nil
}

func (m *memStore) Create(_ context.Context, userID int64, content string) (*model.Post, error) {
	m.mu.Lock()
	m.calls++
	_, known := m.users[userID]
	m.mu.Unlock()

	if !known {
		return nil, sqlerr.Wrap(&pgconn.PgError{Code: "23503", TableName: "posts", ConstraintName: "posts_user_id_fkey"})
	}

	id := m.seed(userID, content)
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *m.posts[id]
	return &p, nil
}

func (m *memStore) FindByID(_ context.Context, id int64) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	found := m.withAuthor(*p)
	return &found, nil
}

func (m *memStore) Update(_ context.Context, id, userID int64, content string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	p, ok := m.posts[id]
	if !ok || p.UserID != userID {
		return 0, nil
	}
	p.Content, p.UpdatedAt = content, at
	return 1, nil
}

func (m *memStore) SoftDelete(_ context.Context, id, userID int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	p, ok := m.posts[id]
	if !ok || p.UserID != userID {
		return 0, nil
	}
	p.Status, p.DeletedAt, p.UpdatedAt = model.PostStatusDeleted, &at, at
	return 1, nil
}

type testAPI struct {
	echo   *echo.Echo
	store  *memStore
	tokens *token.Manager
	server *server.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := config.Defaults()
	cfg.Auth.JWTSecret = "router-test-secret-0123"
	cfg.Storage.Dir = t.TempDir()
	cfg.Server.RateLimitPerSecond = 0
	cfg.Observability.HealthChecks.Enabled = false

	store, err := storage.NewLocal(cfg.Storage.Dir)
	require.NoError(t, err)

	logger := zerolog.Nop()
	s := &server.Server{Config: cfg, Logger: &logger, Storage: store}

	mem := newMemStore()
	services := &service.Services{Posts: service.NewPostService(mem)}
	tokens := token.NewManager(cfg.Auth)

	e := NewRouter(s, handler.NewHandlers(s, services), middleware.NewMiddlewares(s, tokens))
	return &testAPI{echo: e, store: mem, tokens: tokens, server: s}
}

func (api *testAPI) bearer(t *testing.T, userID int64) string {
	t.Helper()
	raw, _, err := api.tokens.Issue(userID, "")
	require.NoError(t, err)
	return "Bearer " + raw
}

func (api *testAPI) do(t *testing.T, method, target, auth string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	api.echo.ServeHTTP(rec, req)
	return rec
}

func (api *testAPI) doJSON(t *testing.T, method, target, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	return api.do(t, method, target, auth, strings.NewReader(body), echo.MIMEApplicationJSON)
}

func TestGetPost_Absent(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/posts/42", "", nil, "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, `{}`, rec.Body.String())
}

func TestGetPost_NonIntegerIDNeverReachesHandler(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/posts/abc", "", nil, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, api.store.calls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "BAD_REQUEST", body["code"])
}

func TestGetPost_NonPositiveIDNeverReachesHandler(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	for _, target := range []string{"/posts/0", "/posts/-3"} {
		rec := api.do(t, http.MethodGet, target, "", nil, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, target)

		var body errs.HTTPError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, []errs.FieldError{{Field: "id", Error: "must be greater than 0"}}, body.Errors, target)
	}
	require.Zero(t, api.store.calls)
}

func TestGetPost_EmbedsAuthorWithoutPassword(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	id := api.store.seed(7, "hello")

	rec := api.do(t, http.MethodGet, "/posts/1", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, id)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "hello", body["content"])

	author, ok := body["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "seven@example.com", author["email"])
	require.NotContains(t, author, "password")
}

func TestCreatePost(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	rec := api.doJSON(t, http.MethodPost, "/posts", api.bearer(t, 7), `{"content":"hi"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var post model.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	require.EqualValues(t, 7, post.UserID)
	require.Equal(t, "hi", post.Content)
	require.Equal(t, model.PostStatusActive, post.Status)
}

func TestCreatePost_Failures(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	t.Run("no token", func(t *testing.T) {
		rec := api.doJSON(t, http.MethodPost, "/posts", "", `{"content":"hi"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("blank content", func(t *testing.T) {
		rec := api.doJSON(t, http.MethodPost, "/posts", api.bearer(t, 7), `{"content":"  "}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown author", func(t *testing.T) {
		rec := api.doJSON(t, http.MethodPost, "/posts", api.bearer(t, 99), `{"content":"hi"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"message":"The referenced user does not exist"}`, rec.Body.String())
	})
}

func TestListPosts(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.store.seed(7, "one")
	api.store.seed(8, "two")
	api.store.seed(7, "three")

	rec := api.do(t, http.MethodGet, "/posts?limit=2&offset=1", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page model.PostPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.EqualValues(t, 3, page.Count)
	require.Len(t, page.Rows, 2)
	require.Equal(t, "two", page.Rows[0].Content)

	rec = api.do(t, http.MethodGet, "/posts?limit=500", "", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPosts_EmptyIsArray(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/posts", "", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"rows":[],"count":0}`, rec.Body.String())
}

func TestListPosts_FaultIs500(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.store.fault = errors.New("failed to list posts: connection refused")

	rec := api.do(t, http.MethodGet, "/posts", "", nil, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"message":"failed to list posts: connection refused"}`, rec.Body.String())
}

func TestUpdatePost(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	id := api.store.seed(8, "not yours")
	require.EqualValues(t, 1, id)

	rec := api.doJSON(t, http.MethodPut, "/posts/1", api.bearer(t, 7), `{"content":"mine now"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, `{}`, rec.Body.String())

	rec = api.doJSON(t, http.MethodPut, "/posts/77", api.bearer(t, 7), `{"content":"nothing here"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, `{}`, rec.Body.String())

	rec = api.doJSON(t, http.MethodPut, "/posts/1", api.bearer(t, 8), `{"id":99,"content":"edited"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `1`, rec.Body.String())
	require.Equal(t, "edited", api.store.posts[1].Content)
}

func TestDeletePost(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.store.seed(7, "bye")

	rec := api.do(t, http.MethodDelete, "/posts/1", api.bearer(t, 8), nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodDelete, "/posts/1", api.bearer(t, 7), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `1`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/posts/1", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var post model.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	require.Equal(t, model.PostStatusDeleted, post.Status)
	require.NotNil(t, post.DeletedAt)

	rec = api.do(t, http.MethodGet, "/posts", "", nil, "")
	require.JSONEq(t, `{"rows":[],"count":0}`, rec.Body.String())
}

func TestPostFile(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "cat.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("meow"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := api.do(t, http.MethodGet, "/posts/1/file", api.bearer(t, 7), body, w.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code)

	var file middleware.UploadedFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))
	require.Equal(t, "cat.jpg", file.OriginalName)
	require.True(t, strings.HasSuffix(file.FileName, ".jpg"))
	require.EqualValues(t, 4, file.Size)

	rec = api.do(t, http.MethodGet, "/posts/1/file", api.bearer(t, 7), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `null`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/posts/1/file", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSystemRoutes(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/status", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = api.do(t, http.MethodGet, "/docs", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/static/openapi.json")

	rec = api.do(t, http.MethodGet, "/static/openapi.json", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, json.Valid(rec.Body.Bytes()))
}

func TestHealth_UnhealthyWithoutDependencies(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.server.Config.Observability.HealthChecks.Enabled = true

	rec := api.do(t, http.MethodGet, "/status", "", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string                       `json:"status"`
		Checks map[string]map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "unhealthy", body.Status)
	require.Equal(t, "not configured", body.Checks["database"]["error"])
	require.Equal(t, "not configured", body.Checks["redis"]["error"])
}
