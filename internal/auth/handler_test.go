package auth_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tempus-hq/tempus/internal/auth"
	"github.com/tempus-hq/tempus/internal/shared"
	_ "github.com/tempus-hq/tempus/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]uuid.UUID
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]uuid.UUID)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type commitWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.committed {
		w.committed = true
		w.commit()
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

type stubInvalidator struct {
	invalidated []uuid.UUID
}

func (s *stubInvalidator) Invalidate(ctx context.Context, userID uuid.UUID) error {
	s.invalidated = append(s.invalidated, userID)
	return nil
}

func newTestServer(t *testing.T, repo auth.Repository, inv auth.Invalidator) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(slog.Default(), auth.NewService(repo), sessionManager, csrfManager, inv)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			req = req.WithContext(ctx)
			// Commit must land before the first write so the recorder
			// captures the session cookie.
			next.ServeHTTP(&commitWriter{
				ResponseWriter: w,
				commit: func() {
					_ = sessionManager.Commit(ctx, w, req, sess)
				},
			}, req)
		})
	})
	r.Route("/auth", func(r chi.Router) {
		handler.MountRoutes(r)
	})
	return r, sessionManager
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.User{
		ID:           uuid.New(),
		Email:        "user@test.local",
		PasswordHash: string(hashed),
		IsActive:     true,
	}
}

func TestLoginSuccess(t *testing.T) {
	user := activeUser(t, "correctpass")
	repo := &stubRepo{user: user}
	inv := &stubInvalidator{}
	srv, _ := newTestServer(t, repo, inv)

	body := `{"email":"user@test.local","password":"correctpass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	srv.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var payload struct {
		UserID    string `json:"user_id"`
		Email     string `json:"email"`
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, user.ID.String(), payload.UserID)
	assert.Equal(t, "user@test.local", payload.Email)
	assert.NotEmpty(t, payload.CSRFToken)

	// Session cookie issued and the login recorded.
	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Len(t, repo.sessions, 1)

	// Re-auth drops any stale permission snapshots.
	require.Len(t, inv.invalidated, 1)
	assert.Equal(t, user.ID, inv.invalidated[0])
}

func TestLoginWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t, &stubRepo{user: activeUser(t, "correctpass")}, &stubInvalidator{})

	body := `{"email":"user@test.local","password":"wrongpass1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	srv.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "correctpass")
	user.IsActive = false
	srv, _ := newTestServer(t, &stubRepo{user: user}, &stubInvalidator{})

	body := `{"email":"user@test.local","password":"correctpass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	srv.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubRepo{}, &stubInvalidator{})

	for _, body := range []string{
		`{"email":"not-an-email","password":"correctpass"}`,
		`{"email":"user@test.local","password":"short"}`,
		`{broken`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		srv.ServeHTTP(res, req)
		assert.Equal(t, http.StatusBadRequest, res.Code, body)
	}
}

func TestLogout(t *testing.T) {
	user := activeUser(t, "correctpass")
	repo := &stubRepo{user: user}
	srv, _ := newTestServer(t, repo, &stubInvalidator{})

	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"user@test.local","password":"correctpass"}`))
	login.Header.Set("Content-Type", "application/json")
	loginRes := httptest.NewRecorder()
	srv.ServeHTTP(loginRes, login)
	require.Equal(t, http.StatusOK, loginRes.Code)
	cookies := loginRes.Result().Cookies()
	require.NotEmpty(t, cookies)

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	for _, c := range cookies {
		logout.AddCookie(c)
	}
	logoutRes := httptest.NewRecorder()
	srv.ServeHTTP(logoutRes, logout)

	assert.Equal(t, http.StatusNoContent, logoutRes.Code)
	assert.Empty(t, repo.sessions)
}

func TestCSRFTokenEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubRepo{}, &stubInvalidator{})

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	res := httptest.NewRecorder()
	srv.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload["csrf_token"])
}
