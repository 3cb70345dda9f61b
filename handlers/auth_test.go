package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/models"
)

type stubUserRepo struct {
	users  map[uint]*models.User
	nextID uint
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[uint]*models.User), nextID: 1}
}

func (s *stubUserRepo) Create(user *models.User) error {
	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = user
	return nil
}

func (s *stubUserRepo) GetByID(id uint) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (s *stubUserRepo) GetByUsername(username string) (*models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) CountAll() (int64, error) {
	return int64(len(s.users)), nil
}

func seedOperator(t *testing.T, repo *stubUserRepo, username, password string) *models.User {
	t.Helper()
	user := &models.User{Username: username, IsAdmin: true}
	require.NoError(t, user.SetPassword(password))
	require.NoError(t, repo.Create(user))
	return user
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestLoginIssuesTokenForValidCredentials(t *testing.T) {
	repo := newStubUserRepo()
	seedOperator(t, repo, "admin", "correct horse battery")
	h := NewAuthHandler(repo, []byte("test-secret"))

	rec := postJSON(t, h.Login, "/api/auth/login", LoginPayload{
		Username: "admin",
		Password: "correct horse battery",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.Username)
	assert.True(t, resp.IsAdmin)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newStubUserRepo()
	seedOperator(t, repo, "admin", "correct horse battery")
	h := NewAuthHandler(repo, []byte("test-secret"))

	for _, payload := range []LoginPayload{
		{Username: "admin", Password: "wrong"},
		{Username: "ghost", Password: "correct horse battery"},
	} {
		rec := postJSON(t, h.Login, "/api/auth/login", payload)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestSetupOnlyWorksOnce(t *testing.T) {
	repo := newStubUserRepo()
	h := NewAuthHandler(repo, []byte("test-secret"))

	rec := postJSON(t, h.Setup, "/api/auth/setup", SetupPayload{Username: "admin", Password: "longenough"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, h.Setup, "/api/auth/setup", SetupPayload{Username: "second", Password: "longenough"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSetupRejectsShortPassword(t *testing.T) {
	h := NewAuthHandler(newStubUserRepo(), []byte("test-secret"))
	rec := postJSON(t, h.Setup, "/api/auth/setup", SetupPayload{Username: "admin", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddlewareRoundTrip(t *testing.T) {
	repo := newStubUserRepo()
	seedOperator(t, repo, "admin", "correct horse battery")
	secret := []byte("test-secret")
	h := NewAuthHandler(repo, secret)

	rec := postJSON(t, h.Login, "/api/auth/login", LoginPayload{
		Username: "admin",
		Password: "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	protected := AuthMiddleware(repo, secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(UserContextKey).(*models.User)
		require.True(t, ok)
		assert.Equal(t, "admin", user.Username)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	out := httptest.NewRecorder()
	protected.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	repo := newStubUserRepo()
	protected := AuthMiddleware(repo, []byte("test-secret"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without valid auth")
	}))

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"garbage token":  "Bearer not.a.jwt",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		out := httptest.NewRecorder()
		protected.ServeHTTP(out, req)
		assert.Equal(t, http.StatusUnauthorized, out.Code, name)
	}
}
