package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/bankhub/internal/domain/user"
	"github.com/geocoder89/bankhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}

// Fake repository implementation of the handlers.UsersStore interface

type fakeUsersRepo struct {
	createFn func(ctx context.Context, username, passwordHash, role string, initialBalance int64) (user.User, error)
	listFn   func(ctx context.Context) ([]user.User, error)
}

func (f *fakeUsersRepo) Create(ctx context.Context, username, passwordHash, role string, initialBalance int64) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, username, passwordHash, role, initialBalance)
	}

	return user.User{}, nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]user.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}

	return nil, nil
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h...)

	return r
}

func TestCreateUserHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		body           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
		wantUsername   string
	}{
		{
			name: "success",
			body: `{"username": "Ivan", "password": "super-secret"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, username, passwordHash, role string, initialBalance int64) (user.User, error) {
					if role != user.RoleUser {
						return user.User{}, errors.New("expected USER role")
					}

					if passwordHash == "super-secret" {
						return user.User{}, errors.New("password stored unhashed")
					}

					return user.User{
						ID:        newUUID(),
						Username:  username,
						Role:      role,
						CreatedAt: now,
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantUsername:   "Ivan",
		},
		{
			name: "duplicate_username",
			body: `{"username": "Ivan", "password": "super-secret"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, username, passwordHash, role string, initialBalance int64) (user.User, error) {
					return user.User{}, user.ErrUsernameTaken
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "validation_error_short_password",
			body: `{"username": "Ivan", "password": "short"}`,
			repoSetup: func(f *fakeUsersRepo) {
				// the repo should not be called for invalid payloads
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "validation_error_missing_username",
			body: `{"password": "super-secret"}`,
			repoSetup: func(f *fakeUsersRepo) {
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			body: `{"username": "Ivan", "password": "super-secret"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, username, passwordHash, role string, initialBalance int64) (user.User, error) {
					return user.User{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewUsersHandler(fakeRepo, 1)

			r := setupRouter(http.MethodPost, "/user/", h.CreateUser)

			req := httptest.NewRequest(http.MethodPost, "/user/", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantUsername != "" {
				var resp struct {
					Username string `json:"username"`
				}

				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}

				if resp.Username != tt.wantUsername {
					t.Fatalf("got username %q, want %q", resp.Username, tt.wantUsername)
				}
			}
		})
	}
}

func TestListUsersHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
		wantUsernames  []string
	}{
		{
			name: "success_creation_order",
			repoSetup: func(f *fakeUsersRepo) {
				f.listFn = func(ctx context.Context) ([]user.User, error) {
					return []user.User{
						{ID: newUUID(), Username: "U1", Role: user.RoleUser, CreatedAt: now.Add(-2 * time.Minute)},
						{ID: newUUID(), Username: "U2", Role: user.RoleUser, CreatedAt: now.Add(-time.Minute)},
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantUsernames:  []string{"U1", "U2"},
		},
		{
			name: "repo_error",
			repoSetup: func(f *fakeUsersRepo) {
				f.listFn = func(ctx context.Context) ([]user.User, error) {
					return nil, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewUsersHandler(fakeRepo, 1)
			r := setupRouter(http.MethodGet, "/user/list", h.ListUsers)

			req := httptest.NewRequest(http.MethodGet, "/user/list", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp []struct {
					Username string `json:"username"`
				}

				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}

				if len(resp) != len(tt.wantUsernames) {
					t.Fatalf("got %d users, want %d", len(resp), len(tt.wantUsernames))
				}

				for i, want := range tt.wantUsernames {
					if resp[i].Username != want {
						t.Fatalf("user %d: got %q, want %q", i, resp[i].Username, want)
					}
				}
			}
		})
	}
}

func TestListUsersHandler_PasswordHashNeverSerialized(t *testing.T) {
	fakeRepo := &fakeUsersRepo{
		listFn: func(ctx context.Context) ([]user.User, error) {
			return []user.User{
				{ID: newUUID(), Username: "U1", PasswordHash: "$2a$10$secret", Role: user.RoleUser},
			}, nil
		},
	}

	h := handlers.NewUsersHandler(fakeRepo, 1)
	r := setupRouter(http.MethodGet, "/user/list", h.ListUsers)

	req := httptest.NewRequest(http.MethodGet, "/user/list", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if bytes.Contains(w.Body.Bytes(), []byte("secret")) {
		t.Fatalf("response leaks password hash: %s", w.Body.String())
	}
}
