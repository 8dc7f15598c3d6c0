package integration__test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/bankhub/internal/auth"
	"github.com/geocoder89/bankhub/internal/cache"
	"github.com/geocoder89/bankhub/internal/config"
	"github.com/geocoder89/bankhub/internal/domain/user"
	apphttp "github.com/geocoder89/bankhub/internal/http"
	"github.com/geocoder89/bankhub/internal/repo/memory"
	"github.com/geocoder89/bankhub/internal/security"
	"github.com/gin-gonic/gin"
)

const (
	adminPassword = "admin-secret-pw"
	userPassword  = "user-secret-pw"
)

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		Port:                0,
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		InitialBalance:      1,
	}
}

// setupTestRouter runs the full engine against the in-memory bank, with an
// ADMIN principal pre-seeded the way cmd/api seeds one against postgres.
func setupTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()

	hash, err := security.HashPassword(adminPassword)

	if err != nil {
		t.Fatalf("failed to hash admin password: %v", err)
	}

	if _, err := store.Create(context.Background(), "admin", hash, user.RoleAdmin, 1); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := testConfig()

	router := apphttp.New(apphttp.Deps{
		Log:         logger,
		Cfg:         cfg,
		Users:       store,
		Credentials: store,
		Accounts:    store,
		Transfers:   store,
		Cache:       cache.NewMemory(),
		JWT:         auth.NewManager(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute),
	})

	return router, store
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func doRequest(router http.Handler, method, path, body, authHeader string) *httptest.ResponseRecorder {
	var reader io.Reader

	if body != "" {
		reader = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, reader)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

// registerUser creates a USER principal through the API and returns it along
// with its provisioned account id.

func registerUser(t *testing.T, router http.Handler, store *memory.Store, username string) (userID, accountID string) {
	t.Helper()

	body := fmt.Sprintf(`{"username": %q, "password": %q}`, username, userPassword)

	w := doRequest(router, http.MethodPost, "/user/", body, basicAuth("admin", adminPassword))

	if w.Code != http.StatusOK {
		t.Fatalf("failed to register %s: status=%d body=%s", username, w.Code, w.Body.String())
	}

	var created struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}

	mustReadJSON(t, w, &created)

	if created.Username != username {
		t.Fatalf("got username %q, want %q", created.Username, username)
	}

	a, err := store.AccountByUserID(context.Background(), created.ID)

	if err != nil {
		t.Fatalf("no account provisioned for %s: %v", username, err)
	}

	return created.ID, a.ID
}

type accountResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	router, _ := setupTestRouter(t)

	paths := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/user/", `{"username": "Ivan", "password": "user-secret-pw"}`},
		{http.MethodGet, "/user/list", ""},
		{http.MethodGet, "/account/some-id", ""},
		{http.MethodPost, "/account/deposit/some-id", `{"amount": 10}`},
		{http.MethodPost, "/account/withdraw/some-id", `{"amount": 10}`},
		{http.MethodPost, "/transfer/", `{"fromAccountId": "a", "toUserId": "b", "toAccountId": "c", "amount": 1}`},
	}

	for _, p := range paths {
		w := doRequest(router, p.method, p.path, p.body, "")

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: got status %d, want 401, body=%s", p.method, p.path, w.Code, w.Body.String())
		}
	}
}

func TestAdminRegistersUser(t *testing.T) {
	router, store := setupTestRouter(t)

	registerUser(t, router, store, "Ivan")

	// duplicate registration is rejected
	body := `{"username": "Ivan", "password": "user-secret-pw"}`
	w := doRequest(router, http.MethodPost, "/user/", body, basicAuth("admin", adminPassword))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate: got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestRegularUserCannotRegisterUsers(t *testing.T) {
	router, store := setupTestRouter(t)

	registerUser(t, router, store, "Ivan")

	body := `{"username": "Marie", "password": "user-secret-pw"}`
	w := doRequest(router, http.MethodPost, "/user/", body, basicAuth("Ivan", userPassword))

	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403, body=%s", w.Code, w.Body.String())
	}
}

func TestListUsersPolicy(t *testing.T) {
	router, store := setupTestRouter(t)

	registerUser(t, router, store, "U1")
	registerUser(t, router, store, "U2")

	// regular users can list
	w := doRequest(router, http.MethodGet, "/user/list", "", basicAuth("U1", userPassword))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var users []struct {
		Username string `json:"username"`
	}

	mustReadJSON(t, w, &users)

	// admin seeded first, then U1 and U2 in creation order
	if len(users) != 3 {
		t.Fatalf("got %d users, want 3", len(users))
	}

	if users[1].Username != "U1" || users[2].Username != "U2" {
		t.Fatalf("unexpected order: %+v", users)
	}

	// admins cannot
	w = doRequest(router, http.MethodGet, "/user/list", "", basicAuth("admin", adminPassword))

	if w.Code != http.StatusForbidden {
		t.Fatalf("admin list: got status %d, want 403, body=%s", w.Code, w.Body.String())
	}
}

func TestAccountLifecycle(t *testing.T) {
	router, store := setupTestRouter(t)

	_, accountID := registerUser(t, router, store, "Ivan")

	// fresh account carries the seed balance
	w := doRequest(router, http.MethodGet, "/account/"+accountID, "", basicAuth("Ivan", userPassword))

	if w.Code != http.StatusOK {
		t.Fatalf("get: got status %d, body=%s", w.Code, w.Body.String())
	}

	var a accountResponse

	mustReadJSON(t, w, &a)

	if a.Amount != 1 {
		t.Fatalf("got seed balance %d, want 1", a.Amount)
	}

	// deposit on top of the seed balance
	w = doRequest(router, http.MethodPost, "/account/deposit/"+accountID, `{"amount": 500}`, basicAuth("Ivan", userPassword))

	if w.Code != http.StatusOK {
		t.Fatalf("deposit: got status %d, body=%s", w.Code, w.Body.String())
	}

	mustReadJSON(t, w, &a)

	if a.Amount != 501 {
		t.Fatalf("after deposit: got %d, want 501", a.Amount)
	}

	// the follow-up read reflects the new balance (cache was invalidated)
	w = doRequest(router, http.MethodGet, "/account/"+accountID, "", basicAuth("Ivan", userPassword))
	mustReadJSON(t, w, &a)

	if a.Amount != 501 {
		t.Fatalf("read after deposit: got %d, want 501", a.Amount)
	}

	// withdraw back down to the seed balance
	w = doRequest(router, http.MethodPost, "/account/withdraw/"+accountID, `{"amount": 500}`, basicAuth("Ivan", userPassword))

	if w.Code != http.StatusOK {
		t.Fatalf("withdraw: got status %d, body=%s", w.Code, w.Body.String())
	}

	mustReadJSON(t, w, &a)

	if a.Amount != 1 {
		t.Fatalf("after withdraw: got %d, want 1", a.Amount)
	}

	// overdraft is rejected
	w = doRequest(router, http.MethodPost, "/account/withdraw/"+accountID, `{"amount": 1000}`, basicAuth("Ivan", userPassword))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("overdraft: got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestForeignAccountAccess(t *testing.T) {
	router, store := setupTestRouter(t)

	registerUser(t, router, store, "Ivan")
	_, mariesAccountID := registerUser(t, router, store, "Marie")

	// reads on a foreign account look like a missing account
	w := doRequest(router, http.MethodGet, "/account/"+mariesAccountID, "", basicAuth("Ivan", userPassword))

	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign get: got status %d, want 404, body=%s", w.Code, w.Body.String())
	}

	// mutations on a foreign account are a bad request
	w = doRequest(router, http.MethodPost, "/account/withdraw/"+mariesAccountID, `{"amount": 1}`, basicAuth("Ivan", userPassword))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("foreign withdraw: got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestTransferFlow(t *testing.T) {
	router, store := setupTestRouter(t)

	_, ivansAccountID := registerUser(t, router, store, "Ivan")
	marieID, mariesAccountID := registerUser(t, router, store, "Marie")

	w := doRequest(router, http.MethodPost, "/account/deposit/"+ivansAccountID, `{"amount": 100}`, basicAuth("Ivan", userPassword))

	if w.Code != http.StatusOK {
		t.Fatalf("deposit: got status %d, body=%s", w.Code, w.Body.String())
	}

	body := fmt.Sprintf(`{"fromAccountId": %q, "toUserId": %q, "toAccountId": %q, "amount": 50}`,
		ivansAccountID, marieID, mariesAccountID)
	w = doRequest(router, http.MethodPost, "/transfer/", body, basicAuth("Ivan", userPassword))

	if w.Code != http.StatusOK {
		t.Fatalf("transfer: got status %d, body=%s", w.Code, w.Body.String())
	}

	var a accountResponse

	w = doRequest(router, http.MethodGet, "/account/"+ivansAccountID, "", basicAuth("Ivan", userPassword))
	mustReadJSON(t, w, &a)

	if a.Amount != 51 {
		t.Fatalf("source after transfer: got %d, want 51", a.Amount)
	}

	w = doRequest(router, http.MethodGet, "/account/"+mariesAccountID, "", basicAuth("Marie", userPassword))
	mustReadJSON(t, w, &a)

	if a.Amount != 51 {
		t.Fatalf("destination after transfer: got %d, want 51", a.Amount)
	}

	// a zero-amount transfer succeeds and moves nothing
	body = fmt.Sprintf(`{"fromAccountId": %q, "toUserId": %q, "toAccountId": %q, "amount": 0}`,
		ivansAccountID, marieID, mariesAccountID)
	w = doRequest(router, http.MethodPost, "/transfer/", body, basicAuth("Ivan", userPassword))

	if w.Code != http.StatusOK {
		t.Fatalf("zero transfer: got status %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/account/"+ivansAccountID, "", basicAuth("Ivan", userPassword))
	mustReadJSON(t, w, &a)

	if a.Amount != 51 {
		t.Fatalf("source after zero transfer: got %d, want 51", a.Amount)
	}

	// overdraft transfer is rejected
	body = fmt.Sprintf(`{"fromAccountId": %q, "toUserId": %q, "toAccountId": %q, "amount": 10000}`,
		ivansAccountID, marieID, mariesAccountID)
	w = doRequest(router, http.MethodPost, "/transfer/", body, basicAuth("Ivan", userPassword))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("overdraft transfer: got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestAdminCannotTouchAccounts(t *testing.T) {
	router, store := setupTestRouter(t)

	_, accountID := registerUser(t, router, store, "Ivan")

	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/account/" + accountID, ""},
		{http.MethodPost, "/account/deposit/" + accountID, `{"amount": 10}`},
		{http.MethodPost, "/account/withdraw/" + accountID, `{"amount": 10}`},
		{http.MethodPost, "/transfer/", fmt.Sprintf(`{"fromAccountId": %q, "toUserId": "x", "toAccountId": "y", "amount": 1}`, accountID)},
	}

	for _, c := range cases {
		w := doRequest(router, c.method, c.path, c.body, basicAuth("admin", adminPassword))

		if w.Code != http.StatusForbidden {
			t.Fatalf("%s %s: got status %d, want 403, body=%s", c.method, c.path, w.Code, w.Body.String())
		}
	}
}

func TestBearerTokenFlow(t *testing.T) {
	router, store := setupTestRouter(t)

	_, accountID := registerUser(t, router, store, "Ivan")

	body := fmt.Sprintf(`{"username": "Ivan", "password": %q}`, userPassword)
	w := doRequest(router, http.MethodPost, "/auth/token", body, "")

	if w.Code != http.StatusOK {
		t.Fatalf("token: got status %d, body=%s", w.Code, w.Body.String())
	}

	var tok struct {
		AccessToken string `json:"accessToken"`
	}

	mustReadJSON(t, w, &tok)

	if tok.AccessToken == "" {
		t.Fatalf("expected a non-empty access token")
	}

	w = doRequest(router, http.MethodGet, "/account/"+accountID, "", "Bearer "+tok.AccessToken)

	if w.Code != http.StatusOK {
		t.Fatalf("bearer get: got status %d, body=%s", w.Code, w.Body.String())
	}

	var a accountResponse

	mustReadJSON(t, w, &a)

	if a.Amount != 1 {
		t.Fatalf("got balance %d, want 1", a.Amount)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/healthz", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("healthz: got status %d", w.Code)
	}

	w = doRequest(router, http.MethodGet, "/readyz", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("readyz: got status %d", w.Code)
	}
}
