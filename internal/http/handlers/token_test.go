package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/bankhub/internal/auth"
	"github.com/geocoder89/bankhub/internal/http/handlers"
)

func TestIssueTokenHandler(t *testing.T) {
	u, creds := newTestPrincipal(t, "Ivan")
	jwt := auth.NewManager("test-secret-key", 30*time.Minute)

	tests := []struct {
		name           string
		body           string
		wantStatusCode int
	}{
		{
			name:           "success",
			body:           `{"username": "Ivan", "password": "` + testPassword + `"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "wrong_password",
			body:           `{"username": "Ivan", "password": "nope-nope"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "unknown_user",
			body:           `{"username": "Nobody", "password": "whatever1"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "missing_fields",
			body:           `{"username": "Ivan"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewTokenHandler(creds, jwt)
			r := setupRouter(http.MethodPost, "/auth/token", h.IssueToken)

			req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode != http.StatusOK {
				return
			}

			var resp handlers.TokenResponse

			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}

			if resp.AccessToken == "" {
				t.Fatalf("expected a non-empty access token")
			}

			claims, err := jwt.VerifyAccessToken(resp.AccessToken)

			if err != nil {
				t.Fatalf("issued token does not verify: %v", err)
			}

			if claims.UserID != u.ID || claims.Role != u.Role {
				t.Fatalf("claims mismatch: got (%s,%s), want (%s,%s)", claims.UserID, claims.Role, u.ID, u.Role)
			}
		})
	}
}
