package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/geocoder89/bankhub/internal/auth"
	"github.com/geocoder89/bankhub/internal/domain/user"
	"github.com/geocoder89/bankhub/internal/security"
	"github.com/gin-gonic/gin"
)

// Keep these interfaces small so tests can fake them easily.
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	users CredentialStore
	jwt   TokenVerifier
}

func NewAuthMiddleware(users CredentialStore, jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{users: users, jwt: jwt}
}

// RequireAuth resolves the caller into a principal on the context. Two
// schemes are accepted: HTTP Basic checked against the stored bcrypt hash,
// and Bearer access tokens issued by /auth/token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		switch {
		case strings.HasPrefix(header, "Basic "):
			m.authenticateBasic(c, header)
		case strings.HasPrefix(header, "Bearer "):
			m.authenticateBearer(c, header)
		default:
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		if c.IsAborted() {
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) authenticateBasic(c *gin.Context, header string) {
	username, password, err := auth.ParseBasic(header)

	if err != nil {
		abortUnauthorized(c, "Malformed basic credentials")
		return
	}

	u, err := m.users.GetByUsername(c.Request.Context(), username)

	if err != nil {
		abortUnauthorized(c, "Invalid credentials")
		return
	}

	err = security.CheckPassword(u.PasswordHash, password)

	if err != nil {
		abortUnauthorized(c, "Invalid credentials")
		return
	}

	setPrincipal(c, u.ID, u.Username, u.Role)
}

func (m *AuthMiddleware) authenticateBearer(c *gin.Context, header string) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))

	if raw == "" {
		abortUnauthorized(c, "Missing or invalid access token")
		return
	}

	claims, err := m.jwt.VerifyAccessToken(raw)

	if err != nil {
		abortUnauthorized(c, "Invalid or expired access token")
		return
	}

	setPrincipal(c, claims.UserID, claims.Username, claims.Role)
}

func setPrincipal(c *gin.Context, userID, username, role string) {
	c.Set(ctxUserIDKey, userID)
	c.Set(ctxUsernameKey, username)
	c.Set(ctxRoleKey, role)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
	})
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func UsernameFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUsernameKey)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

func RoleFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
