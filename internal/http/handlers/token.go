package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/bankhub/internal/auth"
	"github.com/geocoder89/bankhub/internal/domain/user"
	"github.com/geocoder89/bankhub/internal/security"
	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

// TokenHandler exchanges username/password for a short-lived Bearer token so
// clients can avoid replaying Basic credentials on every call.
type TokenHandler struct {
	users UserReader
	jwt   *auth.Manager
}

func NewTokenHandler(users UserReader, jwt *auth.Manager) *TokenHandler {
	return &TokenHandler{
		users: users,
		jwt:   jwt,
	}
}

type TokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *TokenHandler) IssueToken(ctx *gin.Context) {
	var req TokenRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.users.GetByUsername(ctx.Request.Context(), req.Username)

	if err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid username or password")
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid username or password")
		return
	}

	token, err := h.jwt.GenerateAccessToken(u.ID, u.Username, u.Role)

	if err != nil {
		RespondInternal(ctx, "Could not issue token")
		return
	}

	ctx.JSON(http.StatusOK, TokenResponse{AccessToken: token})
}
