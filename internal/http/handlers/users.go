package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/bankhub/internal/domain/user"
	"github.com/geocoder89/bankhub/internal/security"
	"github.com/gin-gonic/gin"
)

type UsersStore interface {
	Create(ctx context.Context, username, passwordHash, role string, initialBalance int64) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
}

type UsersHandler struct {
	repo UsersStore
	// balance granted to every freshly provisioned account
	initialBalance int64
}

func NewUsersHandler(repo UsersStore, initialBalance int64) *UsersHandler {
	return &UsersHandler{
		repo:           repo,
		initialBalance: initialBalance,
	}
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// CreateUser registers a USER principal and provisions its account. Admin
// callers only; the policy middleware enforces that before we get here.
func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.repo.Create(ctx.Request.Context(), req.Username, hash, user.RoleUser, h.initialBalance)

	if err != nil {
		if err == user.ErrUsernameTaken {
			RespondBadRequest(ctx, "username_taken", "Username is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// ListUsers returns all users in creation order. PasswordHash never
// serializes.
func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	users, err := h.repo.List(ctx.Request.Context())

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, users)
}
