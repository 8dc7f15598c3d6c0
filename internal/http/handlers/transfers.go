package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/bankhub/internal/cache"
	"github.com/geocoder89/bankhub/internal/domain/account"
	"github.com/geocoder89/bankhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type TransferStore interface {
	Transfer(ctx context.Context, fromID, ownerID, toUserID, toAccountID string, amount int64) error
}

type TransfersHandler struct {
	repo  TransferStore
	cache cache.Store
}

func NewTransfersHandler(repo TransferStore, store cache.Store) *TransfersHandler {
	return &TransfersHandler{
		repo:  repo,
		cache: store,
	}
}

// TransferRequest identifies the destination by (toUserId, toAccountId); both
// must match one existing account. A zero amount is a valid no-op.
type TransferRequest struct {
	FromAccountID string `json:"fromAccountId" binding:"required"`
	ToUserID      string `json:"toUserId" binding:"required"`
	ToAccountID   string `json:"toAccountId" binding:"required"`
	Amount        int64  `json:"amount" binding:"min=0"`
}

func (h *TransfersHandler) Transfer(ctx *gin.Context) {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req TransferRequest

	if !BindJSON(ctx, &req) {
		return
	}

	err := h.repo.Transfer(ctx.Request.Context(), req.FromAccountID, callerID, req.ToUserID, req.ToAccountID, req.Amount)

	if err != nil {
		switch err {
		case account.ErrInvalidAmount:
			RespondBadRequest(ctx, "invalid_amount", "Amount must not be negative.")
		case account.ErrSameAccount:
			RespondBadRequest(ctx, "same_account", "Source and destination accounts match.")
		case account.ErrNotOwner:
			RespondBadRequest(ctx, "not_account_owner", "Source account does not belong to the caller.")
		case account.ErrNotFound:
			RespondNotFound(ctx, "Account not found")
		case account.ErrInsufficientFunds:
			RespondBadRequest(ctx, "insufficient_funds", "Balance cannot cover the requested amount.")
		default:
			RespondInternal(ctx, "Could not transfer")
		}
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(ctx.Request.Context(), "account:"+req.FromAccountID, "account:"+req.ToAccountID)
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Transfer successful"})
}
