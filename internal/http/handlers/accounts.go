package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/bankhub/internal/cache"
	"github.com/geocoder89/bankhub/internal/domain/account"
	"github.com/geocoder89/bankhub/internal/http/middlewares"
	"github.com/geocoder89/bankhub/internal/observability"
	"github.com/gin-gonic/gin"
)

const accountCacheTTL = 30 * time.Second

type AccountsStore interface {
	GetOwned(ctx context.Context, id, ownerID string) (account.Account, error)
	Deposit(ctx context.Context, id, ownerID string, amount int64) (account.Account, error)
	Withdraw(ctx context.Context, id, ownerID string, amount int64) (account.Account, error)
}

type AccountsHandler struct {
	repo  AccountsStore
	cache cache.Store
	prom  *observability.Prom
}

func NewAccountsHandler(repo AccountsStore, store cache.Store, prom *observability.Prom) *AccountsHandler {
	return &AccountsHandler{
		repo:  repo,
		cache: store,
		prom:  prom,
	}
}

// AccountResponse is the wire shape for account reads and ledger mutations.
// Amount is the current balance, not a delta.
type AccountResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

type AmountRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

func accountCacheKey(id string) string {
	return "account:" + id
}

// GetAccount returns the caller's account. A foreign or unknown account id is
// a plain 404 so existence is not leaked to non-owners.
func (h *AccountsHandler) GetAccount(ctx *gin.Context) {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	// Cached entities still go through the ownership check below; the cache
	// only skips the DB read.
	if h.cache != nil {
		var cached account.Account

		found, err := h.cache.Get(ctx.Request.Context(), accountCacheKey(id), &cached)

		if err == nil && found {
			h.countCache(true)

			if cached.UserID != callerID {
				RespondNotFound(ctx, "Account not found")
				return
			}

			RespondJSONWithETag(ctx, http.StatusOK, AccountResponse{ID: cached.ID, Amount: cached.Balance})
			return
		}

		h.countCache(false)
	}

	a, err := h.repo.GetOwned(ctx.Request.Context(), id, callerID)

	if err != nil {
		switch err {
		case account.ErrNotFound, account.ErrNotOwner:
			RespondNotFound(ctx, "Account not found")
		default:
			RespondInternal(ctx, "Could not fetch account")
		}
		return
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx.Request.Context(), accountCacheKey(id), a, accountCacheTTL)
	}

	RespondJSONWithETag(ctx, http.StatusOK, AccountResponse{ID: a.ID, Amount: a.Balance})
}

func (h *AccountsHandler) Deposit(ctx *gin.Context) {
	h.mutate(ctx, h.repo.Deposit, "Could not deposit")
}

func (h *AccountsHandler) Withdraw(ctx *gin.Context) {
	h.mutate(ctx, h.repo.Withdraw, "Could not withdraw")
}

type mutateFn func(ctx context.Context, id, ownerID string, amount int64) (account.Account, error)

func (h *AccountsHandler) mutate(ctx *gin.Context, fn mutateFn, failMessage string) {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req AmountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	id := ctx.Param("id")

	a, err := fn(ctx.Request.Context(), id, callerID, req.Amount)

	if err != nil {
		switch err {
		case account.ErrInvalidAmount:
			RespondBadRequest(ctx, "invalid_amount", "Amount must be positive.")
		case account.ErrNotFound:
			RespondNotFound(ctx, "Account not found")
		case account.ErrNotOwner:
			RespondBadRequest(ctx, "not_account_owner", "Account does not belong to the caller.")
		case account.ErrInsufficientFunds:
			RespondBadRequest(ctx, "insufficient_funds", "Balance cannot cover the requested amount.")
		default:
			RespondInternal(ctx, failMessage)
		}
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(ctx.Request.Context(), accountCacheKey(id))
	}

	ctx.JSON(http.StatusOK, AccountResponse{ID: a.ID, Amount: a.Balance})
}

func (h *AccountsHandler) countCache(hit bool) {
	if h.prom == nil {
		return
	}

	if hit {
		h.prom.CacheHits.WithLabelValues("account").Inc()
		return
	}

	h.prom.CacheMisses.WithLabelValues("account").Inc()
}
