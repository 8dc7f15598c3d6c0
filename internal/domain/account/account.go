package account

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that no account exists for the given id.
	ErrNotFound = errors.New("account not found")
	// ErrNotOwner indicates the caller does not own the account it is acting on.
	ErrNotOwner = errors.New("account not owned by caller")
	// ErrInsufficientFunds indicates the balance cannot cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount indicates a non-positive amount on deposit/withdraw or a
	// negative amount on transfer.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrSameAccount indicates a transfer where source and destination match.
	ErrSameAccount = errors.New("transfer to the same account")
)

// Account holds a single user's balance in minimal currency units.
// Invariant: Balance >= 0 after every committed operation.
type Account struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Balance   int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
