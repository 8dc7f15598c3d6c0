package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/bankhub/internal/domain/account"
	"github.com/geocoder89/bankhub/internal/domain/user"
	"github.com/google/uuid"
)

// Store is a mutex-guarded in-memory bank. It implements the same user and
// account contracts as the postgres repos and is used by tests and DB-less
// development. A single mutex covers both maps so a transfer mutates both
// balances as one unit.
type Store struct {
	mu        sync.Mutex
	users     map[string]user.User       // by user id
	userOrder []string                   // creation order
	accounts  map[string]account.Account // by account id
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]user.User),
		accounts: make(map[string]account.Account),
	}
}

func (s *Store) Create(_ context.Context, username, passwordHash, role string, initialBalance int64) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return user.User{}, user.ErrUsernameTaken
		}
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}
	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)

	if role == user.RoleUser {
		a := account.Account{
			ID:        uuid.NewString(),
			UserID:    u.ID,
			Balance:   initialBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.accounts[a.ID] = a
	}

	return u, nil
}

func (s *Store) List(_ context.Context) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]user.User, 0, len(s.userOrder))

	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}

	return out, nil
}

func (s *Store) GetByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}

	return user.User{}, user.ErrNotFound
}

// AccountByUserID returns the provisioned account for a user. Test helper.
func (s *Store) AccountByUserID(_ context.Context, userID string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.UserID == userID {
			return a, nil
		}
	}

	return account.Account{}, account.ErrNotFound
}

func (s *Store) GetOwned(_ context.Context, id, ownerID string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]

	if !ok {
		return account.Account{}, account.ErrNotFound
	}

	if a.UserID != ownerID {
		return account.Account{}, account.ErrNotOwner
	}

	return a, nil
}

func (s *Store) Deposit(_ context.Context, id, ownerID string, amount int64) (account.Account, error) {
	if amount <= 0 {
		return account.Account{}, account.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]

	if !ok {
		return account.Account{}, account.ErrNotFound
	}

	if a.UserID != ownerID {
		return account.Account{}, account.ErrNotOwner
	}

	a.Balance += amount
	a.UpdatedAt = time.Now().UTC()
	s.accounts[id] = a

	return a, nil
}

func (s *Store) Withdraw(_ context.Context, id, ownerID string, amount int64) (account.Account, error) {
	if amount <= 0 {
		return account.Account{}, account.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]

	if !ok {
		return account.Account{}, account.ErrNotFound
	}

	if a.UserID != ownerID {
		return account.Account{}, account.ErrNotOwner
	}

	if a.Balance < amount {
		return account.Account{}, account.ErrInsufficientFunds
	}

	a.Balance -= amount
	a.UpdatedAt = time.Now().UTC()
	s.accounts[id] = a

	return a, nil
}

func (s *Store) Transfer(_ context.Context, fromID, ownerID, toUserID, toAccountID string, amount int64) error {
	if amount < 0 {
		return account.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.accounts[fromID]

	if !ok {
		return account.ErrNotFound
	}

	if from.UserID != ownerID {
		return account.ErrNotOwner
	}

	if fromID == toAccountID {
		return account.ErrSameAccount
	}

	to, ok := s.accounts[toAccountID]

	if !ok || to.UserID != toUserID {
		return account.ErrNotFound
	}

	if from.Balance < amount {
		return account.ErrInsufficientFunds
	}

	now := time.Now().UTC()
	from.Balance -= amount
	from.UpdatedAt = now
	to.Balance += amount
	to.UpdatedAt = now
	s.accounts[fromID] = from
	s.accounts[toAccountID] = to

	return nil
}
