package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/bankhub/internal/domain/account"
	"github.com/geocoder89/bankhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAccountsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AccountsRepo {
	return &AccountsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *AccountsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *AccountsRepo) GetOwned(ctx context.Context, id, ownerID string) (account.Account, error) {
	var a account.Account

	err := r.observe("accounts.get_owned", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, user_id, balance, created_at, updated_at
			FROM accounts
			WHERE id = $1`,
			id,
		).Scan(&a.ID, &a.UserID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}

		return account.Account{}, err
	}

	if a.UserID != ownerID {
		return account.Account{}, account.ErrNotOwner
	}

	return a, nil
}

// lockRow reads an account row FOR UPDATE inside tx.
func (r *AccountsRepo) lockRow(ctx context.Context, tx pgx.Tx, op, id string) (account.Account, error) {
	var a account.Account

	err := r.observe(op, func() error {
		return tx.QueryRow(ctx,
			`SELECT id, user_id, balance, created_at, updated_at
			FROM accounts
			WHERE id = $1
			FOR UPDATE`,
			id,
		).Scan(&a.ID, &a.UserID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}

		return account.Account{}, err
	}

	return a, nil
}

func (r *AccountsRepo) setBalance(ctx context.Context, tx pgx.Tx, op, id string, balance int64, now time.Time) error {
	return r.observe(op, func() error {
		_, e := tx.Exec(ctx,
			`UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`,
			id, balance, now,
		)
		return e
	})
}

func (r *AccountsRepo) Deposit(ctx context.Context, id, ownerID string, amount int64) (a account.Account, err error) {
	if amount <= 0 {
		err = account.ErrInvalidAmount
		return
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err = r.lockRow(ctx, tx, "accounts.deposit.lock", id)

	if err != nil {
		return
	}

	if a.UserID != ownerID {
		a = account.Account{}
		err = account.ErrNotOwner
		return
	}

	now := time.Now().UTC()
	a.Balance += amount
	a.UpdatedAt = now

	err = r.setBalance(ctx, tx, "accounts.deposit.update", id, a.Balance, now)

	if err != nil {
		a = account.Account{}
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		a = account.Account{}
		return
	}

	return
}

func (r *AccountsRepo) Withdraw(ctx context.Context, id, ownerID string, amount int64) (a account.Account, err error) {
	if amount <= 0 {
		err = account.ErrInvalidAmount
		return
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err = r.lockRow(ctx, tx, "accounts.withdraw.lock", id)

	if err != nil {
		return
	}

	if a.UserID != ownerID {
		a = account.Account{}
		err = account.ErrNotOwner
		return
	}

	if a.Balance < amount {
		a = account.Account{}
		err = account.ErrInsufficientFunds
		return
	}

	now := time.Now().UTC()
	a.Balance -= amount
	a.UpdatedAt = now

	err = r.setBalance(ctx, tx, "accounts.withdraw.update", id, a.Balance, now)

	if err != nil {
		a = account.Account{}
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		a = account.Account{}
		return
	}

	return
}

// Transfer moves amount from the caller's account to the (toUserID,
// toAccountID) pair. Both rows are locked in ascending id order so two
// opposing transfers cannot deadlock.
func (r *AccountsRepo) Transfer(ctx context.Context, fromID, ownerID, toUserID, toAccountID string, amount int64) (err error) {
	if amount < 0 {
		return account.ErrInvalidAmount
	}

	if fromID == toAccountID {
		return account.ErrSameAccount
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	first, second := fromID, toAccountID

	if second < first {
		first, second = second, first
	}

	locked := make(map[string]account.Account, 2)

	for _, id := range []string{first, second} {
		var a account.Account

		a, err = r.lockRow(ctx, tx, "accounts.transfer.lock", id)

		if err != nil {
			return
		}

		locked[id] = a
	}

	from := locked[fromID]
	to := locked[toAccountID]

	if from.UserID != ownerID {
		return account.ErrNotOwner
	}

	if to.UserID != toUserID {
		return account.ErrNotFound
	}

	if from.Balance < amount {
		return account.ErrInsufficientFunds
	}

	now := time.Now().UTC()

	err = r.setBalance(ctx, tx, "accounts.transfer.debit", fromID, from.Balance-amount, now)

	if err != nil {
		return
	}

	err = r.setBalance(ctx, tx, "accounts.transfer.credit", toAccountID, to.Balance+amount, now)

	if err != nil {
		return
	}

	return tx.Commit(ctx)
}
