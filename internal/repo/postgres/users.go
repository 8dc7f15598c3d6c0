package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/bankhub/internal/domain/account"
	"github.com/geocoder89/bankhub/internal/domain/user"
	"github.com/geocoder89/bankhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Create inserts the user and, for the USER role, provisions its account in
// the same transaction so a user never exists without one.
func (r *UsersRepo) Create(ctx context.Context, username, passwordHash, role string, initialBalance int64) (u user.User, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := time.Now().UTC()

	u = user.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}

	err = r.observe("users.create.insert_user", func() error {
		_, e := tx.Exec(ctx,
			`INSERT INTO users (id, username, password_hash, role, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, u.ID, u.Username, u.PasswordHash, u.Role, u.CreatedAt)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			err = user.ErrUsernameTaken
			u = user.User{}
			return
		}

		u = user.User{}
		return
	}

	if role == user.RoleUser {
		a := account.Account{
			ID:        uuid.NewString(),
			UserID:    u.ID,
			Balance:   initialBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = r.observe("users.create.insert_account", func() error {
			_, e := tx.Exec(ctx,
				`INSERT INTO accounts (id, user_id, balance, created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5)
			`, a.ID, a.UserID, a.Balance, a.CreatedAt, a.UpdatedAt)
			return e
		})

		if err != nil {
			u = user.User{}
			return
		}
	}

	err = tx.Commit(ctx)

	if err != nil {
		u = user.User{}
		return
	}

	return
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_username", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT id, username, password_hash, role, created_at
	         FROM users
	         WHERE username = $1`,
			username,
		).Scan(
			&u.ID,
			&u.Username,
			&u.PasswordHash,
			&u.Role,
			&u.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) (users []user.User, err error) {
	var rows pgx.Rows

	err = r.observe("users.list", func() error {
		rows, err = r.pool.Query(ctx,
			`
	SELECT id, username, password_hash, role, created_at
	FROM users
	ORDER BY created_at ASC, id ASC
	`,
		)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	users = make([]user.User, 0)

	for rows.Next() {
		var u user.User

		e := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)

		if e != nil {
			err = e
			return
		}
		users = append(users, u)
	}

	e := rows.Err()

	if e != nil {
		if r.prom != nil {
			r.prom.DbErrorsTotal.WithLabelValues("users.list", "rows_err").Inc()
		}
		err = e
		return
	}

	return
}
