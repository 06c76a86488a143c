package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/user"
)

const (
	getUserByIDSQL = `SELECT id, full_name, email, status, cart, created_at
		FROM users WHERE id = $1`

	saveUserSQL = `UPDATE users SET full_name = $2, email = $3, status = $4, cart = $5
		WHERE id = $1`

	insertUserSQL = `INSERT INTO users (id, full_name, email, status, cart, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. The cart
// is stored as a JSONB array on the user row and replaced whole on every
// Save; concurrent writers are last-write-wins.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns the user aggregate, embedded cart included.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var (
		u        user.User
		cartJSON []byte
	)
	err := r.pool.QueryRow(ctx, getUserByIDSQL, id).Scan(
		&u.ID, &u.FullName, &u.Email, &u.Status, &cartJSON, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get user %q", id)
	}

	if err := json.Unmarshal(cartJSON, &u.Cart); err != nil {
		return nil, errors.Wrapf(err, "unmarshal cart of user %q", id)
	}
	return &u, nil
}

// Save rewrites the whole user row, including the embedded cart.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	cartJSON, err := marshalCart(u.Cart)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, saveUserSQL, u.ID, u.FullName, u.Email, u.Status, cartJSON)
	if err != nil {
		return errors.Wrapf(err, "save user %q", u.ID)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Insert creates a new user row. Used by the seed tool only.
func (r *UserRepository) Insert(ctx context.Context, u *user.User) error {
	cartJSON, err := marshalCart(u.Cart)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, insertUserSQL,
		u.ID, u.FullName, u.Email, u.Status, cartJSON, u.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert user %q", u.ID)
	}
	return nil
}

// marshalCart serializes cart lines, pinning nil to an empty JSON array so
// the column never holds SQL null.
func marshalCart(cart []user.CartLine) ([]byte, error) {
	if cart == nil {
		cart = []user.CartLine{}
	}
	b, err := json.Marshal(cart)
	if err != nil {
		return nil, errors.Wrap(err, "marshal cart")
	}
	return b, nil
}
