package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// PostgresUserCollection implements UserCollection on the users table.
type PostgresUserCollection struct {
	Pool *pgxpool.Pool
}

const userColumns = `id, username, email, password_hash, role, first_name, last_name, is_active, last_login, created_at, updated_at`

// InsertUser inserts a new user into the database
func (c *PostgresUserCollection) InsertUser(ctx context.Context, user models.User) error {
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role),
		user.FirstName, user.LastName, user.IsActive, user.LastLogin, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByID finds a user by their ID
func (c *PostgresUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return c.findOne(ctx, "id", id)
}

// FindUserByUsername finds a user by their username
func (c *PostgresUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return c.findOne(ctx, "username", username)
}

// FindUserByEmail finds a user by their email
func (c *PostgresUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.findOne(ctx, "email", email)
}

// UpdateLastLogin updates the last login time for a user
func (c *PostgresUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now()
	tag, err := c.Pool.Exec(ctx, `UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// column is always one of the constants passed by the finders above.
func (c *PostgresUserCollection) findOne(ctx context.Context, column, value string) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	row := c.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role,
		&u.FirstName, &u.LastName, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}
