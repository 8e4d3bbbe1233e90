package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Integration tests (require a running PostgreSQL). Each run uses fresh codes and
// kind ids, so the database does not need to be empty.
func postgresTestStore(t *testing.T) *PostgresStore {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := NewPostgresStore(ctx, url, 4)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestNewPostgresStore_BadURL(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "not a url", 1)
	assert.Error(t, err)
}

func TestPostgresStore_Contract(t *testing.T) {
	runRecordStoreContract(t, postgresTestStore(t))
}

func TestPostgresUserCollection_Integration(t *testing.T) {
	store := postgresTestStore(t)
	ctx := context.Background()
	users := &PostgresUserCollection{Pool: store.Pool()}

	suffix := uuid.NewString()[:8]
	user := models.User{
		ID:           uuid.NewString(),
		Username:     "user-" + suffix,
		Email:        suffix + "@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleViewer,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, users.InsertUser(ctx, user))

	found, err := users.FindUserByUsername(ctx, user.Username)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, found.Role)
	assert.Nil(t, found.LastLogin)

	require.NoError(t, users.UpdateLastLogin(ctx, user.ID))
	found, err = users.FindUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.NotNil(t, found.LastLogin)

	_, err = users.FindUserByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}
