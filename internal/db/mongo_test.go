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

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo("mongodb://bad:uri")
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func mongoTestDB(t *testing.T) (*MongoStore, string) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	client, err := ConnectMongo(uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	dbName := "test_fleet_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Database(dbName).Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	transactions := os.Getenv("MONGO_TRANSACTIONS") != "false"
	return NewMongoStore(client, dbName, transactions), dbName
}

// Integration test (requires running MongoDB)
func TestMongoStore_Contract(t *testing.T) {
	store, _ := mongoTestDB(t)
	require.NoError(t, store.EnsureIndexes(context.Background()))
	runRecordStoreContract(t, store)
}

func TestMongoUserCollection_Integration(t *testing.T) {
	store, dbName := mongoTestDB(t)
	ctx := context.Background()
	users := &MongoUserCollection{Collection: store.client.Database(dbName).Collection("users")}
	require.NoError(t, users.EnsureIndexes(ctx))

	user := models.User{
		ID:           uuid.NewString(),
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleAdmin,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, users.InsertUser(ctx, user))
	assert.Error(t, users.InsertUser(ctx, user), "duplicate username is rejected")

	found, err := users.FindUserByUsername(ctx, "testuser")
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)

	_, err = users.FindUserByEmail(ctx, "nonexistent@example.com")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	require.NoError(t, users.UpdateLastLogin(ctx, user.ID))
	found, err = users.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, found.LastLogin)
}
