package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/fleet"
	"github.com/ukydev/fleet-maintenance/internal/lock"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreDriver:            config.DriverMemory,
		AlertTimeWindowDays:    30,
		AlertDistanceWindow:    500,
		AlertUrgentDays:        14,
		AlertUrgentDistance:    250,
		AuthEnabled:            true,
		JWTSecret:              "main-test-secret",
		JWTExpiry:              time.Hour,
		RateLimitRequests:      100,
		RateLimitWindowSeconds: 60,
		AdminUsername:          "admin",
		AdminEmail:             "admin@frota.gov.br",
		AdminPassword:          "changeme123",
	}
}

func TestServer_AdminFlow(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()

	store, users, err := openStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, seedCatalog(ctx, cfg, store))

	h, err := buildHandler(ctx, cfg, fleet.NewService(store, fleet.WithPolicy(cfg.Policy())), users)
	require.NoError(t, err)

	send := func(method, path, token string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodPost, "/api/auth/login", "", models.LoginRequest{Username: "admin", Password: "changeme123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = send(http.MethodPost, "/api/vehicles", login.Token, fleet.RegisterVehicleInput{
		Code: "PM-0001", Model: "Toyota Hilux", Year: 2024, Organization: "PMERJ", Odometer: 9600,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = send(http.MethodPost, "/api/vehicles/PM-0001/maintenance", login.Token, map[string]string{"kind": "Troca de Óleo"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = send(http.MethodPost, "/api/vehicles/PM-0001/odometer", login.Token, map[string]int64{"odometer": 19400})
	require.Equal(t, http.StatusOK, w.Code)

	w = send(http.MethodGet, "/api/alerts", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"severity":"URGENTE"`)

	w = send(http.MethodGet, "/api/alerts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBuildHandler_AuthDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.AuthEnabled = false

	store, users, err := openStore(ctx, cfg)
	require.NoError(t, err)
	h, err := buildHandler(ctx, cfg, fleet.NewService(store), users)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vehicles", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSeedCatalog_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kinds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kinds:
  - id: coolant
    name: Troca de Arrefecimento
    distance_interval: 40000
    time_interval_days: 730
`), 0o600))

	cfg := memoryConfig()
	cfg.CatalogFile = path
	store, _, err := openStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, seedCatalog(ctx, cfg, store))

	kinds, err := store.ListKinds(ctx)
	require.NoError(t, err)
	require.Len(t, kinds, 1)
	assert.Equal(t, "coolant", kinds[0].ID)

	cfg.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")
	assert.Error(t, seedCatalog(ctx, cfg, store))
}

func TestOptionalBackends(t *testing.T) {
	cfg := memoryConfig()

	l, err := newLocker(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &lock.KeyedMutex{}, l)

	p, err := newPublisher(cfg)
	require.NoError(t, err)
	assert.IsType(t, notify.Noop{}, p)
}
