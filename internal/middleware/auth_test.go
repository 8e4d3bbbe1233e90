package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	s, err := auth.NewService("middleware-secret", time.Hour)
	require.NoError(t, err)
	return s
}

func tokenFor(t *testing.T, s *auth.Service, role models.Role) string {
	t.Helper()
	token, err := s.GenerateToken(&models.User{ID: uuid.NewString(), Username: string(role) + "-user", Role: role})
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	authService := newAuthService(t)
	middleware := NewAuthMiddleware(authService)

	tests := []struct {
		name       string
		path       string
		header     string
		wantCalled bool
		wantStatus int
		wantUser   bool
	}{
		{"valid token", "/api/alerts", "Bearer " + tokenFor(t, authService, models.RoleAdmin), true, http.StatusOK, true},
		{"missing header", "/api/alerts", "", false, http.StatusUnauthorized, false},
		{"invalid token", "/api/alerts", "Bearer invalid-token", false, http.StatusUnauthorized, false},
		{"public path", "/api/auth/login", "", true, http.StatusOK, false},
		{"public path with token", "/api/auth/register", "Bearer " + tokenFor(t, authService, models.RoleAdmin), true, http.StatusOK, true},
		{"public path with bad token", "/api/auth/register", "Bearer nope", true, http.StatusOK, false},
		{"health", "/health", "", true, http.StatusOK, false},
		{"prefix is not public", "/healthz", "", false, http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			called, hasUser := false, false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				_, hasUser = GetUserFromContext(r.Context())
			})
			middleware.Authenticate(handler).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantUser, hasUser)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	authService := newAuthService(t)
	middleware := NewAuthMiddleware(authService)

	tests := []struct {
		role       models.Role
		action     string
		wantStatus int
	}{
		{models.RoleAdmin, models.ActionManageUsers, http.StatusOK},
		{models.RoleManager, models.ActionManageUsers, http.StatusForbidden},
		{models.RoleManager, models.ActionRegisterVehicle, http.StatusOK},
		{models.RoleOperator, models.ActionRecordMaintenance, http.StatusOK},
		{models.RoleOperator, models.ActionRegisterVehicle, http.StatusForbidden},
		{models.RoleViewer, models.ActionViewAlerts, http.StatusOK},
		{models.RoleViewer, models.ActionUpdateOdometer, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.action, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/vehicles", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, authService, tt.role))
			w := httptest.NewRecorder()

			ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			middleware.Authenticate(RequirePermission(tt.action, ok)).ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("no user", func(t *testing.T) {
		w := httptest.NewRecorder()
		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		RequirePermission(models.ActionViewAlerts, ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetUserFromContext(t *testing.T) {
	claims := &models.Claims{UserID: "test-id", Username: "testuser", Role: models.RoleAdmin}

	got, ok := GetUserFromContext(WithUser(context.Background(), claims))
	require.True(t, ok)
	assert.Equal(t, claims, got)

	_, ok = GetUserFromContext(context.Background())
	assert.False(t, ok)
}

func TestAnonymous(t *testing.T) {
	w := httptest.NewRecorder()
	var got *models.Claims
	Anonymous(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetUserFromContext(r.Context())
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	require.NotNil(t, got)
	assert.True(t, got.Role.HasPermission(models.ActionRegisterVehicle))
}
