package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, models.ErrUserNotFound) {
			log.WithError(err).Error("Failed to look up user")
		}
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}
	if !h.authService.CheckPassword(req.Password, user.PasswordHash) {
		log.WithField("username", req.Username).Warn("Failed login attempt")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		log.WithError(err).Error("Failed to generate token")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}

// Register handles POST /api/auth/register. Self-registered accounts are
// viewers; only a caller allowed to manage users may pick another role.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Role == "" {
		req.Role = models.RoleViewer
	}
	if !models.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	if req.Role != models.RoleViewer {
		claims, ok := middleware.GetUserFromContext(r.Context())
		if !ok || !claims.Role.HasPermission(models.ActionManageUsers) {
			writeError(w, http.StatusForbidden, "Insufficient permissions to assign role")
			return
		}
	}

	user, err := h.createUser(r.Context(), req)
	if err != nil {
		var conflict conflictError
		switch {
		case errors.As(err, &conflict):
			writeError(w, http.StatusConflict, conflict.Error())
		case errors.Is(err, models.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.WithError(err).Error("Failed to create user")
			writeError(w, http.StatusInternalServerError, "Failed to create user")
		}
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		log.WithError(err).Error("Failed to generate token")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	log.WithFields(log.Fields{"username": user.Username, "role": user.Role}).Info("User registered")
	writeJSON(w, http.StatusCreated, models.LoginResponse{Token: token, User: *user})
}

// BootstrapAdmin creates an admin account unless the username is taken.
// It lets a fresh deployment obtain its first privileged token.
func (h *AuthHandler) BootstrapAdmin(ctx context.Context, username, email, password string) error {
	if _, err := h.userCollection.FindUserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return err
	}

	_, err := h.createUser(ctx, models.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	log.WithField("username", username).Info("Bootstrap admin created")
	return nil
}

type conflictError string

func (e conflictError) Error() string { return string(e) }

func (h *AuthHandler) createUser(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	for _, validate := range []error{
		h.authService.ValidateUsername(req.Username),
		h.authService.ValidateEmail(req.Email),
		h.authService.ValidatePassword(req.Password),
	} {
		if validate != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, validate)
		}
	}

	if _, err := h.userCollection.FindUserByUsername(ctx, req.Username); err == nil {
		return nil, conflictError("Username already exists")
	}
	if _, err := h.userCollection.FindUserByEmail(ctx, req.Email); err == nil {
		return nil, conflictError("Email already exists")
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.userCollection.InsertUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}
