package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/userhub/apiserver/internal/metrics"
	"github.com/userhub/apiserver/internal/services"
	"github.com/userhub/apiserver/internal/store"
	"github.com/userhub/apiserver/types"
)

const minPasswordLength = 6

// AuthHandler provides the public registration and login endpoints.
type AuthHandler struct {
	userService *services.UserService
	authService *services.AuthService
	collector   *metrics.Collector
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, authService *services.AuthService, collector *metrics.Collector) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		collector:   collector,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, authService *services.AuthService, collector *metrics.Collector) {
	handler := NewAuthHandler(userService, authService, collector)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
}

// Register creates a new user account with the default user role.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if message, ok := req.validate(); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}

	user, err := h.userService.Register(r.Context(), services.RegisterParams{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		Age:      *req.Age,
		Profile: services.CreateProfileParams{
			ProfileName: strings.TrimSpace(req.Profile.ProfileName),
			Code:        strings.TrimSpace(req.Profile.Code),
		},
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	h.collector.RecordRegistration()
	writeJSON(w, http.StatusCreated, user)
}

// Login verifies credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.collector.RecordLogin(false)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	h.collector.RecordLogin(true)
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		User: UserSummary{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
		},
	})
}

type RegisterRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Name     string          `json:"name"`
	Age      *int            `json:"age"`
	Profile  *ProfileRequest `json:"profile"`
}

func (r RegisterRequest) validate() (string, bool) {
	if !validEmail(strings.TrimSpace(r.Email)) {
		return "invalid email", false
	}
	if len(r.Password) < minPasswordLength {
		return "password must be at least 6 characters", false
	}
	if strings.TrimSpace(r.Name) == "" {
		return "name is required", false
	}
	if r.Age == nil || *r.Age < 0 {
		return "age must be a non-negative integer", false
	}
	if r.Profile == nil {
		return "profile is required", false
	}
	if strings.TrimSpace(r.Profile.ProfileName) == "" || strings.TrimSpace(r.Profile.Code) == "" {
		return "profile name and code are required", false
	}
	return "", true
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and a summary of the
// authenticated user.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	User        UserSummary `json:"user"`
}

type UserSummary struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
}

type ProfileRequest struct {
	ProfileName string `json:"profile_name"`
	Code        string `json:"code"`
}
