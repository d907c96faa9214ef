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

// UserHandler provides HTTP handlers for user resources.
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler constructs a handler with the provided service.
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers user routes on the given router. The caller is
// expected to have applied authentication middleware already.
func UserRouter(r chi.Router, userService *services.UserService, resolver OwnerResolver, collector *metrics.Collector) {
	handler := NewUserHandler(userService)

	r.With(RequireRoles(collector, "users", types.RoleAdmin)).Post("/", handler.Create)
	r.With(RequireRoles(collector, "users", types.RoleAdmin)).Get("/", handler.List)
	r.Route("/{userID}", func(r chi.Router) {
		r.Use(RequireOwner(collector, "users", "userID", resolver, types.RoleAdmin, types.RoleUser))
		r.Get("/", handler.Get)
		r.Patch("/", handler.Update)
		r.Delete("/", handler.Delete)
	})
}

// Create adds a user directly. Unlike registration, the role may be set
// explicitly. Admin only.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if message, ok := req.validate(); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}

	params := services.CreateUserParams{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		Age:      *req.Age,
		Role:     types.Role(strings.TrimSpace(req.Role)),
	}
	if req.Profile != nil {
		params.Profile = &services.CreateProfileParams{
			ProfileName: strings.TrimSpace(req.Profile.ProfileName),
			Code:        strings.TrimSpace(req.Profile.Code),
		}
	}

	user, err := h.userService.Create(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "email already exists")
		case errors.Is(err, services.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, "invalid role")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// List returns users matching the optional filter. Admin only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("filter"))

	users, err := h.userService.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Update applies a partial update. The role is never changed here.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if message, ok := req.validate(); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}

	params := services.UpdateUserParams{
		Name: req.Name,
		Age:  req.Age,
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		params.Email = &email
	}
	if req.Profile != nil {
		params.Profile = &services.CreateProfileParams{
			ProfileName: strings.TrimSpace(req.Profile.ProfileName),
			Code:        strings.TrimSpace(req.Profile.Code),
		}
	}

	user, err := h.userService.Update(r.Context(), id, params)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "email already exists")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type CreateUserRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Name     string          `json:"name"`
	Age      *int            `json:"age"`
	Role     string          `json:"role"`
	Profile  *ProfileRequest `json:"profile"`
}

func (r CreateUserRequest) validate() (string, bool) {
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
	if r.Profile != nil &&
		(strings.TrimSpace(r.Profile.ProfileName) == "" || strings.TrimSpace(r.Profile.Code) == "") {
		return "profile name and code are required", false
	}
	return "", true
}

type UpdateUserRequest struct {
	Email   *string         `json:"email"`
	Name    *string         `json:"name"`
	Age     *int            `json:"age"`
	Profile *ProfileRequest `json:"profile"`
}

func (r UpdateUserRequest) validate() (string, bool) {
	if r.Email != nil && !validEmail(strings.TrimSpace(*r.Email)) {
		return "invalid email", false
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return "name must not be empty", false
	}
	if r.Age != nil && *r.Age < 0 {
		return "age must be a non-negative integer", false
	}
	if r.Profile != nil &&
		(strings.TrimSpace(r.Profile.ProfileName) == "" || strings.TrimSpace(r.Profile.Code) == "") {
		return "profile name and code are required", false
	}
	return "", true
}
