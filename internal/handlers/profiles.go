package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/userhub/apiserver/internal/metrics"
	"github.com/userhub/apiserver/internal/services"
	"github.com/userhub/apiserver/internal/store"
	"github.com/userhub/apiserver/types"
)

const (
	maxAvatarMemory = 8 << 20
	maxAvatarBytes  = 4 << 20
	formFieldAvatar = "avatar"
)

// ProfileHandler provides HTTP handlers for profile resources.
type ProfileHandler struct {
	profileService *services.ProfileService
}

// NewProfileHandler constructs a handler with the provided service.
func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// ProfileRouter registers profile routes on the given router. The caller
// is expected to have applied authentication middleware already.
func ProfileRouter(r chi.Router, profileService *services.ProfileService, collector *metrics.Collector) {
	handler := NewProfileHandler(profileService)
	resolver := OwnerResolver(profileService.ResolveOwner)

	r.With(RequireRoles(collector, "profiles", types.RoleAdmin, types.RoleUser)).Post("/", handler.Create)
	r.With(RequireRoles(collector, "profiles", types.RoleAdmin)).Get("/", handler.List)
	r.Route("/{profileID}", func(r chi.Router) {
		r.Use(RequireOwner(collector, "profiles", "profileID", resolver, types.RoleAdmin, types.RoleUser))
		r.Get("/", handler.Get)
		r.Patch("/", handler.Update)
		r.Put("/avatar", handler.PutAvatar)
		r.Get("/avatar", handler.GetAvatar)
	})
}

// Create adds a profile. A non-admin caller always becomes the owner;
// an admin may name another owner or leave the profile unowned.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.ProfileName = strings.TrimSpace(req.ProfileName)
	req.Code = strings.TrimSpace(req.Code)
	if req.ProfileName == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "profile name and code are required")
		return
	}

	ownerID := identity.ID
	if identity.Role == types.RoleAdmin {
		ownerID = strings.TrimSpace(req.UserID)
	}

	profile, err := h.profileService.Create(r.Context(), services.CreateProfileParams{
		ProfileName: req.ProfileName,
		Code:        req.Code,
		UserID:      ownerID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// List returns profiles matching the optional filter. Admin only.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("filter"))

	profiles, err := h.profileService.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}

	writeJSON(w, http.StatusOK, profiles)
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(chi.URLParam(r, "profileID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profileService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(chi.URLParam(r, "profileID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	params := services.UpdateProfileParams{}
	if req.ProfileName != nil {
		name := strings.TrimSpace(*req.ProfileName)
		if name == "" {
			writeError(w, http.StatusBadRequest, "profile name must not be empty")
			return
		}
		params.ProfileName = &name
	}
	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code == "" {
			writeError(w, http.StatusBadRequest, "code must not be empty")
			return
		}
		params.Code = &code
	}

	profile, err := h.profileService.Update(r.Context(), id, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// PutAvatar uploads the profile avatar to object storage.
func (h *ProfileHandler) PutAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(chi.URLParam(r, "profileID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxAvatarMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File[formFieldAvatar]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one avatar file is required")
		return
	}

	fileHeader := files[0]
	if fileHeader.Size > maxAvatarBytes {
		writeError(w, http.StatusBadRequest, "avatar file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read avatar file")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if err := h.profileService.PutAvatar(r.Context(), id, file, fileHeader.Size, contentType); err != nil {
		switch {
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusServiceUnavailable, "object storage not configured")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "profile not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to store avatar")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAvatar streams the profile avatar from object storage.
func (h *ProfileHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(chi.URLParam(r, "profileID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reader, err := h.profileService.GetAvatar(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusServiceUnavailable, "object storage not configured")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "avatar not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to fetch avatar")
		}
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

type CreateProfileRequest struct {
	ProfileName string `json:"profile_name"`
	Code        string `json:"code"`
	UserID      string `json:"user_id"`
}

type UpdateProfileRequest struct {
	ProfileName *string `json:"profile_name"`
	Code        *string `json:"code"`
}
