package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/easybuy/api/internal/platform/auth"
	"github.com/easybuy/api/internal/services"
)

const maxProfileBodySize = 8 * 1024

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Location *string `json:"location"`
}

// MeHandlers exposes the authenticated user's own profile.
type MeHandlers struct {
	authn *auth.Middleware
	users services.UserService
}

// NewMeHandlers constructs a new MeHandlers instance.
func NewMeHandlers(authn *auth.Middleware, users services.UserService) *MeHandlers {
	return &MeHandlers{
		authn: authn,
		users: users,
	}
}

// Routes registers the /me endpoints.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getProfile)
	r.Patch("/", h.updateProfile)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	user, err := h.users.GetProfile(ctx, identity.UserID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

func (h *MeHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSONBody(ctx, w, r, maxProfileBodySize, &req) {
		return
	}

	user, err := h.users.UpdateProfile(ctx, services.UpdateProfileCommand{
		UserID:   identity.UserID,
		Name:     req.Name,
		Phone:    req.Phone,
		Address:  req.Address,
		Location: req.Location,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}
