package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/platform/auth"
	"github.com/easybuy/api/internal/platform/httpx"
	"github.com/easybuy/api/internal/services"
)

const maxWishlistBodySize = 4 * 1024

type wishlistEntryPayload struct {
	ProductID string `json:"productId"`
	AddedAt   string `json:"addedAt"`
}

type wishlistPayload struct {
	UserID    string                 `json:"userId"`
	Entries   []wishlistEntryPayload `json:"entries"`
	UpdatedAt string                 `json:"updatedAt,omitempty"`
}

// WishlistHandlers exposes the per-user wishlist endpoints.
type WishlistHandlers struct {
	authn     *auth.Middleware
	wishlists services.WishlistService
}

// NewWishlistHandlers constructs a new WishlistHandlers instance.
func NewWishlistHandlers(authn *auth.Middleware, wishlists services.WishlistService) *WishlistHandlers {
	return &WishlistHandlers{
		authn:     authn,
		wishlists: wishlists,
	}
}

// Routes registers the /wishlist endpoints.
func (h *WishlistHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getWishlist)
	r.Post("/items", h.addEntry)
	r.Delete("/items/{productID}", h.removeEntry)
}

func (h *WishlistHandlers) getWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	wishlist, err := h.wishlists.Get(ctx, identity.UserID)
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildWishlistPayload(wishlist))
}

func (h *WishlistHandlers) addEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		ProductID string `json:"productId"`
	}
	if !decodeJSONBody(ctx, w, r, maxWishlistBodySize, &req) {
		return
	}

	wishlist, err := h.wishlists.Add(ctx, identity.UserID, req.ProductID)
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildWishlistPayload(wishlist))
}

func (h *WishlistHandlers) removeEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	wishlist, err := h.wishlists.Remove(ctx, identity.UserID, productID)
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildWishlistPayload(wishlist))
}

func buildWishlistPayload(wishlist domain.Wishlist) wishlistPayload {
	entries := make([]wishlistEntryPayload, 0, len(wishlist.Entries))
	for _, entry := range wishlist.Entries {
		entries = append(entries, wishlistEntryPayload{
			ProductID: entry.ProductID,
			AddedAt:   formatTime(entry.AddedAt),
		})
	}
	return wishlistPayload{
		UserID:    wishlist.UserID,
		Entries:   entries,
		UpdatedAt: formatTime(wishlist.UpdatedAt),
	}
}

func writeWishlistError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrWishlistInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrWishlistProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrWishlistEntryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_entry_not_found", "product not on wishlist", http.StatusNotFound))
	case errors.Is(err, services.ErrWishlistDuplicate):
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_duplicate", "product already on wishlist", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_error", "failed to process wishlist request", http.StatusInternalServerError))
	}
}
