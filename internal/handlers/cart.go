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

const maxCartBodySize = 4 * 1024

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartItemPayload struct {
	ProductID string             `json:"productId"`
	Product   *productRefPayload `json:"product,omitempty"`
	Quantity  int                `json:"quantity"`
	AddedAt   string             `json:"addedAt"`
}

type cartPayload struct {
	UserID    string            `json:"userId"`
	Items     []cartItemPayload `json:"items"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

// CartHandlers exposes the per-user cart endpoints.
type CartHandlers struct {
	authn *auth.Middleware
	carts services.CartService
	refs  services.ReferenceService
}

// NewCartHandlers constructs a new CartHandlers instance. The reference
// service may be nil, in which case items carry bare product IDs.
func NewCartHandlers(authn *auth.Middleware, carts services.CartService, refs services.ReferenceService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
		refs:  refs,
	}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{productID}", h.updateQuantity)
	r.Delete("/items/{productID}", h.removeItem)
	r.Delete("/", h.clearCart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.Get(ctx, identity.UserID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.resolveCartPayload(ctx, cart))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req cartItemRequest
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := h.carts.AddItem(ctx, identity.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.resolveCartPayload(ctx, cart))
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, &req) {
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, identity.UserID, productID, req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.resolveCartPayload(ctx, cart))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	cart, err := h.carts.RemoveItem(ctx, identity.UserID, productID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.resolveCartPayload(ctx, cart))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.Clear(ctx, identity.UserID); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveCartPayload renders the cart, embedding each product best-effort.
// An entry whose listing has since vanished keeps its bare ID so the client
// can still remove it.
func (h *CartHandlers) resolveCartPayload(ctx context.Context, cart domain.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		payload := cartItemPayload{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   formatTime(item.AddedAt),
		}
		if h.refs != nil {
			if product, err := h.refs.Product(ctx, item.ProductID); err == nil {
				payload.Product = &productRefPayload{
					ID:     product.ID,
					Title:  product.Title,
					Price:  product.Price,
					Images: product.Images,
				}
			}
		}
		items = append(items, payload)
	}
	return cartPayload{
		UserID:    cart.UserID,
		Items:     items,
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "item not in cart", http.StatusNotFound))
	case errors.Is(err, services.ErrCartProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product is no longer available", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}
