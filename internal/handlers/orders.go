package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/platform/auth"
	"github.com/easybuy/api/internal/platform/httpx"
	"github.com/easybuy/api/internal/services"
)

const (
	maxOrderBodySize = 16 * 1024
	maxOrderListSize = 100
)

// orderPatchPermissions maps each editable field to the roles allowed to send it.
var orderPatchPermissions = map[string][]string{
	"shippingAddress": {auth.RoleBuyer},
	"paymentMethod":   {auth.RoleBuyer},
	"approvalStatus":  {auth.RoleAdmin},
	"paymentStatus":   {auth.RoleAdmin},
	"orderStatus":     {auth.RoleSeller, auth.RoleAdmin},
}

type checkoutRequest struct {
	ProductID       string `json:"productId"`
	PaymentMethod   string `json:"paymentMethod"`
	ShippingAddress string `json:"shippingAddress"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	ProductID       string             `json:"productId"`
	BuyerID         string             `json:"buyerId"`
	SellerID        string             `json:"sellerId"`
	Product         *productRefPayload `json:"product,omitempty"`
	Buyer           *userRefPayload    `json:"buyer,omitempty"`
	Seller          *userRefPayload    `json:"seller,omitempty"`
	Price           int64              `json:"price"`
	PaymentMethod   string             `json:"paymentMethod"`
	ShippingAddress string             `json:"shippingAddress"`
	PaymentStatus   string             `json:"paymentStatus"`
	OrderStatus     string             `json:"orderStatus"`
	ApprovalStatus  string             `json:"approvalStatus"`
	CreatedAt       string             `json:"createdAt"`
	UpdatedAt       string             `json:"updatedAt"`
	DeliveredAt     string             `json:"deliveredAt,omitempty"`
}

// productRefPayload carries the display fields of a referenced listing.
type productRefPayload struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Price  int64    `json:"price"`
	Images []string `json:"images,omitempty"`
}

// userRefPayload carries the display fields of a referenced account.
type userRefPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type orderListResponse struct {
	Items []orderPayload `json:"items"`
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	authn  *auth.Middleware
	orders services.OrderService
	refs   services.ReferenceService
}

// NewOrderHandlers constructs a new OrderHandlers instance. The reference
// service may be nil, in which case payloads carry bare IDs.
func NewOrderHandlers(authn *auth.Middleware, orders services.OrderService, refs services.ReferenceService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
		refs:   refs,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.checkout)
	r.Get("/", h.listAllOrders)
	r.Get("/mine", h.listMyOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}", h.patchOrder)
}

func (h *OrderHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !roleAllowed(identity.Role, []string{auth.RoleBuyer}) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "only buyers may place orders", http.StatusForbidden))
		return
	}

	var req checkoutRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.Checkout(ctx, services.CheckoutCommand{
		BuyerID:         identity.UserID,
		ProductID:       req.ProductID,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, h.resolveOrderPayload(ctx, order))
}

// listMyOrders returns the caller's orders, scoped by role: a buyer sees the
// orders they placed, a seller the orders for their listings.
func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, false)
}

// listAllOrders returns every order; the service rejects non-admin callers.
func (h *OrderHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, true)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request, all bool) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		if parsed > maxOrderListSize {
			parsed = maxOrderListSize
		}
		limit = parsed
	}

	orders, err := h.orders.ListOrders(ctx, services.OrderListQuery{
		UserID: identity.UserID,
		Role:   identity.Role,
		All:    all,
		Limit:  limit,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, h.resolveOrderPayload(ctx, order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{Items: items})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, services.OrderReadContext{
		UserID: identity.UserID,
		Role:   identity.Role,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.resolveOrderPayload(ctx, order))
}

// patchOrder routes field-level edits by role. A request naming any field the
// caller's role may not touch is rejected outright rather than partially applied.
func (h *OrderHandlers) patchOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if len(fields) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "no editable fields provided", http.StatusBadRequest))
		return
	}

	for name := range fields {
		roles, known := orderPatchPermissions[name]
		if !known {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("unknown field %q", name), http.StatusBadRequest))
			return
		}
		if !roleAllowed(identity.Role, roles) {
			httpx.WriteError(ctx, w, httpx.NewError("forbidden", fmt.Sprintf("role %s may not modify %s", identity.Role, name), http.StatusForbidden))
			return
		}
	}

	// Each request performs exactly one kind of edit.
	kinds := 0
	_, hasApproval := fields["approvalStatus"]
	_, hasPayment := fields["paymentStatus"]
	_, hasOrderStatus := fields["orderStatus"]
	hasBuyerEdit := hasField(fields, "shippingAddress") || hasField(fields, "paymentMethod")
	for _, present := range []bool{hasApproval, hasPayment, hasOrderStatus, hasBuyerEdit} {
		if present {
			kinds++
		}
	}
	if kinds > 1 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cannot combine approval, payment, delivery, and buyer edits in one request", http.StatusBadRequest))
		return
	}

	switch {
	case hasApproval:
		h.applyApproval(ctx, w, orderID, identity, fields["approvalStatus"])
	case hasPayment:
		h.applyPaymentStatus(ctx, w, orderID, identity, fields["paymentStatus"])
	case hasOrderStatus:
		h.applyDelivery(ctx, w, orderID, identity, fields["orderStatus"])
	default:
		h.applyBuyerEdit(ctx, w, orderID, identity, fields)
	}
}

func (h *OrderHandlers) applyApproval(ctx context.Context, w http.ResponseWriter, orderID string, identity *auth.Identity, raw json.RawMessage) {
	var decision string
	if err := json.Unmarshal(raw, &decision); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "approvalStatus must be a string", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SetApproval(ctx, services.ApprovalCommand{
		OrderID:  orderID,
		ActorID:  identity.UserID,
		Decision: decision,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.resolveOrderPayload(ctx, order))
}

func (h *OrderHandlers) applyPaymentStatus(ctx context.Context, w http.ResponseWriter, orderID string, identity *auth.Identity, raw json.RawMessage) {
	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "paymentStatus must be a string", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SetPaymentStatus(ctx, services.PaymentStatusCommand{
		OrderID: orderID,
		ActorID: identity.UserID,
		Status:  status,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.resolveOrderPayload(ctx, order))
}

func (h *OrderHandlers) applyDelivery(ctx context.Context, w http.ResponseWriter, orderID string, identity *auth.Identity, raw json.RawMessage) {
	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderStatus must be a string", http.StatusBadRequest))
		return
	}
	if domain.OrderStatus(strings.TrimSpace(status)) != domain.OrderDelivered {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderStatus may only be set to Delivered", http.StatusBadRequest))
		return
	}

	order, err := h.orders.MarkDelivered(ctx, services.DeliverCommand{
		OrderID:   orderID,
		ActorID:   identity.UserID,
		ActorRole: identity.Role,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.resolveOrderPayload(ctx, order))
}

func (h *OrderHandlers) applyBuyerEdit(ctx context.Context, w http.ResponseWriter, orderID string, identity *auth.Identity, fields map[string]json.RawMessage) {
	cmd := services.EditOrderCommand{
		OrderID: orderID,
		BuyerID: identity.UserID,
	}
	if raw, ok := fields["shippingAddress"]; ok {
		var address string
		if err := json.Unmarshal(raw, &address); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shippingAddress must be a string", http.StatusBadRequest))
			return
		}
		cmd.ShippingAddress = &address
	}
	if raw, ok := fields["paymentMethod"]; ok {
		var method string
		if err := json.Unmarshal(raw, &method); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "paymentMethod must be a string", http.StatusBadRequest))
			return
		}
		cmd.PaymentMethod = &method
	}

	order, err := h.orders.EditPendingOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.resolveOrderPayload(ctx, order))
}

// resolveOrderPayload embeds the referenced product and parties best-effort.
// A failed lookup leaves the bare ID in place rather than failing the request.
func (h *OrderHandlers) resolveOrderPayload(ctx context.Context, order domain.Order) orderPayload {
	payload := buildOrderPayload(order)
	if h.refs == nil {
		return payload
	}
	if product, err := h.refs.Product(ctx, order.ProductID); err == nil {
		payload.Product = &productRefPayload{
			ID:     product.ID,
			Title:  product.Title,
			Price:  product.Price,
			Images: product.Images,
		}
	}
	payload.Buyer = h.resolveUserRef(ctx, order.BuyerID)
	payload.Seller = h.resolveUserRef(ctx, order.SellerID)
	return payload
}

func (h *OrderHandlers) resolveUserRef(ctx context.Context, userID string) *userRefPayload {
	user, err := h.refs.User(ctx, userID)
	if err != nil {
		return nil
	}
	return &userRefPayload{ID: user.ID, Name: user.Name, Email: user.Email}
}

func buildOrderPayload(order domain.Order) orderPayload {
	return orderPayload{
		ID:              order.ID,
		ProductID:       order.ProductID,
		BuyerID:         order.BuyerID,
		SellerID:        order.SellerID,
		Price:           order.Price,
		PaymentMethod:   string(order.PaymentMethod),
		ShippingAddress: order.ShippingAddress,
		PaymentStatus:   string(order.PaymentStatus),
		OrderStatus:     string(order.OrderStatus),
		ApprovalStatus:  string(order.ApprovalStatus),
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		DeliveredAt:     formatTimePointer(order.DeliveredAt),
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UserID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func roleAllowed(role string, allowed []string) bool {
	for _, candidate := range allowed {
		if strings.EqualFold(role, candidate) {
			return true
		}
	}
	return false
}

func hasField(fields map[string]json.RawMessage, name string) bool {
	_, ok := fields[name]
	return ok
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, target any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		writeBodyError(ctx, w, err)
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}
