package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/platform/auth"
	"github.com/easybuy/api/internal/platform/httpx"
	"github.com/easybuy/api/internal/services"
)

const maxProductBodySize = 32 * 1024

type createProductRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Images      []string `json:"images"`
	Location    string   `json:"location"`
}

type updateProductRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *int64   `json:"price"`
	Category    *string  `json:"category"`
	Condition   *string  `json:"condition"`
	Images      []string `json:"images"`
	Location    *string  `json:"location"`
}

type productPayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Images      []string `json:"images"`
	Status      string   `json:"status"`
	SellerID    string   `json:"sellerId"`
	Location    string   `json:"location"`
	Views       int64    `json:"views"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
	SoldAt      string   `json:"soldAt,omitempty"`
}

type productListResponse struct {
	Items []productPayload `json:"items"`
}

// ProductHandlers exposes the catalog endpoints. Reads are public; writes
// require a seller or admin token.
type ProductHandlers struct {
	authn   *auth.Middleware
	catalog services.CatalogService
}

// NewProductHandlers constructs a new ProductHandlers instance.
func NewProductHandlers(authn *auth.Middleware, catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{productID}", h.getProduct)

	r.Group(func(protected chi.Router) {
		if h.authn != nil {
			protected.Use(h.authn.RequireAuth(auth.RoleSeller, auth.RoleAdmin))
		}
		protected.Post("/", h.createProduct)
		protected.Put("/{productID}", h.updateProduct)
		protected.Delete("/{productID}", h.deleteProduct)
	})
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	listQuery := services.ProductListQuery{
		Category: query.Get("category"),
		Status:   query.Get("status"),
		SellerID: query.Get("seller"),
		Search:   query.Get("search"),
	}
	var err error
	if listQuery.MinPrice, err = parsePriceParam(query.Get("minPrice")); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "minPrice must be a non-negative integer", http.StatusBadRequest))
		return
	}
	if listQuery.MaxPrice, err = parsePriceParam(query.Get("maxPrice")); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "maxPrice must be a non-negative integer", http.StatusBadRequest))
		return
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		listQuery.Limit = limit
	}

	products, err := h.catalog.List(ctx, listQuery)
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(products))
	for _, product := range products {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{Items: items})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.Get(ctx, productID)
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createProductRequest
	if !decodeJSONBody(ctx, w, r, maxProductBodySize, &req) {
		return
	}

	product, err := h.catalog.Create(ctx, services.CreateProductCommand{
		SellerID:    identity.UserID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Condition:   req.Condition,
		Images:      req.Images,
		Location:    req.Location,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildProductPayload(product))
}

func (h *ProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxProductBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if _, ok := raw["status"]; ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is not editable; it changes through checkout", http.StatusBadRequest))
		return
	}
	if _, ok := raw["sellerId"]; ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sellerId is not editable", http.StatusBadRequest))
		return
	}

	var req updateProductRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.Update(ctx, services.UpdateProductCommand{
		ProductID:   productID,
		ActorID:     identity.UserID,
		ActorRole:   identity.Role,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Condition:   req.Condition,
		Images:      req.Images,
		Location:    req.Location,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	if err := h.catalog.Delete(ctx, productID, identity.UserID, identity.Role); err != nil {
		writeProductError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildProductPayload(product domain.Product) productPayload {
	return productPayload{
		ID:          product.ID,
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
		Category:    product.Category,
		Condition:   string(product.Condition),
		Images:      product.Images,
		Status:      string(product.Status),
		SellerID:    product.SellerID,
		Location:    product.Location,
		Views:       product.Views,
		CreatedAt:   formatTime(product.CreatedAt),
		UpdatedAt:   formatTime(product.UpdatedAt),
		SoldAt:      formatTimePointer(product.SoldAt),
	}
}

func writeProductError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrProductInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrProductConflict):
		httpx.WriteError(ctx, w, httpx.NewError("product_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("product_error", "failed to process product request", http.StatusInternalServerError))
	}
}

func parsePriceParam(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, errors.New("invalid price parameter")
	}
	return value, nil
}
