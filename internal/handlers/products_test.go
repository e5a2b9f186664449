package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/platform/auth"
	"github.com/easybuy/api/internal/services"
)

type stubCatalogService struct {
	createFn func(context.Context, services.CreateProductCommand) (domain.Product, error)
	updateFn func(context.Context, services.UpdateProductCommand) (domain.Product, error)
	deleteFn func(ctx context.Context, productID, actorID, actorRole string) error
	getFn    func(context.Context, string) (domain.Product, error)
	listFn   func(context.Context, services.ProductListQuery) ([]domain.Product, error)
}

func (s *stubCatalogService) Create(ctx context.Context, cmd services.CreateProductCommand) (domain.Product, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return domain.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) Update(ctx context.Context, cmd services.UpdateProductCommand) (domain.Product, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return domain.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) Delete(ctx context.Context, productID, actorID, actorRole string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, productID, actorID, actorRole)
	}
	return errors.New("not implemented")
}

func (s *stubCatalogService) Get(ctx context.Context, productID string) (domain.Product, error) {
	if s.getFn != nil {
		return s.getFn(ctx, productID)
	}
	return domain.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) List(ctx context.Context, query services.ProductListQuery) ([]domain.Product, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return nil, nil
}

func productRouter(svc services.CatalogService) chi.Router {
	r := chi.NewRouter()
	NewProductHandlers(nil, svc).Routes(r)
	return r
}

func sampleProduct() domain.Product {
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return domain.Product{
		ID:        "prd_1",
		Title:     "Vintage camera",
		Price:     12500,
		Category:  "electronics",
		Condition: domain.ConditionGood,
		Status:    domain.ProductAvailable,
		SellerID:  "usr_seller",
		Views:     3,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestProductHandlersListIsPublic(t *testing.T) {
	var captured services.ProductListQuery
	svc := &stubCatalogService{
		listFn: func(ctx context.Context, query services.ProductListQuery) ([]domain.Product, error) {
			captured = query
			return []domain.Product{sampleProduct()}, nil
		},
	}
	router := productRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/?category=electronics&minPrice=100&maxPrice=20000&search=camera", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Category != "electronics" || captured.MinPrice != 100 || captured.MaxPrice != 20000 || captured.Search != "camera" {
		t.Fatalf("unexpected query %+v", captured)
	}

	var payload productListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].ID != "prd_1" {
		t.Fatalf("unexpected items %+v", payload.Items)
	}
}

func TestProductHandlersListRejectsBadPrice(t *testing.T) {
	router := productRouter(&stubCatalogService{})

	req := httptest.NewRequest(http.MethodGet, "/?minPrice=abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestProductHandlersGet(t *testing.T) {
	svc := &stubCatalogService{
		getFn: func(ctx context.Context, productID string) (domain.Product, error) {
			return sampleProduct(), nil
		},
	}
	router := productRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/prd_1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload productPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Views != 3 || payload.Status != "available" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestProductHandlersCreateUsesIdentityAsSeller(t *testing.T) {
	var captured services.CreateProductCommand
	svc := &stubCatalogService{
		createFn: func(ctx context.Context, cmd services.CreateProductCommand) (domain.Product, error) {
			captured = cmd
			return sampleProduct(), nil
		},
	}
	router := productRouter(svc)

	body := []byte(`{"title":"Vintage camera","price":12500,"category":"electronics","condition":"Good"}`)
	req := authedRequest(http.MethodPost, "/", body, &auth.Identity{UserID: "usr_seller", Role: "seller"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.SellerID != "usr_seller" {
		t.Fatalf("expected seller from identity, got %q", captured.SellerID)
	}
}

func TestProductHandlersUpdateRejectsStatusField(t *testing.T) {
	router := productRouter(&stubCatalogService{})

	body := []byte(`{"status":"sold"}`)
	req := authedRequest(http.MethodPut, "/prd_1", body, &auth.Identity{UserID: "usr_seller", Role: "seller"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestProductHandlersDeleteForbidden(t *testing.T) {
	svc := &stubCatalogService{
		deleteFn: func(ctx context.Context, productID, actorID, actorRole string) error {
			return services.ErrProductForbidden
		},
	}
	router := productRouter(svc)

	req := authedRequest(http.MethodDelete, "/prd_1", nil, &auth.Identity{UserID: "usr_other", Role: "seller"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
