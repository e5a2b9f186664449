package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/repositories"
)

// stubRepoError satisfies repositories.RepositoryError for tests.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return e.msg }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error { return stubRepoError{msg: msg, notFound: true} }
func conflictErr(msg string) error { return stubRepoError{msg: msg, conflict: true} }

type stubOrderRepository struct {
	findByIDFn func(ctx context.Context, orderID string) (domain.Order, error)
	updateFn   func(ctx context.Context, order domain.Order) error
	listFn     func(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error)

	updated     []domain.Order
	listFilters []repositories.OrderListFilter
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, orderID)
	}
	return domain.Order{}, notFoundErr("order " + orderID + " not found")
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	s.updated = append(s.updated, order)
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	s.listFilters = append(s.listFilters, filter)
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

type stubCheckoutStore struct {
	placeOrderFn func(ctx context.Context, req repositories.CheckoutRequest) (domain.Order, error)

	requests []repositories.CheckoutRequest
}

func (s *stubCheckoutStore) PlaceOrder(ctx context.Context, req repositories.CheckoutRequest) (domain.Order, error) {
	s.requests = append(s.requests, req)
	if s.placeOrderFn != nil {
		return s.placeOrderFn(ctx, req)
	}
	return domain.Order{}, notFoundErr("product " + req.ProductID + " not found")
}

type stubProductRepository struct {
	findByIDFn func(ctx context.Context, productID string) (domain.Product, error)
	listFn     func(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error)

	inserted       []domain.Product
	updated        []domain.Product
	deleted        []string
	viewIncrements []string
	insertErr      error
	updateErr      error
	deleteErr      error
	incrementErr   error
}

func (s *stubProductRepository) Insert(ctx context.Context, product domain.Product) error {
	s.inserted = append(s.inserted, product)
	return s.insertErr
}

func (s *stubProductRepository) Update(ctx context.Context, product domain.Product) error {
	s.updated = append(s.updated, product)
	return s.updateErr
}

func (s *stubProductRepository) Delete(ctx context.Context, productID string) error {
	s.deleted = append(s.deleted, productID)
	return s.deleteErr
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, productID)
	}
	return domain.Product{}, notFoundErr("product " + productID + " not found")
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubProductRepository) IncrementViews(ctx context.Context, productID string) error {
	s.viewIncrements = append(s.viewIncrements, productID)
	return s.incrementErr
}

type stubCartRepository struct {
	carts map[string]domain.Cart

	saved   []domain.Cart
	cleared []string
}

func (s *stubCartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if cart, ok := s.carts[userID]; ok {
		return cart, nil
	}
	return domain.Cart{UserID: userID}, nil
}

func (s *stubCartRepository) Save(ctx context.Context, cart domain.Cart) error {
	if s.carts == nil {
		s.carts = map[string]domain.Cart{}
	}
	s.carts[cart.UserID] = cart
	s.saved = append(s.saved, cart)
	return nil
}

func (s *stubCartRepository) Clear(ctx context.Context, userID string) error {
	delete(s.carts, userID)
	s.cleared = append(s.cleared, userID)
	return nil
}

type stubWishlistRepository struct {
	wishlists map[string]domain.Wishlist

	saved []domain.Wishlist
}

func (s *stubWishlistRepository) Get(ctx context.Context, userID string) (domain.Wishlist, error) {
	if wl, ok := s.wishlists[userID]; ok {
		return wl, nil
	}
	return domain.Wishlist{UserID: userID}, nil
}

func (s *stubWishlistRepository) Save(ctx context.Context, wishlist domain.Wishlist) error {
	if s.wishlists == nil {
		s.wishlists = map[string]domain.Wishlist{}
	}
	s.wishlists[wishlist.UserID] = wishlist
	s.saved = append(s.saved, wishlist)
	return nil
}

type stubUserRepository struct {
	byID    map[string]domain.User
	byEmail map[string]domain.User

	inserted    []domain.User
	updated     []domain.User
	touched     []string
	insertErr   error
	touchErr    error
	findByIDErr error
}

func (s *stubUserRepository) Insert(ctx context.Context, user domain.User) error {
	s.inserted = append(s.inserted, user)
	if s.insertErr != nil {
		return s.insertErr
	}
	if s.byID == nil {
		s.byID = map[string]domain.User{}
	}
	if s.byEmail == nil {
		s.byEmail = map[string]domain.User{}
	}
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user
	return nil
}

func (s *stubUserRepository) Update(ctx context.Context, user domain.User) error {
	s.updated = append(s.updated, user)
	if s.byID != nil {
		s.byID[user.ID] = user
	}
	return nil
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if s.findByIDErr != nil {
		return domain.User{}, s.findByIDErr
	}
	if user, ok := s.byID[userID]; ok {
		return user, nil
	}
	return domain.User{}, notFoundErr("user " + userID + " not found")
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return domain.User{}, notFoundErr("user with email " + email + " not found")
}

func (s *stubUserRepository) TouchLastActive(ctx context.Context, userID string) error {
	s.touched = append(s.touched, userID)
	return s.touchErr
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *capturingPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *capturingPublisher) captured() []OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderEvent(nil), p.events...)
}

// memoryCheckoutStore reproduces the atomic availability check of the
// persistent store so concurrent checkouts can be exercised in-process.
type memoryCheckoutStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   map[string]domain.Order
	now      func() time.Time
}

func newMemoryCheckoutStore(now func() time.Time, products ...domain.Product) *memoryCheckoutStore {
	store := &memoryCheckoutStore{
		products: map[string]domain.Product{},
		orders:   map[string]domain.Order{},
		now:      now,
	}
	for _, p := range products {
		store.products[p.ID] = p
	}
	return store
}

func (s *memoryCheckoutStore) PlaceOrder(ctx context.Context, req repositories.CheckoutRequest) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[req.ProductID]
	if !ok {
		return domain.Order{}, notFoundErr("product " + req.ProductID + " not found")
	}
	if product.Status != domain.ProductAvailable {
		return domain.Order{}, conflictErr(fmt.Sprintf("product %s is no longer available", req.ProductID))
	}
	if product.SellerID == req.BuyerID {
		return domain.Order{}, conflictErr("sellers cannot buy their own listing")
	}

	now := s.now().UTC()
	product.Status = domain.ProductSold
	product.SoldAt = &now
	product.UpdatedAt = now
	s.products[req.ProductID] = product

	order := domain.Order{
		ID:              req.OrderID,
		ProductID:       req.ProductID,
		BuyerID:         req.BuyerID,
		SellerID:        product.SellerID,
		Price:           product.Price,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		PaymentStatus:   domain.PaymentStatusFor(req.PaymentMethod),
		OrderStatus:     domain.OrderPending,
		ApprovalStatus:  domain.ApprovalPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.orders[order.ID] = order
	return order, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}
