package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/repositories"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid cart data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartProductNotFound indicates the referenced product does not exist.
	ErrCartProductNotFound = errors.New("cart: product not found")
	// ErrCartProductUnavailable indicates the product is no longer purchasable.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
	// ErrCartItemNotFound indicates the product is not in the cart.
	ErrCartItemNotFound = errors.New("cart: item not found")
)

// CartServiceDeps bundles collaborators for the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &cartService{carts: deps.Carts, products: deps.Products, clock: clock}, nil
}

// Get returns the user's cart, empty when nothing was saved yet. Entries that
// became stale since they were added are kept; checkout is where availability
// is enforced.
func (s *cartService) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// AddItem puts an available product in the cart, merging quantity when the
// product is already there.
func (s *cartService) AddItem(ctx context.Context, userID, productID string, quantity int) (domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if quantity <= 0 {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{}, fmt.Errorf("%w: %s", ErrCartProductNotFound, productID)
		}
		return domain.Cart{}, err
	}
	if product.Status != domain.ProductAvailable {
		return domain.Cart{}, fmt.Errorf("%w: %s", ErrCartProductUnavailable, productID)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	now := s.clock().UTC()
	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: productID,
			Quantity:  quantity,
			AddedAt:   now,
		})
	}
	cart.UserID = userID
	cart.UpdatedAt = now

	if err := s.carts.Save(ctx, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// UpdateQuantity sets the quantity for a cart entry. Zero or negative removes it.
func (s *cartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Cart{}, fmt.Errorf("%w: %s", ErrCartItemNotFound, productID)
	}

	if quantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		cart.Items[idx].Quantity = quantity
	}
	cart.UserID = userID
	cart.UpdatedAt = s.clock().UTC()

	if err := s.carts.Save(ctx, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// RemoveItem drops a product from the cart.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	return s.UpdateQuantity(ctx, userID, productID, 0)
}

// Clear empties the cart. A cart that never existed clears cleanly.
func (s *cartService) Clear(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.carts.Clear(ctx, userID)
}
