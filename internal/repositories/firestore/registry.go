package firestore

import (
	"errors"

	pfirestore "github.com/easybuy/api/internal/platform/firestore"
	"github.com/easybuy/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the shared interfaces.
type Registry struct {
	provider *pfirestore.Provider

	users     *UserRepository
	products  *ProductRepository
	orders    *OrderRepository
	carts     *CartRepository
	wishlists *WishlistRepository
	checkout  *CheckoutStore
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs all repositories against the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	wishlists, err := NewWishlistRepository(provider)
	if err != nil {
		return nil, err
	}
	checkout, err := NewCheckoutStore(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		users:     users,
		products:  products,
		orders:    orders,
		carts:     carts,
		wishlists: wishlists,
		checkout:  checkout,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close() error {
	return r.provider.Close()
}

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }

// Products returns the product repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Wishlists returns the wishlist repository.
func (r *Registry) Wishlists() repositories.WishlistRepository { return r.wishlists }

// Checkout returns the transactional checkout store.
func (r *Registry) Checkout() repositories.CheckoutStore { return r.checkout }
