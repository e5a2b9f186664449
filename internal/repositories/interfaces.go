package repositories

import (
	"context"

	domain "github.com/easybuy/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close() error

	Users() UserRepository
	Products() ProductRepository
	Orders() OrderRepository
	Carts() CartRepository
	Wishlists() WishlistRepository
	Checkout() CheckoutStore
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UserRepository persists user accounts and credentials.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	TouchLastActive(ctx context.Context, userID string) error
}

// ProductListFilter narrows product listings.
type ProductListFilter struct {
	Category string
	Status   domain.ProductStatus
	SellerID string
	Search   string
	MinPrice int64
	MaxPrice int64
	Limit    int
}

// ProductRepository persists marketplace listings.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
	IncrementViews(ctx context.Context, productID string) error
}

// OrderListFilter narrows order listings. Zero values match everything.
type OrderListFilter struct {
	BuyerID        string
	SellerID       string
	OrderStatus    domain.OrderStatus
	ApprovalStatus domain.ApprovalStatus
	Limit          int
}

// OrderRepository reads and mutates orders outside the checkout transaction.
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// CheckoutRequest carries the buyer's input to the transactional checkout.
type CheckoutRequest struct {
	OrderID         string
	ProductID       string
	BuyerID         string
	PaymentMethod   domain.PaymentMethod
	ShippingAddress string
}

// CheckoutStore atomically transitions a product to sold and creates the order.
// The order snapshot (price, seller) is taken from the product state read inside
// the transaction, so a concurrent second buyer observes a conflict.
type CheckoutStore interface {
	PlaceOrder(ctx context.Context, req CheckoutRequest) (domain.Order, error)
}

// CartRepository persists per-user shopping carts keyed by user ID.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Clear(ctx context.Context, userID string) error
}

// WishlistRepository persists per-user wishlists keyed by user ID.
type WishlistRepository interface {
	Get(ctx context.Context, userID string) (domain.Wishlist, error)
	Save(ctx context.Context, wishlist domain.Wishlist) error
}
