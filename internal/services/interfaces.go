package services

import (
	"context"
	"time"

	domain "github.com/easybuy/api/internal/domain"
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	ProductID      string
	BuyerID        string
	SellerID       string
	OrderStatus    string
	ApprovalStatus string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// CheckoutCommand carries the buyer's input to order creation.
type CheckoutCommand struct {
	BuyerID         string
	ProductID       string
	PaymentMethod   string
	ShippingAddress string
}

// EditOrderCommand carries buyer-editable fields for a pending order.
// Nil pointers leave the stored value untouched.
type EditOrderCommand struct {
	OrderID         string
	BuyerID         string
	ShippingAddress *string
	PaymentMethod   *string
}

// ApprovalCommand carries an admin approval decision.
type ApprovalCommand struct {
	OrderID  string
	ActorID  string
	Decision string
}

// PaymentStatusCommand carries an admin override of an order's settlement state.
type PaymentStatusCommand struct {
	OrderID string
	ActorID string
	Status  string
}

// DeliverCommand marks an order delivered by its seller or an admin.
type DeliverCommand struct {
	OrderID   string
	ActorID   string
	ActorRole string
}

// OrderReadContext identifies the caller for per-order authorisation.
type OrderReadContext struct {
	UserID string
	Role   string
}

// OrderListQuery selects which orders the caller may list.
type OrderListQuery struct {
	UserID string
	Role   string
	All    bool
	Limit  int
}

// OrderService owns the order lifecycle and approval state machine.
type OrderService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (domain.Order, error)
	EditPendingOrder(ctx context.Context, cmd EditOrderCommand) (domain.Order, error)
	SetApproval(ctx context.Context, cmd ApprovalCommand) (domain.Order, error)
	SetPaymentStatus(ctx context.Context, cmd PaymentStatusCommand) (domain.Order, error)
	MarkDelivered(ctx context.Context, cmd DeliverCommand) (domain.Order, error)
	ListOrders(ctx context.Context, query OrderListQuery) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID string, reader OrderReadContext) (domain.Order, error)
}

// CreateProductCommand carries seller input for a new listing.
type CreateProductCommand struct {
	SellerID    string
	Title       string
	Description string
	Price       int64
	Category    string
	Condition   string
	Images      []string
	Location    string
}

// UpdateProductCommand carries owner-editable listing fields.
type UpdateProductCommand struct {
	ProductID   string
	ActorID     string
	ActorRole   string
	Title       *string
	Description *string
	Price       *int64
	Category    *string
	Condition   *string
	Images      []string
	Location    *string
}

// ProductListQuery filters the public catalog view.
type ProductListQuery struct {
	Category string
	Status   string
	SellerID string
	Search   string
	MinPrice int64
	MaxPrice int64
	Limit    int
}

// CatalogService owns product listings.
type CatalogService interface {
	Create(ctx context.Context, cmd CreateProductCommand) (domain.Product, error)
	Update(ctx context.Context, cmd UpdateProductCommand) (domain.Product, error)
	Delete(ctx context.Context, productID, actorID, actorRole string) error
	Get(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, query ProductListQuery) ([]domain.Product, error)
}

// CartService owns the per-user shopping cart.
type CartService interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// WishlistService owns the per-user wishlist.
type WishlistService interface {
	Get(ctx context.Context, userID string) (domain.Wishlist, error)
	Add(ctx context.Context, userID, productID string) (domain.Wishlist, error)
	Remove(ctx context.Context, userID, productID string) (domain.Wishlist, error)
}

// RegisterCommand carries sign-up input.
type RegisterCommand struct {
	Name     string
	Email    string
	Password string
	Role     string
	Phone    string
	Address  string
	Location string
}

// UpdateProfileCommand carries profile edits. Nil pointers leave fields untouched.
type UpdateProfileCommand struct {
	UserID   string
	Name     *string
	Phone    *string
	Address  *string
	Location *string
}

// AuthResult couples the stored user with a freshly minted access token.
type AuthResult struct {
	User  domain.User
	Token string
}

// UserService owns accounts, credentials, and profiles.
type UserService interface {
	Register(ctx context.Context, cmd RegisterCommand) (AuthResult, error)
	Login(ctx context.Context, email, password string) (AuthResult, error)
	GetProfile(ctx context.Context, userID string) (domain.User, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (domain.User, error)
}

// Logger is the minimal structured logging callback services emit through.
type Logger func(ctx context.Context, event string, fields map[string]any)

func noopLogger(context.Context, string, map[string]any) {}
