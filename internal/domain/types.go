package domain

import (
	"strings"
	"time"
)

// UserRole identifies the capability set granted to an account.
type UserRole string

const (
	RoleBuyer  UserRole = "buyer"
	RoleSeller UserRole = "seller"
	RoleAdmin  UserRole = "admin"
)

// ParseUserRole normalises a raw role string, reporting whether it is valid.
func ParseUserRole(raw string) (UserRole, bool) {
	switch UserRole(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleBuyer:
		return RoleBuyer, true
	case RoleSeller:
		return RoleSeller, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// User is an account in the marketplace. Passwords are stored only as
// bcrypt hashes; the plaintext never leaves the auth layer.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Phone        string
	Address      string
	Location     string
	IsActive     bool
	LastActiveAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProductStatus gates visibility in available listings.
type ProductStatus string

const (
	ProductAvailable ProductStatus = "available"
	ProductSold      ProductStatus = "sold"
)

// ProductCondition describes the wear grade of a second-hand item.
type ProductCondition string

const (
	ConditionNew     ProductCondition = "New"
	ConditionLikeNew ProductCondition = "Like New"
	ConditionGood    ProductCondition = "Good"
	ConditionFair    ProductCondition = "Fair"
	ConditionPoor    ProductCondition = "Poor"
)

var productConditions = map[ProductCondition]struct{}{
	ConditionNew:     {},
	ConditionLikeNew: {},
	ConditionGood:    {},
	ConditionFair:    {},
	ConditionPoor:    {},
}

// ValidCondition reports whether the condition is one of the known grades.
func ValidCondition(c ProductCondition) bool {
	_, ok := productConditions[c]
	return ok
}

// MaxProductImages bounds the encoded image payloads carried per listing.
const MaxProductImages = 5

// Product is a single second-hand listing. Status only ever moves
// available -> sold; a sold product is never flipped back by the system.
type Product struct {
	ID          string
	Title       string
	Description string
	Price       int64
	Category    string
	Condition   ProductCondition
	Images      []string
	Status      ProductStatus
	SellerID    string
	Location    string
	Views       int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SoldAt      *time.Time
}

// CartItem pairs a product reference with a desired quantity.
type CartItem struct {
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// Cart holds a user's staged items. Entries survive checkout and product
// status changes; stale references are tolerated and resolved lazily.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// WishlistEntry records a saved product. At most one entry exists per
// (user, product) pair.
type WishlistEntry struct {
	ProductID string
	AddedAt   time.Time
}

// Wishlist is the per-user set of saved products.
type Wishlist struct {
	UserID    string
	Entries   []WishlistEntry
	UpdatedAt time.Time
}

// PaymentMethod enumerates the supported (simulated) payment instruments.
type PaymentMethod string

const (
	PaymentCOD        PaymentMethod = "COD"
	PaymentVisa       PaymentMethod = "Visa"
	PaymentMasterCard PaymentMethod = "MasterCard"
)

// ParsePaymentMethod validates a raw payment method value.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.TrimSpace(raw)) {
	case PaymentCOD:
		return PaymentCOD, true
	case PaymentVisa:
		return PaymentVisa, true
	case PaymentMasterCard:
		return PaymentMasterCard, true
	}
	return "", false
}

// PaymentStatus tracks settlement of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
)

// ParsePaymentStatus validates a raw payment status value.
func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	switch PaymentStatus(strings.TrimSpace(raw)) {
	case PaymentPending:
		return PaymentPending, true
	case PaymentCompleted:
		return PaymentCompleted, true
	}
	return "", false
}

// PaymentStatusFor derives the settlement state at order creation: card
// methods settle instantly (simulated), COD stays pending until approval.
func PaymentStatusFor(method PaymentMethod) PaymentStatus {
	if method == PaymentVisa || method == PaymentMasterCard {
		return PaymentCompleted
	}
	return PaymentPending
}

// OrderStatus is the fulfilment state. Processing is surfaced for display
// compatibility but is produced by no transition.
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderConfirmed  OrderStatus = "Confirmed"
	OrderCancelled  OrderStatus = "Cancelled"
	OrderDelivered  OrderStatus = "Delivered"
)

// ApprovalStatus is the admin-controlled gate on an order. Once it leaves
// Pending the order is immutable from the buyer's perspective.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// ParseApprovalDecision accepts only the two terminal decisions.
func ParseApprovalDecision(raw string) (ApprovalStatus, bool) {
	switch ApprovalStatus(strings.TrimSpace(raw)) {
	case ApprovalApproved:
		return ApprovalApproved, true
	case ApprovalRejected:
		return ApprovalRejected, true
	}
	return "", false
}

// Order records a purchase attempt. Price is snapshotted from the product
// at creation time and never changes afterwards.
type Order struct {
	ID              string
	ProductID       string
	BuyerID         string
	SellerID        string
	Price           int64
	PaymentMethod   PaymentMethod
	ShippingAddress string
	PaymentStatus   PaymentStatus
	OrderStatus     OrderStatus
	ApprovalStatus  ApprovalStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeliveredAt     *time.Time
}
