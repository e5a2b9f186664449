package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/easybuy/api/internal/domain"
	pfirestore "github.com/easybuy/api/internal/platform/firestore"
	"github.com/easybuy/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository reads and mutates orders outside the checkout transaction.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection)
	return &OrderRepository{base: base, provider: provider}, nil
}

// FindByID loads the order by ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// Update overwrites the stored order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.base.Set(ctx, order.ID, fromDomainOrder(order))
	return err
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.BuyerID != "" {
			q = q.Where("buyerId", "==", filter.BuyerID)
		}
		if filter.SellerID != "" {
			q = q.Where("sellerId", "==", filter.SellerID)
		}
		if filter.OrderStatus != "" {
			q = q.Where("orderStatus", "==", string(filter.OrderStatus))
		}
		if filter.ApprovalStatus != "" {
			q = q.Where("approvalStatus", "==", string(filter.ApprovalStatus))
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, toDomainOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

type orderDocument struct {
	ProductID       string     `firestore:"productId"`
	BuyerID         string     `firestore:"buyerId"`
	SellerID        string     `firestore:"sellerId"`
	Price           int64      `firestore:"price"`
	PaymentMethod   string     `firestore:"paymentMethod"`
	ShippingAddress string     `firestore:"shippingAddress"`
	PaymentStatus   string     `firestore:"paymentStatus"`
	OrderStatus     string     `firestore:"orderStatus"`
	ApprovalStatus  string     `firestore:"approvalStatus"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
	DeliveredAt     *time.Time `firestore:"deliveredAt,omitempty"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	return orderDocument{
		ProductID:       order.ProductID,
		BuyerID:         order.BuyerID,
		SellerID:        order.SellerID,
		Price:           order.Price,
		PaymentMethod:   string(order.PaymentMethod),
		ShippingAddress: strings.TrimSpace(order.ShippingAddress),
		PaymentStatus:   string(order.PaymentStatus),
		OrderStatus:     string(order.OrderStatus),
		ApprovalStatus:  string(order.ApprovalStatus),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		DeliveredAt:     order.DeliveredAt,
	}
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	return domain.Order{
		ID:              id,
		ProductID:       doc.ProductID,
		BuyerID:         doc.BuyerID,
		SellerID:        doc.SellerID,
		Price:           doc.Price,
		PaymentMethod:   domain.PaymentMethod(doc.PaymentMethod),
		ShippingAddress: doc.ShippingAddress,
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		OrderStatus:     domain.OrderStatus(doc.OrderStatus),
		ApprovalStatus:  domain.ApprovalStatus(doc.ApprovalStatus),
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		DeliveredAt:     doc.DeliveredAt,
	}
}
