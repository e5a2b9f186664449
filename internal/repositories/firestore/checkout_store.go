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

// CheckoutStore places orders inside a Firestore transaction. The product is
// re-read within the transaction so the availability check and the sold
// transition commit atomically; a concurrent buyer aborts with a conflict.
type CheckoutStore struct {
	provider *pfirestore.Provider
	now      func() time.Time
}

// NewCheckoutStore constructs the transactional checkout store.
func NewCheckoutStore(provider *pfirestore.Provider) (*CheckoutStore, error) {
	if provider == nil {
		return nil, errors.New("checkout store requires firestore provider")
	}
	return &CheckoutStore{provider: provider, now: time.Now}, nil
}

// WithClock overrides the clock, primarily for tests.
func (s *CheckoutStore) WithClock(now func() time.Time) *CheckoutStore {
	if now != nil {
		s.now = now
	}
	return s
}

// PlaceOrder atomically marks the product sold and creates the order document.
// Price and seller are snapshotted from the product state read in-transaction.
func (s *CheckoutStore) PlaceOrder(ctx context.Context, req repositories.CheckoutRequest) (domain.Order, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return domain.Order{}, errors.New("product id is required")
	}
	if strings.TrimSpace(req.BuyerID) == "" {
		return domain.Order{}, errors.New("buyer id is required")
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	var placed domain.Order
	err = pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		productRef := client.Collection(productCollection).Doc(req.ProductID)
		snap, err := tx.Get(productRef)
		if err != nil {
			return err
		}

		var productDoc productDocument
		if err := snap.DataTo(&productDoc); err != nil {
			return err
		}
		product := toDomainProduct(snap.Ref.ID, productDoc)

		if product.Status != domain.ProductAvailable {
			return errConflict("product %s is no longer available", req.ProductID)
		}
		if product.SellerID == req.BuyerID {
			return errConflict("buyer %s owns product %s", req.BuyerID, req.ProductID)
		}

		now := s.now().UTC()
		order := domain.Order{
			ID:              req.OrderID,
			ProductID:       product.ID,
			BuyerID:         req.BuyerID,
			SellerID:        product.SellerID,
			Price:           product.Price,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: strings.TrimSpace(req.ShippingAddress),
			PaymentStatus:   domain.PaymentStatusFor(req.PaymentMethod),
			OrderStatus:     domain.OrderPending,
			ApprovalStatus:  domain.ApprovalPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if err := tx.Update(productRef, []firestore.Update{
			{Path: "status", Value: string(domain.ProductSold)},
			{Path: "soldAt", Value: now},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		orderRef := client.Collection(orderCollection).Doc(order.ID)
		if err := tx.Create(orderRef, fromDomainOrder(order)); err != nil {
			return err
		}

		placed = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return placed, nil
}
