package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/easybuy/api/internal/domain"
	pfirestore "github.com/easybuy/api/internal/platform/firestore"
)

const cartCollection = "carts"

// CartRepository persists per-user carts in Firestore, one document per user.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection)
	return &CartRepository{base: base}, nil
}

// Get loads the user's cart. A missing document is an empty cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{UserID: userID}, nil
		}
		return domain.Cart{}, err
	}
	return toDomainCart(doc.ID, doc.Data), nil
}

// Save upserts the user's cart document.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	if strings.TrimSpace(cart.UserID) == "" {
		return errors.New("cart user id is required")
	}
	_, err := r.base.Set(ctx, cart.UserID, fromDomainCart(cart))
	return err
}

// Clear removes the user's cart document.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	err := r.base.Delete(ctx, userID)
	var repoErr *pfirestore.Error
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return nil
	}
	return err
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string    `firestore:"productId"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
}

func fromDomainCart(cart domain.Cart) cartDocument {
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return cartDocument{Items: items, UpdatedAt: cart.UpdatedAt}
}

func toDomainCart(userID string, doc cartDocument) domain.Cart {
	items := make([]domain.CartItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return domain.Cart{UserID: userID, Items: items, UpdatedAt: doc.UpdatedAt}
}
