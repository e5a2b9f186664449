package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/easybuy/api/internal/domain"
	pfirestore "github.com/easybuy/api/internal/platform/firestore"
)

const wishlistCollection = "wishlists"

// WishlistRepository persists per-user wishlists in Firestore, one document per user.
type WishlistRepository struct {
	base *pfirestore.BaseRepository[wishlistDocument]
}

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[wishlistDocument](provider, wishlistCollection)
	return &WishlistRepository{base: base}, nil
}

// Get loads the user's wishlist. A missing document is an empty wishlist.
func (r *WishlistRepository) Get(ctx context.Context, userID string) (domain.Wishlist, error) {
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Wishlist{UserID: userID}, nil
		}
		return domain.Wishlist{}, err
	}
	return toDomainWishlist(doc.ID, doc.Data), nil
}

// Save upserts the user's wishlist document.
func (r *WishlistRepository) Save(ctx context.Context, wishlist domain.Wishlist) error {
	if strings.TrimSpace(wishlist.UserID) == "" {
		return errors.New("wishlist user id is required")
	}
	_, err := r.base.Set(ctx, wishlist.UserID, fromDomainWishlist(wishlist))
	return err
}

type wishlistDocument struct {
	Entries   []wishlistEntryDocument `firestore:"entries"`
	UpdatedAt time.Time               `firestore:"updatedAt"`
}

type wishlistEntryDocument struct {
	ProductID string    `firestore:"productId"`
	AddedAt   time.Time `firestore:"addedAt"`
}

func fromDomainWishlist(wishlist domain.Wishlist) wishlistDocument {
	entries := make([]wishlistEntryDocument, 0, len(wishlist.Entries))
	for _, entry := range wishlist.Entries {
		entries = append(entries, wishlistEntryDocument{
			ProductID: entry.ProductID,
			AddedAt:   entry.AddedAt,
		})
	}
	return wishlistDocument{Entries: entries, UpdatedAt: wishlist.UpdatedAt}
}

func toDomainWishlist(userID string, doc wishlistDocument) domain.Wishlist {
	entries := make([]domain.WishlistEntry, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		entries = append(entries, domain.WishlistEntry{
			ProductID: entry.ProductID,
			AddedAt:   entry.AddedAt,
		})
	}
	return domain.Wishlist{UserID: userID, Entries: entries, UpdatedAt: doc.UpdatedAt}
}
