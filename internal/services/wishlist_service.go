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
	// ErrWishlistInvalidInput signals the caller provided invalid data.
	ErrWishlistInvalidInput = errors.New("wishlist: invalid input")
	// ErrWishlistProductNotFound indicates the referenced product does not exist.
	ErrWishlistProductNotFound = errors.New("wishlist: product not found")
	// ErrWishlistDuplicate indicates the product is already wishlisted.
	ErrWishlistDuplicate = errors.New("wishlist: duplicate entry")
	// ErrWishlistEntryNotFound indicates the product is not on the wishlist.
	ErrWishlistEntryNotFound = errors.New("wishlist: entry not found")
)

// WishlistServiceDeps bundles collaborators for the wishlist service.
type WishlistServiceDeps struct {
	Wishlists repositories.WishlistRepository
	Products  repositories.ProductRepository
	Clock     func() time.Time
}

type wishlistService struct {
	wishlists repositories.WishlistRepository
	products  repositories.ProductRepository
	clock     func() time.Time
}

// NewWishlistService wires dependencies into a concrete WishlistService implementation.
func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Wishlists == nil {
		return nil, errors.New("wishlist service: wishlist repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("wishlist service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &wishlistService{wishlists: deps.Wishlists, products: deps.Products, clock: clock}, nil
}

// Get returns the user's wishlist, empty when nothing was saved yet.
func (s *wishlistService) Get(ctx context.Context, userID string) (domain.Wishlist, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Wishlist{}, fmt.Errorf("%w: user id is required", ErrWishlistInvalidInput)
	}
	wishlist, err := s.wishlists.Get(ctx, userID)
	if err != nil {
		return domain.Wishlist{}, err
	}
	return wishlist, nil
}

// Add appends a product to the wishlist. Sold products may still be
// wishlisted; only duplicates are rejected.
func (s *wishlistService) Add(ctx context.Context, userID, productID string) (domain.Wishlist, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Wishlist{}, fmt.Errorf("%w: user id is required", ErrWishlistInvalidInput)
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Wishlist{}, fmt.Errorf("%w: product id is required", ErrWishlistInvalidInput)
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Wishlist{}, fmt.Errorf("%w: %s", ErrWishlistProductNotFound, productID)
		}
		return domain.Wishlist{}, err
	}

	wishlist, err := s.wishlists.Get(ctx, userID)
	if err != nil {
		return domain.Wishlist{}, err
	}
	for _, entry := range wishlist.Entries {
		if entry.ProductID == productID {
			return domain.Wishlist{}, fmt.Errorf("%w: %s", ErrWishlistDuplicate, productID)
		}
	}

	now := s.clock().UTC()
	wishlist.UserID = userID
	wishlist.Entries = append(wishlist.Entries, domain.WishlistEntry{
		ProductID: productID,
		AddedAt:   now,
	})
	wishlist.UpdatedAt = now

	if err := s.wishlists.Save(ctx, wishlist); err != nil {
		return domain.Wishlist{}, err
	}
	return wishlist, nil
}

// Remove drops a product from the wishlist.
func (s *wishlistService) Remove(ctx context.Context, userID, productID string) (domain.Wishlist, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Wishlist{}, fmt.Errorf("%w: user id is required", ErrWishlistInvalidInput)
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Wishlist{}, fmt.Errorf("%w: product id is required", ErrWishlistInvalidInput)
	}

	wishlist, err := s.wishlists.Get(ctx, userID)
	if err != nil {
		return domain.Wishlist{}, err
	}

	idx := -1
	for i := range wishlist.Entries {
		if wishlist.Entries[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Wishlist{}, fmt.Errorf("%w: %s", ErrWishlistEntryNotFound, productID)
	}

	wishlist.Entries = append(wishlist.Entries[:idx], wishlist.Entries[idx+1:]...)
	wishlist.UserID = userID
	wishlist.UpdatedAt = s.clock().UTC()

	if err := s.wishlists.Save(ctx, wishlist); err != nil {
		return domain.Wishlist{}, err
	}
	return wishlist, nil
}
