package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/repositories"
)

// ReferenceService loads the documents other records point at so responses
// can embed display fields next to the raw IDs. Lookups are read-only and
// never count as catalog views; callers treat a miss as "leave the ID bare".
type ReferenceService interface {
	Product(ctx context.Context, productID string) (domain.Product, error)
	User(ctx context.Context, userID string) (domain.User, error)
}

type referenceService struct {
	products repositories.ProductRepository
	users    repositories.UserRepository
}

// NewReferenceService wires the read-only lookups used to decorate responses.
func NewReferenceService(products repositories.ProductRepository, users repositories.UserRepository) (ReferenceService, error) {
	if products == nil {
		return nil, errors.New("reference service: product repository is required")
	}
	if users == nil {
		return nil, errors.New("reference service: user repository is required")
	}
	return &referenceService{products: products, users: users}, nil
}

func (s *referenceService) Product(ctx context.Context, productID string) (domain.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, errors.New("reference service: product id is required")
	}
	return s.products.FindByID(ctx, productID)
}

func (s *referenceService) User(ctx context.Context, userID string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, errors.New("reference service: user id is required")
	}
	return s.users.FindByID(ctx, userID)
}
