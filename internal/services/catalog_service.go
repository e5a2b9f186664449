package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/repositories"
)

const productIDPrefix = "prd_"

var (
	// ErrProductInvalidInput signals the caller provided invalid listing data.
	ErrProductInvalidInput = errors.New("product: invalid input")
	// ErrProductNotFound indicates the listing could not be located.
	ErrProductNotFound = errors.New("product: not found")
	// ErrProductForbidden indicates the caller does not own the listing.
	ErrProductForbidden = errors.New("product: forbidden")
	// ErrProductConflict indicates a duplicate or concurrent modification.
	ErrProductConflict = errors.New("product: conflict")
)

// CatalogServiceDeps bundles collaborators for the catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type catalogService struct {
	products  repositories.ProductRepository
	clock     func() time.Time
	newID     func() string
	sanitizer *bluemonday.Policy
	logger    Logger
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &catalogService{
		products:  deps.Products,
		clock:     clock,
		newID:     idGen,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}, nil
}

// Create validates and stores a new listing owned by the seller.
func (s *catalogService) Create(ctx context.Context, cmd CreateProductCommand) (domain.Product, error) {
	if strings.TrimSpace(cmd.SellerID) == "" {
		return domain.Product{}, fmt.Errorf("%w: seller id is required", ErrProductInvalidInput)
	}

	title := s.sanitizeText(cmd.Title)
	if title == "" {
		return domain.Product{}, fmt.Errorf("%w: title is required", ErrProductInvalidInput)
	}
	if cmd.Price < 0 {
		return domain.Product{}, fmt.Errorf("%w: price must not be negative", ErrProductInvalidInput)
	}
	condition := domain.ProductCondition(strings.TrimSpace(cmd.Condition))
	if !domain.ValidCondition(condition) {
		return domain.Product{}, fmt.Errorf("%w: unknown condition %q", ErrProductInvalidInput, cmd.Condition)
	}
	if len(cmd.Images) > domain.MaxProductImages {
		return domain.Product{}, fmt.Errorf("%w: at most %d images allowed", ErrProductInvalidInput, domain.MaxProductImages)
	}
	category := strings.TrimSpace(cmd.Category)
	if category == "" {
		return domain.Product{}, fmt.Errorf("%w: category is required", ErrProductInvalidInput)
	}

	now := s.clock().UTC()
	product := domain.Product{
		ID:          productIDPrefix + s.newID(),
		Title:       title,
		Description: s.sanitizeText(cmd.Description),
		Price:       cmd.Price,
		Category:    category,
		Condition:   condition,
		Images:      append([]string(nil), cmd.Images...),
		Status:      domain.ProductAvailable,
		SellerID:    cmd.SellerID,
		Location:    strings.TrimSpace(cmd.Location),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.products.Insert(ctx, product); err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

// Update applies owner edits. Status and seller are never writable here.
func (s *catalogService) Update(ctx context.Context, cmd UpdateProductCommand) (domain.Product, error) {
	if strings.TrimSpace(cmd.ProductID) == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrProductInvalidInput)
	}

	product, err := s.products.FindByID(ctx, cmd.ProductID)
	if err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}
	if err := s.authorizeOwner(product, cmd.ActorID, cmd.ActorRole); err != nil {
		return domain.Product{}, err
	}

	if cmd.Title != nil {
		title := s.sanitizeText(*cmd.Title)
		if title == "" {
			return domain.Product{}, fmt.Errorf("%w: title cannot be empty", ErrProductInvalidInput)
		}
		product.Title = title
	}
	if cmd.Description != nil {
		product.Description = s.sanitizeText(*cmd.Description)
	}
	if cmd.Price != nil {
		if *cmd.Price < 0 {
			return domain.Product{}, fmt.Errorf("%w: price must not be negative", ErrProductInvalidInput)
		}
		product.Price = *cmd.Price
	}
	if cmd.Category != nil {
		category := strings.TrimSpace(*cmd.Category)
		if category == "" {
			return domain.Product{}, fmt.Errorf("%w: category cannot be empty", ErrProductInvalidInput)
		}
		product.Category = category
	}
	if cmd.Condition != nil {
		condition := domain.ProductCondition(strings.TrimSpace(*cmd.Condition))
		if !domain.ValidCondition(condition) {
			return domain.Product{}, fmt.Errorf("%w: unknown condition %q", ErrProductInvalidInput, *cmd.Condition)
		}
		product.Condition = condition
	}
	if cmd.Images != nil {
		if len(cmd.Images) > domain.MaxProductImages {
			return domain.Product{}, fmt.Errorf("%w: at most %d images allowed", ErrProductInvalidInput, domain.MaxProductImages)
		}
		product.Images = append([]string(nil), cmd.Images...)
	}
	if cmd.Location != nil {
		product.Location = strings.TrimSpace(*cmd.Location)
	}
	product.UpdatedAt = s.clock().UTC()

	if err := s.products.Update(ctx, product); err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

// Delete removes a listing on behalf of its owner or an admin.
func (s *catalogService) Delete(ctx context.Context, productID, actorID, actorRole string) error {
	if strings.TrimSpace(productID) == "" {
		return fmt.Errorf("%w: product id is required", ErrProductInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if err := s.authorizeOwner(product, actorID, actorRole); err != nil {
		return err
	}

	if err := s.products.Delete(ctx, productID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// Get returns the listing and bumps its view counter best-effort.
func (s *catalogService) Get(ctx context.Context, productID string) (domain.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrProductInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}

	if err := s.products.IncrementViews(ctx, productID); err != nil {
		s.logger(ctx, "product.views.increment.failed", map[string]any{
			"product": productID,
			"error":   err.Error(),
		})
	} else {
		product.Views++
	}
	return product, nil
}

// List returns listings matching the query.
func (s *catalogService) List(ctx context.Context, query ProductListQuery) ([]domain.Product, error) {
	filter := repositories.ProductListFilter{
		Category: strings.TrimSpace(query.Category),
		SellerID: strings.TrimSpace(query.SellerID),
		Search:   strings.TrimSpace(query.Search),
		MinPrice: query.MinPrice,
		MaxPrice: query.MaxPrice,
		Limit:    query.Limit,
	}
	if status := strings.ToLower(strings.TrimSpace(query.Status)); status != "" {
		switch domain.ProductStatus(status) {
		case domain.ProductAvailable, domain.ProductSold:
			filter.Status = domain.ProductStatus(status)
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrProductInvalidInput, query.Status)
		}
	}

	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return products, nil
}

func (s *catalogService) authorizeOwner(product domain.Product, actorID, actorRole string) error {
	if strings.EqualFold(actorRole, string(domain.RoleAdmin)) {
		return nil
	}
	if product.SellerID != actorID {
		return fmt.Errorf("%w: listing %s belongs to another seller", ErrProductForbidden, product.ID)
	}
	return nil
}

func (s *catalogService) sanitizeText(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *catalogService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrProductConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("product: repository unavailable: %w", err)
		}
	}
	return err
}
