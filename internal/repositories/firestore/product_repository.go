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

const productCollection = "products"

// ProductRepository persists marketplace listings in Firestore.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection)
	return &ProductRepository{base: base, provider: provider}, nil
}

// Insert creates the product document, failing with a conflict when the ID exists.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product id is required")
	}
	_, err := r.base.Create(ctx, product.ID, fromDomainProduct(product))
	return err
}

// Update overwrites the stored product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product id is required")
	}
	_, err := r.base.Set(ctx, product.ID, fromDomainProduct(product))
	return err
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	return r.base.Delete(ctx, productID)
}

// FindByID loads the product by ID.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(doc.ID, doc.Data), nil
}

// List returns listings matching the filter, newest first. Text search is
// applied in memory since Firestore has no substring predicate.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Category != "" {
			q = q.Where("category", "==", filter.Category)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		if filter.SellerID != "" {
			q = q.Where("sellerId", "==", filter.SellerID)
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 && filter.Search == "" && filter.MinPrice == 0 && filter.MaxPrice == 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product := toDomainProduct(doc.ID, doc.Data)
		if search != "" &&
			!strings.Contains(strings.ToLower(product.Title), search) &&
			!strings.Contains(strings.ToLower(product.Description), search) {
			continue
		}
		if filter.MinPrice > 0 && product.Price < filter.MinPrice {
			continue
		}
		if filter.MaxPrice > 0 && product.Price > filter.MaxPrice {
			continue
		}
		products = append(products, product)
		if filter.Limit > 0 && len(products) >= filter.Limit {
			break
		}
	}
	return products, nil
}

// IncrementViews bumps the view counter without rewriting the document.
func (r *ProductRepository) IncrementViews(ctx context.Context, productID string) error {
	_, err := r.base.Update(ctx, productID, []firestore.Update{
		{Path: "views", Value: firestore.Increment(1)},
	})
	return err
}

type productDocument struct {
	Title       string     `firestore:"title"`
	Description string     `firestore:"description"`
	Price       int64      `firestore:"price"`
	Category    string     `firestore:"category"`
	Condition   string     `firestore:"condition"`
	Images      []string   `firestore:"images"`
	Status      string     `firestore:"status"`
	SellerID    string     `firestore:"sellerId"`
	Location    string     `firestore:"location,omitempty"`
	Views       int64      `firestore:"views"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
	SoldAt      *time.Time `firestore:"soldAt,omitempty"`
}

func fromDomainProduct(product domain.Product) productDocument {
	return productDocument{
		Title:       strings.TrimSpace(product.Title),
		Description: product.Description,
		Price:       product.Price,
		Category:    strings.TrimSpace(product.Category),
		Condition:   string(product.Condition),
		Images:      append([]string(nil), product.Images...),
		Status:      string(product.Status),
		SellerID:    product.SellerID,
		Location:    strings.TrimSpace(product.Location),
		Views:       product.Views,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
		SoldAt:      product.SoldAt,
	}
}

func toDomainProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          id,
		Title:       doc.Title,
		Description: doc.Description,
		Price:       doc.Price,
		Category:    doc.Category,
		Condition:   domain.ProductCondition(doc.Condition),
		Images:      append([]string(nil), doc.Images...),
		Status:      domain.ProductStatus(doc.Status),
		SellerID:    doc.SellerID,
		Location:    doc.Location,
		Views:       doc.Views,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		SoldAt:      doc.SoldAt,
	}
}
