package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/easybuy/api/internal/domain"
	pfirestore "github.com/easybuy/api/internal/platform/firestore"
)

const userCollection = "users"

// UserRepository persists user accounts in Firestore.
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection)
	return &UserRepository{base: base, provider: provider}, nil
}

// Insert creates the user document, failing with a conflict when the ID exists.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user id is required")
	}
	_, err := r.base.Create(ctx, user.ID, fromDomainUser(user))
	return err
}

// Update overwrites the stored user document.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user id is required")
	}
	_, err := r.base.Set(ctx, user.ID, fromDomainUser(user))
	return err
}

// FindByID loads the user by ID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(doc.ID, doc.Data), nil
}

// FindByEmail looks up a user by their normalised email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	normalised := strings.ToLower(strings.TrimSpace(email))
	if normalised == "" {
		return domain.User{}, errors.New("email is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("email", "==", normalised).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, pfirestore.WrapError("users.query", errNotFound("user", normalised))
	}
	return toDomainUser(docs[0].ID, docs[0].Data), nil
}

// TouchLastActive records activity without rewriting the whole document.
func (r *UserRepository) TouchLastActive(ctx context.Context, userID string) error {
	_, err := r.base.Update(ctx, userID, []firestore.Update{
		{Path: "lastActiveAt", Value: firestore.ServerTimestamp},
	})
	return err
}

type userDocument struct {
	Name         string     `firestore:"name"`
	Email        string     `firestore:"email"`
	PasswordHash string     `firestore:"passwordHash"`
	Role         string     `firestore:"role"`
	Phone        string     `firestore:"phone,omitempty"`
	Address      string     `firestore:"address,omitempty"`
	Location     string     `firestore:"location,omitempty"`
	IsActive     bool       `firestore:"isActive"`
	LastActiveAt *time.Time `firestore:"lastActiveAt,omitempty"`
	CreatedAt    time.Time  `firestore:"createdAt"`
	UpdatedAt    time.Time  `firestore:"updatedAt"`
}

func fromDomainUser(user domain.User) userDocument {
	return userDocument{
		Name:         strings.TrimSpace(user.Name),
		Email:        strings.ToLower(strings.TrimSpace(user.Email)),
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		Phone:        strings.TrimSpace(user.Phone),
		Address:      strings.TrimSpace(user.Address),
		Location:     strings.TrimSpace(user.Location),
		IsActive:     user.IsActive,
		LastActiveAt: user.LastActiveAt,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toDomainUser(id string, doc userDocument) domain.User {
	return domain.User{
		ID:           id,
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Role:         domain.UserRole(doc.Role),
		Phone:        doc.Phone,
		Address:      doc.Address,
		Location:     doc.Location,
		IsActive:     doc.IsActive,
		LastActiveAt: doc.LastActiveAt,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}
