package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/platform/auth"
	"github.com/easybuy/api/internal/repositories"
)

const userIDPrefix = "usr_"

var (
	// ErrUserInvalidInput signals invalid registration or profile data.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserEmailTaken indicates the email is already registered.
	ErrUserEmailTaken = errors.New("user: email already registered")
	// ErrUserNotFound indicates no account matches the lookup.
	ErrUserNotFound = errors.New("user: not found")
	// ErrUserBadCredentials indicates the email or password did not match.
	ErrUserBadCredentials = errors.New("user: bad credentials")
	// ErrUserInactive indicates the account has been deactivated.
	ErrUserInactive = errors.New("user: account inactive")
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// AccessTokenIssuer mints signed access tokens for authenticated identities.
type AccessTokenIssuer interface {
	Issue(identity auth.Identity) (string, error)
}

// UserServiceDeps bundles collaborators for the user service.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	Tokens      AccessTokenIssuer
	BcryptCost  int
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type userService struct {
	users      repositories.UserRepository
	tokens     AccessTokenIssuer
	bcryptCost int
	clock      func() time.Time
	newID      func() string
	logger     Logger
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("user service: token issuer is required")
	}

	cost := deps.BcryptCost
	if cost == 0 {
		cost = auth.DefaultBcryptCost
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

	return &userService{
		users:      deps.Users,
		tokens:     deps.Tokens,
		bcryptCost: cost,
		clock:      clock,
		newID:      idGen,
		logger:     logger,
	}, nil
}

// Register creates an account and returns it with a fresh access token.
func (s *userService) Register(ctx context.Context, cmd RegisterCommand) (AuthResult, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return AuthResult{}, fmt.Errorf("%w: name is required", ErrUserInvalidInput)
	}
	email, err := normaliseEmail(cmd.Email)
	if err != nil {
		return AuthResult{}, err
	}
	role, ok := domain.ParseUserRole(cmd.Role)
	if !ok {
		return AuthResult{}, fmt.Errorf("%w: unknown role %q", ErrUserInvalidInput, cmd.Role)
	}
	if role == domain.RoleAdmin {
		// Admin accounts are provisioned out of band, never via sign-up.
		return AuthResult{}, fmt.Errorf("%w: role %q cannot self-register", ErrUserInvalidInput, cmd.Role)
	}
	if phone := strings.TrimSpace(cmd.Phone); phone != "" && !phonePattern.MatchString(phone) {
		return AuthResult{}, fmt.Errorf("%w: phone must be 10 digits", ErrUserInvalidInput)
	}

	hash, err := auth.HashPassword(cmd.Password, s.bcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrUserInvalidInput, err)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return AuthResult{}, fmt.Errorf("%w: %s", ErrUserEmailTaken, email)
	} else if !isNotFound(err) {
		return AuthResult{}, err
	}

	now := s.clock().UTC()
	user := domain.User{
		ID:           userIDPrefix + s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        strings.TrimSpace(cmd.Phone),
		Address:      strings.TrimSpace(cmd.Address),
		Location:     strings.TrimSpace(cmd.Location),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Insert(ctx, user); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return AuthResult{}, fmt.Errorf("%w: %s", ErrUserEmailTaken, email)
		}
		return AuthResult{}, err
	}

	token, err := s.tokens.Issue(identityFor(user))
	if err != nil {
		return AuthResult{}, fmt.Errorf("user: issue token: %w", err)
	}
	return AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials against the stored bcrypt hash. Every account,
// admin included, authenticates through this same path.
func (s *userService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	normalised, err := normaliseEmail(email)
	if err != nil {
		return AuthResult{}, err
	}
	if password == "" {
		return AuthResult{}, fmt.Errorf("%w: password is required", ErrUserInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, normalised)
	if err != nil {
		if isNotFound(err) {
			return AuthResult{}, ErrUserBadCredentials
		}
		return AuthResult{}, err
	}
	if !user.IsActive {
		return AuthResult{}, ErrUserInactive
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return AuthResult{}, ErrUserBadCredentials
	}

	if err := s.users.TouchLastActive(ctx, user.ID); err != nil {
		s.logger(ctx, "user.last_active.update.failed", map[string]any{
			"user":  user.ID,
			"error": err.Error(),
		})
	}

	token, err := s.tokens.Issue(identityFor(user))
	if err != nil {
		return AuthResult{}, fmt.Errorf("user: issue token: %w", err)
	}
	return AuthResult{User: user, Token: token}, nil
}

// GetProfile returns the stored account.
func (s *userService) GetProfile(ctx context.Context, userID string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return domain.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return domain.User{}, err
	}
	return user, nil
}

// UpdateProfile applies partial edits to the caller's own profile. Email,
// role, and password travel through dedicated flows, not this one.
func (s *userService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (domain.User, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return domain.User{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	user, err := s.users.FindByID(ctx, cmd.UserID)
	if err != nil {
		if isNotFound(err) {
			return domain.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, cmd.UserID)
		}
		return domain.User{}, err
	}

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return domain.User{}, fmt.Errorf("%w: name cannot be empty", ErrUserInvalidInput)
		}
		user.Name = name
	}
	if cmd.Phone != nil {
		phone := strings.TrimSpace(*cmd.Phone)
		if phone != "" && !phonePattern.MatchString(phone) {
			return domain.User{}, fmt.Errorf("%w: phone must be 10 digits", ErrUserInvalidInput)
		}
		user.Phone = phone
	}
	if cmd.Address != nil {
		user.Address = strings.TrimSpace(*cmd.Address)
	}
	if cmd.Location != nil {
		user.Location = strings.TrimSpace(*cmd.Location)
	}
	user.UpdatedAt = s.clock().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func identityFor(user domain.User) auth.Identity {
	return auth.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}
}

func normaliseEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrUserInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: malformed email %q", ErrUserInvalidInput, raw)
	}
	return email, nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
