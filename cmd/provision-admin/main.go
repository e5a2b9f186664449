// Command provision-admin creates an admin account directly in Firestore.
// Admin accounts cannot be created through the public sign-up endpoint; this
// tool is the only supported path and is meant to be run by an operator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/platform/auth"
	"github.com/easybuy/api/internal/platform/config"
	pfirestore "github.com/easybuy/api/internal/platform/firestore"
	"github.com/easybuy/api/internal/platform/observability"
	"github.com/easybuy/api/internal/platform/secrets"
	"github.com/easybuy/api/internal/repositories"
	firestoreRepo "github.com/easybuy/api/internal/repositories/firestore"

	"github.com/oklog/ulid/v2"
)

func main() {
	name := flag.String("name", "", "display name for the admin account")
	email := flag.String("email", "", "email address for the admin account")
	flag.Parse()

	if err := run(*name, *email); err != nil {
		fmt.Fprintf(os.Stderr, "provision-admin: %v\n", err)
		os.Exit(1)
	}
}

func run(name, email string) error {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return errors.New("both -name and -email are required")
	}

	// The password travels through the environment rather than argv so it
	// does not show up in shell history or process listings.
	password := os.Getenv("ADMIN_PASSWORD")
	if strings.TrimSpace(password) == "" {
		return errors.New("ADMIN_PASSWORD environment variable is required")
	}

	ctx := context.Background()

	logger, err := observability.NewLogger()
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	fetcher := secrets.NewFetcher(secrets.WithLogger(logger.Named("secrets")))
	defer func() {
		_ = fetcher.Close()
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)),
	)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	hash, err := auth.HashPassword(password, cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	users, err := firestoreRepo.NewUserRepository(provider)
	if err != nil {
		return fmt.Errorf("initialise user repository: %w", err)
	}

	if _, err := users.FindByEmail(ctx, email); err == nil {
		return fmt.Errorf("an account with email %s already exists", email)
	} else if !isNotFound(err) {
		return fmt.Errorf("check existing account: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           "usr_" + ulid.Make().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := users.Insert(ctx, user); err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	logger.Info("admin account provisioned",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
	)
	fmt.Printf("admin account %s created for %s\n", user.ID, user.Email)
	return nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
