package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/easybuy/api/internal/events"
	"github.com/easybuy/api/internal/handlers"
	"github.com/easybuy/api/internal/platform/auth"
	"github.com/easybuy/api/internal/platform/config"
	pfirestore "github.com/easybuy/api/internal/platform/firestore"
	"github.com/easybuy/api/internal/platform/observability"
	"github.com/easybuy/api/internal/platform/secrets"
	firestoreRepo "github.com/easybuy/api/internal/repositories/firestore"
	"github.com/easybuy/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher := secrets.NewFetcher(secrets.WithLogger(logger.Named("secrets")))
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	tokenIssuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer,
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
	)
	if err != nil {
		logger.Fatal("failed to initialise token issuer", zap.Error(err))
	}
	authn := auth.NewMiddleware(tokenIssuer)

	publisher, pubsubClient, err := newOrderPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	serviceLogger := newServiceLogger(logger.Named("services"))

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   registry.Orders(),
		Checkout: registry.Checkout(),
		Events:   publisher,
		Logger:   serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}
	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: registry.Products(),
		Logger:   serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}
	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:    registry.Carts(),
		Products: registry.Products(),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}
	wishlistService, err := services.NewWishlistService(services.WishlistServiceDeps{
		Wishlists: registry.Wishlists(),
		Products:  registry.Products(),
	})
	if err != nil {
		logger.Fatal("failed to initialise wishlist service", zap.Error(err))
	}
	userService, err := services.NewUserService(services.UserServiceDeps{
		Users:      registry.Users(),
		Tokens:     tokenIssuer,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise user service", zap.Error(err))
	}
	referenceService, err := services.NewReferenceService(registry.Products(), registry.Users())
	if err != nil {
		logger.Fatal("failed to initialise reference service", zap.Error(err))
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("firestore", func(ctx context.Context) error {
			iter := firestoreClient.Collections(ctx)
			_, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			return err
		}),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthRoutes(handlers.NewAuthHandlers(userService).Routes),
		handlers.WithProductRoutes(handlers.NewProductHandlers(authn, catalogService).Routes),
		handlers.WithCartRoutes(handlers.NewCartHandlers(authn, cartService, referenceService).Routes),
		handlers.WithWishlistRoutes(handlers.NewWishlistHandlers(authn, wishlistService).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(authn, orderService, referenceService).Routes),
		handlers.WithMeRoutes(handlers.NewMeHandlers(authn, userService).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("easybuy api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newOrderPublisher(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, *pubsub.Client, error) {
	if cfg.Events.Disabled {
		return events.NoopPublisher{}, nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	publisher, err := events.NewPubSubOrderPublisher(client.Topic(cfg.Events.Topic))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return publisher, client, nil
}

func newServiceLogger(logger *zap.Logger) services.Logger {
	return func(ctx context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Warn(event, zapFields...)
	}
}
