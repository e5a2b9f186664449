package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultFallbackPath = ".secrets.local"

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references using Google Secret Manager with local
// caching and a file-based fallback for development.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	clientOpts []option.ClientOption

	logger    *zap.Logger
	projectID string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

type fetcherConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// Option tweaks how a Fetcher is assembled.
type Option func(*fetcherConfig)

// WithLogger routes the fetcher's diagnostics through the given logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithProject configures the GCP project secrets are read from.
func WithProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile points the fetcher at a different local secrets file,
// consulted when Secret Manager is unreachable.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithSecretManagerClient swaps in an existing client. Tests use this to
// avoid dialing the real service.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards additional options to the Secret Manager client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewFetcher constructs a Fetcher. When no client is injected, a real Secret
// Manager client is created lazily on first remote access.
func NewFetcher(opts ...Option) *Fetcher {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &Fetcher{
		client:       cfg.client,
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]cacheEntry),
	}
	if f.client == nil {
		f.ownsClient = true
		f.clientOpts = cfg.clientOpts
	}
	return f
}

// Close releases the underlying client when the fetcher created it.
func (f *Fetcher) Close() error {
	if !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// ResolveSecret resolves a secret://name[/version] reference. Cached values are
// reused for the lifetime of the process.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, version, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	key := name + "@" + version
	f.mu.RLock()
	entry, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		return entry.value, nil
	}

	value, err := f.fetchRemote(ctx, name, version)
	if err != nil {
		if fallback, ok := f.lookupFallback(name); ok {
			f.logger.Warn("secret resolved from local fallback",
				zap.String("secret", name),
				zap.Error(err),
			)
			return fallback, nil
		}
		return "", err
	}

	f.mu.Lock()
	f.cache[key] = cacheEntry{value: value, fetchedAt: time.Now()}
	f.mu.Unlock()
	return value, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, name, version string) (string, error) {
	client, err := f.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version)
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return "", fmt.Errorf("secrets: secret %q not found: %w", name, err)
		}
		return "", fmt.Errorf("secrets: access %q: %w", name, err)
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secrets: secret %q returned empty payload", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) ensureClient(ctx context.Context) (secretManagerClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	if f.projectID == "" {
		return nil, errors.New("secrets: project ID not configured")
	}
	client, err := secretManagerClientFactory(ctx, f.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: create client: %w", err)
	}
	f.client = client
	return client, nil
}

func (f *Fetcher) lookupFallback(name string) (string, bool) {
	f.fallbackOnce.Do(f.loadFallback)
	if f.fallbackErr != nil {
		return "", false
	}
	value, ok := f.fallbackVals[name]
	return value, ok
}

func (f *Fetcher) loadFallback() {
	f.fallbackVals = make(map[string]string)
	if f.fallbackPath == "" {
		return
	}

	file, err := os.Open(f.fallbackPath)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		f.fallbackErr = err
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		f.fallbackVals[key] = strings.TrimSpace(parts[1])
	}
	f.fallbackErr = scanner.Err()
}

func parseReference(ref string) (name, version string, err error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, "secret://") {
		return "", "", fmt.Errorf("secrets: unsupported reference %q", maskReference(ref))
	}
	body := strings.TrimPrefix(trimmed, "secret://")
	if body == "" {
		return "", "", fmt.Errorf("secrets: empty reference")
	}
	version = "latest"
	if idx := strings.LastIndex(body, "/"); idx > 0 && idx < len(body)-1 {
		if candidate := body[idx+1:]; candidate == "latest" || isNumeric(candidate) {
			version = candidate
			body = body[:idx]
		}
	}
	return body, version, nil
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func maskReference(ref string) string {
	if len(ref) <= 12 {
		return ref
	}
	return ref[:12] + "..."
}
