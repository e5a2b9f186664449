package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretClient struct {
	values map[string]string
	calls  int
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.calls++
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret version not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeSecretClient) Close() error { return nil }

func TestResolveSecretRemote(t *testing.T) {
	client := &fakeSecretClient{values: map[string]string{
		"projects/easybuy-dev/secrets/jwt-signing-key/versions/latest": "hunter2",
	}}
	fetcher := NewFetcher(WithProject("easybuy-dev"), WithSecretManagerClient(client), WithFallbackFile(""))

	value, err := fetcher.ResolveSecret(context.Background(), "secret://jwt-signing-key")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if value != "hunter2" {
		t.Errorf("unexpected value: %q", value)
	}

	// Second call is served from cache.
	if _, err := fetcher.ResolveSecret(context.Background(), "secret://jwt-signing-key"); err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected one remote call, got %d", client.calls)
	}
}

func TestResolveSecretPinnedVersion(t *testing.T) {
	client := &fakeSecretClient{values: map[string]string{
		"projects/easybuy-dev/secrets/jwt-signing-key/versions/3": "rotated",
	}}
	fetcher := NewFetcher(WithProject("easybuy-dev"), WithSecretManagerClient(client), WithFallbackFile(""))

	value, err := fetcher.ResolveSecret(context.Background(), "secret://jwt-signing-key/3")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if value != "rotated" {
		t.Errorf("unexpected value: %q", value)
	}
}

func TestResolveSecretFallbackFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(path, []byte("# dev secrets\njwt-signing-key=local-value\n"), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}

	client := &fakeSecretClient{values: map[string]string{}}
	fetcher := NewFetcher(WithProject("easybuy-dev"), WithSecretManagerClient(client), WithFallbackFile(path))

	value, err := fetcher.ResolveSecret(context.Background(), "secret://jwt-signing-key")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if value != "local-value" {
		t.Errorf("unexpected value: %q", value)
	}
}

func TestResolveSecretRejectsUnknownScheme(t *testing.T) {
	fetcher := NewFetcher(WithProject("easybuy-dev"), WithSecretManagerClient(&fakeSecretClient{}), WithFallbackFile(""))
	if _, err := fetcher.ResolveSecret(context.Background(), "vault://jwt"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
