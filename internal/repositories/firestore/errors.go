package firestore

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func errNotFound(kind, key string) error {
	return status.Errorf(codes.NotFound, "%s %q not found", kind, key)
}

func errConflict(format string, args ...any) error {
	return status.Errorf(codes.FailedPrecondition, format, args...)
}
