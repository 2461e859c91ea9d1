// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultLocale is used when the caller did not send one.
const DefaultLocale = "pt-BR"

// Map converts gateway errors into gRPC status errors with the default locale.
func Map(err error) error {
	return MapLocalized(err, DefaultLocale)
}

// MapLocalized converts gateway errors into gRPC status errors whose
// message is the localized user-facing string.
func MapLocalized(err error, locale string) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && !isGatewayError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, "request was canceled")
	}
	return status.Error(Code(KindOf(err)), Localize(err, locale))
}

// Code returns the gRPC code for a kind.
func Code(kind Kind) codes.Code {
	switch kind {
	case KindValidation, KindWeakPassword:
		return codes.InvalidArgument
	case KindInvalidCredentials, KindUnauthenticated:
		return codes.Unauthenticated
	case KindAlreadyRegistered:
		return codes.AlreadyExists
	case KindEmailNotConfirmed:
		return codes.FailedPrecondition
	case KindPermissionDenied:
		return codes.PermissionDenied
	case KindTimeout:
		return codes.DeadlineExceeded
	case KindUnavailable, KindFallback:
		return codes.Unavailable
	case KindNotFound:
		return codes.NotFound
	case KindNotConfigured:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

func isGatewayError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in the transport layer for malformed requests.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// Unauthenticated creates a gRPC Unauthenticated error.
func Unauthenticated(msg string) error {
	return status.Error(codes.Unauthenticated, msg)
}
