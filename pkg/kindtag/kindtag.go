// Package kindtag implements the error taxonomy shared by every
// transport: an error that crosses a transport boundary carries one
// Kind, which maps to exactly one HTTP status and one gRPC-style
// status code.
package kindtag

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind is one of the tags in an {error, detail} response body.
type Kind string

const (
	BadRequest       Kind = "bad_request"
	Unauthorized     Kind = "unauthorized"
	Forbidden        Kind = "forbidden"
	NotFound         Kind = "not_found"
	Conflict         Kind = "conflict"
	TooManyRequests  Kind = "too_many_requests"
	Timeout          Kind = "timeout"
	Overloaded       Kind = "overloaded"
	Internal         Kind = "internal"
)

// HTTPStatus returns the single HTTP status code assigned to kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case TooManyRequests:
		return http.StatusTooManyRequests
	case Timeout:
		return http.StatusRequestTimeout
	case Overloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode returns the gRPC-style status code assigned to kind, used to
// tag errors on the binary wire surface without a live gRPC transport
// (see DESIGN.md).
func (k Kind) GRPCCode() codes.Code {
	switch k {
	case BadRequest:
		return codes.InvalidArgument
	case Unauthorized:
		return codes.Unauthenticated
	case Forbidden:
		return codes.PermissionDenied
	case NotFound:
		return codes.NotFound
	case Conflict:
		return codes.AlreadyExists
	case TooManyRequests:
		return codes.ResourceExhausted
	case Timeout:
		return codes.DeadlineExceeded
	case Overloaded:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// Error pairs a Kind with a human-readable detail, matching the wire
// body shape `{ "error": <kind>, "detail": <message> }`.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string { return e.Detail }

// New constructs a kindtag.Error.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}
