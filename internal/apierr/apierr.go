// Package apierr carries the upstream failure taxonomy on go-errors rich errors.
package apierr

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Kind identifies one failure class of the upstream contract.
type Kind string

const (
	KindNone             Kind = ""
	KindAuth             Kind = "AUTH_ERROR"
	KindTransient        Kind = "TRANSIENT_SERVER_ERROR"
	KindNoResults        Kind = "NO_RESULTS"
	KindMalformed        Kind = "MALFORMED_RESPONSE"
	KindUpstreamReported Kind = "UPSTREAM_REPORTED_ERROR"
	KindValidation       Kind = "VALIDATION_ERROR"
)

// MetaUpstream is the metadata key holding the literal upstream text.
const MetaUpstream = "upstream"

func newError(kind Kind, category goerrors.Category, code int, message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(string(kind))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// Auth reports a bad or missing API key.
func Auth(message string, upstream string) error {
	return newError(KindAuth, goerrors.CategoryAuth, http.StatusUnauthorized, message, upstreamMeta(upstream))
}

// Transient reports an upstream internal failure that is safe to retry on the next tick.
func Transient(message string, upstream string) error {
	return newError(KindTransient, goerrors.CategoryExternal, http.StatusServiceUnavailable, message, upstreamMeta(upstream))
}

// TransientWrap wraps a transport failure as transient.
func TransientWrap(source error, message string) error {
	if source == nil {
		return Transient(message, "")
	}
	return goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(string(KindTransient))
}

// NoResults reports an empty collection. It never reaches callers of list operations.
func NoResults(upstream string) error {
	return newError(KindNoResults, goerrors.CategoryNotFound, http.StatusNotFound, "no results", upstreamMeta(upstream))
}

// Malformed reports a payload shape the normalizer cannot place.
func Malformed(message string, upstream string) error {
	return newError(KindMalformed, goerrors.CategoryExternal, http.StatusBadGateway, message, upstreamMeta(upstream))
}

// UpstreamReported reports an explicit upstream failure. message is the
// translated text, upstream the literal one.
func UpstreamReported(message string, upstream string) error {
	return newError(KindUpstreamReported, goerrors.CategoryOperation, http.StatusUnprocessableEntity, message, upstreamMeta(upstream))
}

// Validation reports a caller contract violation detected before any upstream call.
func Validation(message string, metadata map[string]any) error {
	return newError(KindValidation, goerrors.CategoryBadInput, http.StatusBadRequest, message, metadata)
}

func upstreamMeta(upstream string) map[string]any {
	if upstream == "" {
		return nil
	}
	return map[string]any{MetaUpstream: upstream}
}

// KindOf returns the taxonomy kind carried anywhere in err's chain.
func KindOf(err error) Kind {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) {
		return KindNone
	}
	return Kind(rich.TextCode)
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable is true only for transient upstream failures.
func IsRetryable(err error) bool {
	return Is(err, KindTransient)
}

// UpstreamText returns the literal upstream text attached to err, if any.
func UpstreamText(err error) string {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) || rich.Metadata == nil {
		return ""
	}
	text, _ := rich.Metadata[MetaUpstream].(string)
	return text
}

// Message returns the human readable message of a taxonomy error.
func Message(err error) string {
	var rich *goerrors.Error
	if err == nil {
		return ""
	}
	if goerrors.As(err, &rich) {
		return rich.Message
	}
	return err.Error()
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code != 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

// Fields returns the metadata of err without the upstream text.
func Fields(err error) map[string]any {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) || len(rich.Metadata) == 0 {
		return nil
	}
	fields := make(map[string]any, len(rich.Metadata))
	for key, value := range rich.Metadata {
		if key == MetaUpstream {
			continue
		}
		fields[key] = value
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
