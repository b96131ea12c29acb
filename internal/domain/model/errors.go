package model

import (
	"context"
	"errors"
	"net/http"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrParse reports malformed raw HTTP bytes
	ErrParse = errors.New("malformed http message")
	// ErrDecrypt reports an envelope that could not be opened
	ErrDecrypt = errors.New("envelope decryption failed")
	// ErrConfig reports missing target, key material or settings
	ErrConfig = errors.New("configuration error")
	// ErrUpstreamTimeout reports the relay's fetch ran past its deadline
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstream reports any other failure of the relay's fetch
	ErrUpstream = errors.New("upstream error")
	// ErrTransport reports the relay could not be reached or answered badly
	ErrTransport = errors.New("relay transport error")
)

// Error carries a kind, a message and an optional cause
type Error struct {
	Kind    error
	Message string
	Err     error
}

// NewError creates an Error of the given kind
func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusCode maps an error to the status replayed to the client.
// Configuration and unknown local errors are 500, everything caused by the
// relay hop is 502.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConfig):
		return http.StatusInternalServerError
	case errors.Is(err, ErrParse),
		errors.Is(err, ErrDecrypt),
		errors.Is(err, ErrUpstreamTimeout),
		errors.Is(err, ErrUpstream),
		errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Wire names of the error kinds
const (
	KindParse           = "parse"
	KindDecrypt         = "decrypt"
	KindConfig          = "config"
	KindUpstreamTimeout = "upstream_timeout"
	KindUpstream        = "upstream"
	KindTransport       = "transport"
	KindInternal        = "internal"
)

// ErrorKind returns the wire name of err's kind
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrDecrypt):
		return KindDecrypt
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindUpstreamTimeout
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}

// KindError maps a wire kind back to its sentinel. Unknown kinds map to nil.
func KindError(kind string) error {
	switch kind {
	case KindParse:
		return ErrParse
	case KindDecrypt:
		return ErrDecrypt
	case KindConfig:
		return ErrConfig
	case KindUpstreamTimeout:
		return ErrUpstreamTimeout
	case KindUpstream:
		return ErrUpstream
	case KindTransport:
		return ErrTransport
	default:
		return nil
	}
}
