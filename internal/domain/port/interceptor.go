package port

import (
	"context"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
)

// RequestInterceptor is driven by an acceptance loop for every captured client request
type RequestInterceptor interface {
	// OnRequestCaptured returns the raw response bytes to replay to the client.
	// It never fails; errors are rendered as synthesized responses.
	OnRequestCaptured(ctx context.Context, req *model.RawRequest) []byte

	// OnCaptureError returns the raw response replayed when the client's
	// request could not be read
	OnCaptureError(err error) []byte

	// SuppressUpstream reports whether the acceptance loop must skip its own
	// upstream connection for req
	SuppressUpstream(req *model.RawRequest) bool
}
