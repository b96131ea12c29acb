package port

import (
	"context"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
)

// RelayTransport carries one sealed payload to the relay and returns the sealed reply
type RelayTransport interface {
	// RoundTrip sends payload inside a transport envelope and returns the reply payload
	RoundTrip(ctx context.Context, payload string) (string, error)
}

// Executor performs the real upstream fetch on the relay side
type Executor interface {
	// Execute issues req upstream and returns the fully buffered response
	Execute(ctx context.Context, req *model.RawRequest) (*model.RawResponse, error)
}

// RelayHandler serves tunneled exchanges on the relay side
type RelayHandler interface {
	// HandlePayload opens payload, runs the exchange and returns the sealed raw response
	HandlePayload(ctx context.Context, payload string) (string, error)

	// HandleBody serves one entrypoint body and returns the status and JSON reply
	HandleBody(ctx context.Context, body []byte, isBase64 bool) (int, []byte)
}
