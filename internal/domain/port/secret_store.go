package port

import "context"

// SecretStore returns key material by name. It is consulted once at startup.
type SecretStore interface {
	GetSecret(ctx context.Context, name string) ([]byte, error)
}

// SecretWriter is implemented by stores that can provision key material
type SecretWriter interface {
	PutSecret(ctx context.Context, name string, value []byte) error
}
