package port

// Sealer wraps raw HTTP bytes into a transport-safe string and back
type Sealer interface {
	// Seal encodes plaintext, with a fresh nonce when encrypting
	Seal(plaintext []byte) (string, error)

	// Open reverses Seal
	Open(encoded string) ([]byte, error)

	// Mode returns "aes" or "plain"
	Mode() string
}
