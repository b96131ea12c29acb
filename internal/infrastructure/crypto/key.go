package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
)

func validKeySize(n int) bool {
	return n == 16 || n == 24 || n == 32
}

// ParseKey turns stored key material into an AES key. Accepted forms, in
// order: a literal 16/24/32 byte string, hex, standard or URL base64.
func ParseKey(material []byte) ([]byte, error) {
	s := strings.TrimSpace(string(material))
	if s == "" {
		return nil, model.NewError(model.ErrConfig, "empty key material", nil)
	}
	if validKeySize(len(s)) {
		return []byte(s), nil
	}
	if k, err := hex.DecodeString(s); err == nil && validKeySize(len(k)) {
		return k, nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if k, err := enc.DecodeString(s); err == nil && validKeySize(len(k)) {
			return k, nil
		}
	}
	return nil, model.NewError(model.ErrConfig, fmt.Sprintf("key must be 16, 24 or 32 bytes (got %d characters)", len(s)), nil)
}

// GenerateKey returns size random bytes
func GenerateKey(size int) ([]byte, error) {
	if !validKeySize(size) {
		return nil, fmt.Errorf("invalid key size %d", size)
	}
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// EncodeKey renders key as text that ParseKey reads back to the same bytes.
// Hex is preferred; an encoding whose length would pass for a literal key
// is skipped.
func EncodeKey(key []byte, preferBase64 bool) string {
	candidates := []string{hex.EncodeToString(key), base64.StdEncoding.EncodeToString(key)}
	if preferBase64 {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}
	candidates = append(candidates, base64.RawStdEncoding.EncodeToString(key))
	for _, s := range candidates {
		if !validKeySize(len(s)) {
			return s
		}
	}
	return candidates[len(candidates)-1]
}
