// Package crypto implements the envelope that wraps raw HTTP bytes for transport.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// AESSealer seals payloads with AES-CBC and PKCS#7 padding.
// The output is base64(IV || ciphertext) with a fresh IV per call.
type AESSealer struct {
	block cipher.Block
	rand  io.Reader
}

// NewAESSealer creates an AESSealer for a 16, 24 or 32 byte key
func NewAESSealer(key []byte) (*AESSealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, model.NewError(model.ErrConfig, "invalid AES key", err)
	}
	return &AESSealer{block: block, rand: rand.Reader}, nil
}

// Seal encrypts plaintext under a new random IV
func (s *AESSealer) Seal(plaintext []byte) (string, error) {
	bs := s.block.BlockSize()
	padded := pad(plaintext, bs)

	out := make([]byte, bs+len(padded))
	iv := out[:bs]
	if _, err := io.ReadFull(s.rand, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}
	cipher.NewCBCEncrypter(s.block, iv).CryptBlocks(out[bs:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts an encoded envelope
func (s *AESSealer) Open(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, model.NewError(model.ErrDecrypt, "invalid base64", err)
	}
	bs := s.block.BlockSize()
	if len(raw) < bs {
		return nil, model.NewError(model.ErrDecrypt, "envelope shorter than IV", nil)
	}
	iv, ct := raw[:bs], raw[bs:]
	if len(ct) == 0 || len(ct)%bs != 0 {
		return nil, model.NewError(model.ErrDecrypt, "ciphertext is not a whole number of blocks", nil)
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(plain, ct)
	return unpad(plain, bs)
}

// Mode returns "aes"
func (s *AESSealer) Mode() string {
	return string(model.EnvelopeModeAES)
}

// PlainSealer only base64 encodes payloads. It is used when the transport to
// the relay already provides confidentiality.
type PlainSealer struct{}

// NewPlainSealer creates a PlainSealer
func NewPlainSealer() *PlainSealer {
	return &PlainSealer{}
}

// Seal base64 encodes plaintext
func (s *PlainSealer) Seal(plaintext []byte) (string, error) {
	return base64.StdEncoding.EncodeToString(plaintext), nil
}

// Open base64 decodes encoded
func (s *PlainSealer) Open(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, model.NewError(model.ErrDecrypt, "invalid base64", err)
	}
	return raw, nil
}

// Mode returns "plain"
func (s *PlainSealer) Mode() string {
	return string(model.EnvelopeModePlain)
}

// NewSealer returns a PlainSealer for an empty key and an AESSealer otherwise
func NewSealer(key []byte) (port.Sealer, error) {
	if len(key) == 0 {
		return NewPlainSealer(), nil
	}
	return NewAESSealer(key)
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, model.NewError(model.ErrDecrypt, "invalid padding", nil)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, model.NewError(model.ErrDecrypt, "invalid padding", nil)
		}
	}
	return data[:len(data)-n], nil
}

var (
	_ port.Sealer = (*AESSealer)(nil)
	_ port.Sealer = (*PlainSealer)(nil)
)
