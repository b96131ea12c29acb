// Package secret provides the stores the shared key is read from at startup.
package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvStore reads the key from an environment variable. The secret name is
// ignored; the variable is fixed at construction.
type EnvStore struct {
	variable string
}

// NewEnvStore creates a new EnvStore instance
func NewEnvStore(variable string) *EnvStore {
	return &EnvStore{variable: variable}
}

// GetSecret returns the variable's value
func (s *EnvStore) GetSecret(ctx context.Context, name string) ([]byte, error) {
	value, ok := os.LookupEnv(s.variable)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("environment variable %s is not set", s.variable)
	}
	return []byte(value), nil
}

// FileStore reads the key from a file
type FileStore struct {
	path string
}

// NewFileStore creates a new FileStore instance
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// GetSecret returns the file content
func (s *FileStore) GetSecret(ctx context.Context, name string) ([]byte, error) {
	if s.path == "" {
		return nil, fmt.Errorf("key file not configured")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return data, nil
}

// PutSecret writes value to the file, readable by the owner only
func (s *FileStore) PutSecret(ctx context.Context, name string, value []byte) error {
	if s.path == "" {
		return fmt.Errorf("key file not configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(s.path, append(value, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}
