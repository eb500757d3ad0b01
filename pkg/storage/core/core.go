// Package core defines the storage abstraction the fetch jobs write their
// artifacts through. Keys are slash-separated relative paths such as
// "KAZ/00057409.json"; drivers map them to files or objects.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Driver identifies a concrete storage backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs" // local filesystem (default)
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3" // S3 / MinIO compatible
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory" // in-memory (tests)
)

// Store is implemented by every storage driver.
type Store interface {
	// Exists reports whether an artifact is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Read returns the artifact bytes or an error wrapping ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write replaces the artifact under key.
	Write(ctx context.Context, key string, data []byte) error
	// Create opens key for writing, truncating any existing artifact.
	Create(ctx context.Context, key string) (io.WriteCloser, error)
	// Append opens key for appending, creating it when missing.
	Append(ctx context.Context, key string) (io.WriteCloser, error)
	// EnsureDir makes sure the directory key exists and reports whether it
	// had to be created.
	EnsureDir(ctx context.Context, key string) (bool, error)
	// List returns the artifact keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Driver() Driver
}

// ErrNotFound is returned when no artifact is stored under a key.
var ErrNotFound = errors.New("storage: not found")

// CleanKey validates key and normalizes its separators. Keys must be
// relative and must not contain ".." segments.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	parts := strings.Split(key, "/")
	clean := parts[:0]
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("invalid key %q contains '..'", key)
		}
		clean = append(clean, p)
	}
	if len(clean) == 0 {
		return "", fmt.Errorf("empty key")
	}
	return strings.Join(clean, "/"), nil
}
