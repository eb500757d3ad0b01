// Package storage is the filesystem cache helper shared by the jobs: it opens
// a storage driver, ensures directories, derives safe file names and
// implements the load-or-fetch pattern for JSON artifacts.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/devdata-fetch/pkg/logging"
	"github.com/Sternrassler/devdata-fetch/pkg/storage/core"
	"github.com/Sternrassler/devdata-fetch/pkg/storage/fs"
	"github.com/Sternrassler/devdata-fetch/pkg/storage/memory"
	"github.com/Sternrassler/devdata-fetch/pkg/storage/s3"
)

// Store is re-exported so callers need not import core.
type Store = core.Store

// ErrNotFound is returned when no artifact is stored under a key.
var ErrNotFound = core.ErrNotFound

// ErrCorruptCache is returned when a cached JSON artifact does not decode.
var ErrCorruptCache = errors.New("corrupt cached artifact")

// Options selects and configures a driver.
type Options struct {
	Driver core.Driver
	// Root is the output directory for the fs driver.
	Root string
	S3   s3.Config
}

// Open returns the store selected by opts.Driver (default fs).
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", core.DriverFilesystem:
		return fs.New(opts.Root)
	case core.DriverMemory:
		return memory.New(), nil
	case core.DriverS3:
		return s3.New(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// DirStatus is the outcome of EnsureDir.
type DirStatus int

const (
	DirExists DirStatus = iota
	DirCreated
)

func (s DirStatus) String() string {
	if s == DirCreated {
		return "created"
	}
	return "exists"
}

// EnsureDir makes sure the directory key exists. It never fails the caller:
// errors are logged and reported as DirExists.
func EnsureDir(ctx context.Context, store Store, key string) DirStatus {
	logger := logging.NewLogger("storage")
	created, err := store.EnsureDir(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("dir", key).Msg("Could not create directory")
		return DirExists
	}
	if created {
		logger.Debug().Str("dir", key).Msg("Created directory")
		return DirCreated
	}
	return DirExists
}

var sanitizer = strings.NewReplacer(
	"\t", "_",
	`"`, "_",
	"'", "_",
	"*", "_",
	"/", "_",
	`\`, "_",
	"!", "_",
	"|", "_",
	":", "_",
	"?", "_",
	"<", "_",
	">", "_",
)

// Sanitize turns an arbitrary title or URL segment into a file name: an
// encoded quote (%22) and each of \t " ' * / \ ! | : ? < > become "_".
func Sanitize(name string) string {
	return sanitizer.Replace(strings.ReplaceAll(name, "%22", "_"))
}

// FetchFunc returns the raw JSON body of a resource.
type FetchFunc func(ctx context.Context) ([]byte, error)

// LoadOrFetchJSON decodes the artifact under key into v. When key is absent
// it calls fetch, stores the body re-indented with four spaces and decodes
// that. It reports whether the artifact came from the store. A cached
// artifact that does not decode yields ErrCorruptCache.
func LoadOrFetchJSON(ctx context.Context, store Store, key string, fetch FetchFunc, v any) (bool, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}

	if exists {
		b, err := store.Read(ctx, key)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", key, err)
		}
		if err := json.Unmarshal(b, v); err != nil {
			return true, fmt.Errorf("%w %s: %v", ErrCorruptCache, key, err)
		}
		return true, nil
	}

	if err := RefreshJSON(ctx, store, key, fetch, v); err != nil {
		return false, err
	}
	return false, nil
}

// RefreshJSON always calls fetch, stores the body re-indented with four
// spaces under key and decodes it into v.
func RefreshJSON(ctx context.Context, store Store, key string, fetch FetchFunc, v any) error {
	body, err := fetch(ctx)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "    "); err != nil {
		return fmt.Errorf("response for %s is not json: %w", key, err)
	}
	if err := store.Write(ctx, key, pretty.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// MarshalJSON encodes v with four-space indentation, leaving non-ASCII and
// HTML characters unescaped.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON stores v under key using MarshalJSON.
func WriteJSON(ctx context.Context, store Store, key string, v any) error {
	b, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Write(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
