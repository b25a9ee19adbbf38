package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage contains blob storage abstractions: a local filesystem store and an
// S3-compatible (MinIO) store. Both stream content; callers never buffer whole files.

var (
	// ErrNotFound is returned when a key does not resolve to a stored object.
	ErrNotFound = errors.New("object not found")
	// ErrWrite wraps I/O failures while storing an object.
	ErrWrite = errors.New("storage write failed")
	// ErrDelete wraps I/O failures while removing an object.
	ErrDelete = errors.New("storage delete failed")
	// ErrInvalidKey is returned for keys that could escape the store namespace.
	ErrInvalidKey = errors.New("invalid storage key")
)

// PutObjectOptions describe the object being written. Size is -1 when the length is not known
// up front; the MinIO store then falls back to a multipart upload. The local store records neither
// ContentType nor Metadata.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo is what a store reports back after Put, Get or List.
// Path is the backend's physical locator (file path or bucket/key) and is opaque to callers.
type ObjectInfo struct {
	Key          string
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Storage is a key-addressed blob store.
// Implementations must be safe for concurrent use by multiple goroutines.
type Storage interface {
	// Put streams r into the object named key. If r fails mid-stream, no object is left behind.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List calls fn for every stored object. Returning an error from fn stops the walk.
	List(ctx context.Context, fn func(ObjectInfo) error) error
}
