// Package cache holds short-lived copies of document list responses.
// It is never consulted for authorization: ownership checks always hit the database.
package cache

import (
	"context"
	"strconv"
)

const (
	listPrefix  = "doclist:"
	ownerPrefix = listPrefix + "owner:"
	adminPrefix = listPrefix + "admin:"
)

// ListCache stores serialized list results.
type ListCache interface {
	// Get returns the cached bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// OwnerListKey is the key of one owner's document list.
func OwnerListKey(ownerID int64) string {
	return ownerPrefix + strconv.FormatInt(ownerID, 10)
}

// AdminListKey is the key of an admin listing for a normalized filter string.
func AdminListKey(filter string) string {
	return adminPrefix + filter
}

// AdminListPrefix matches every cached admin listing.
func AdminListPrefix() string {
	return adminPrefix
}

// Noop is a ListCache that never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error         { return nil }
func (Noop) Delete(context.Context, ...string) error           { return nil }
func (Noop) DeletePrefix(context.Context, string) error        { return nil }
