package repository

import (
	"context"
	"errors"

	"taxdocs/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the (id, owner) pair.
	ErrNotFound = errors.New("record not found")
	// ErrConstraintViolation is returned when a uniqueness or check constraint rejects a write.
	ErrConstraintViolation = errors.New("constraint violation")
)

// DocumentRepository defines data access for documents using SQL queries only.
// Persistence only; ownership checks live in the WHERE clauses.
//
// Every read or delete of a single document is scoped by owner; there is deliberately no
// lookup by id alone.
type DocumentRepository interface {
	// Create inserts a new document record. ID and UploadedAt are assigned by the database.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// ListByOwner returns the owner's documents, most recently uploaded first.
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Document, error)

	// FindByIDAndOwner returns the document only if it belongs to ownerID.
	FindByIDAndOwner(ctx context.Context, id, ownerID int64) (*model.Document, error)

	// ListWithOwners returns every document joined with its owner, most recent first.
	ListWithOwners(ctx context.Context, f AdminFilter) ([]model.DocumentWithOwner, error)

	// DeleteByIDAndOwner removes the row and reports whether one matched.
	DeleteByIDAndOwner(ctx context.Context, id, ownerID int64) (bool, error)

	// StorageKeyExists reports whether any row references key.
	StorageKeyExists(ctx context.Context, key string) (bool, error)
}

// AdminFilter narrows the admin listing. Zero values mean "no filter".
type AdminFilter struct {
	// Search matches owner first/last name, email or original file name, case-insensitively.
	Search       string
	Year         string
	DocumentType model.DocumentType
}
