package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"taxdocs/internal/model"
	"taxdocs/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `d.id, d.user_id, d.storage_key, d.original_filename, d.file_path, d.file_size,
		d.mime_type, d.document_type, d.assessment_year, d.uploaded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, extra ...any) (model.Document, error) {
	var (
		d       model.Document
		docType string
	)
	dest := []any{
		&d.ID,
		&d.OwnerID,
		&d.StorageKey,
		&d.OriginalName,
		&d.StoragePath,
		&d.Size,
		&d.MimeType,
		&docType,
		&d.AssessmentYear,
		&d.UploadedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Document{}, err
	}
	d.DocumentType = model.DocumentType(docType)
	return d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents AS d (user_id, storage_key, original_filename, file_path, file_size,
			mime_type, document_type, assessment_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.OwnerID,
		doc.StorageKey,
		doc.OriginalName,
		doc.StoragePath,
		doc.Size,
		doc.MimeType,
		string(doc.DocumentType),
		doc.AssessmentYear,
	)
	out, err := scanDocument(row)
	if err != nil {
		return nil, translateError(err)
	}
	return &out, nil
}

// ListByOwner returns the owner's documents ordered by upload time, newest first.
func (r *DocumentPostgres) ListByOwner(ctx context.Context, ownerID int64) ([]model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents d
		WHERE d.user_id = $1
		ORDER BY d.uploaded_at DESC, d.id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindByIDAndOwner fetches a single document if and only if ownerID owns it.
func (r *DocumentPostgres) FindByIDAndOwner(ctx context.Context, id, ownerID int64) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents d
		WHERE d.id = $1 AND d.user_id = $2
	`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListWithOwners joins documents with their owners for the admin view.
func (r *DocumentPostgres) ListWithOwners(ctx context.Context, f repository.AdminFilter) ([]model.DocumentWithOwner, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(u.first_name ILIKE $%[1]d OR u.last_name ILIKE $%[1]d OR u.email_id ILIKE $%[1]d OR d.original_filename ILIKE $%[1]d)", n))
	}
	if f.Year != "" {
		args = append(args, f.Year)
		where = append(where, fmt.Sprintf("d.assessment_year = $%d", len(args)))
	}
	if f.DocumentType != "" {
		args = append(args, string(f.DocumentType))
		where = append(where, fmt.Sprintf("d.document_type = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`
		SELECT ` + documentColumns + `, u.id, u.first_name, u.last_name, u.email_id
		FROM documents d
		JOIN users u ON u.id = d.user_id`)
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString("\n\t\tORDER BY d.uploaded_at DESC, d.id DESC")

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentWithOwner, 0)
	for rows.Next() {
		var o model.OwnerSummary
		d, err := scanDocument(rows, &o.ID, &o.FirstName, &o.LastName, &o.Email)
		if err != nil {
			return nil, err
		}
		items = append(items, model.DocumentWithOwner{Document: d, Owner: o})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteByIDAndOwner removes the row only when ownerID owns it.
func (r *DocumentPostgres) DeleteByIDAndOwner(ctx context.Context, id, ownerID int64) (bool, error) {
	const q = `DELETE FROM documents WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StorageKeyExists reports whether a document row references key.
func (r *DocumentPostgres) StorageKeyExists(ctx context.Context, key string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM documents WHERE storage_key = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// translateError maps Postgres integrity violations onto repository.ErrConstraintViolation.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23514":
			return fmt.Errorf("%w: %s", repository.ErrConstraintViolation, pgErr.ConstraintName)
		}
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
