package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxdocs/internal/model"
	"taxdocs/internal/repository"
)

var docCols = []string{"id", "user_id", "storage_key", "original_filename", "file_path", "file_size",
	"mime_type", "document_type", "assessment_year", "uploaded_at"}

func newMock(t *testing.T) (*DocumentPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDocumentPostgres(db), mock
}

func TestDocumentPostgres_Create(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	now := time.Now().UTC()
	doc := &model.Document{
		OwnerID:        7,
		StorageKey:     "documents/doc_1-a.pdf",
		OriginalName:   "form16.pdf",
		StoragePath:    "/srv/uploads/documents/doc_1-a.pdf",
		Size:           1024,
		MimeType:       "application/pdf",
		DocumentType:   model.DocumentTypeForm16,
		AssessmentYear: "2024",
	}

	t.Run("success", func(t *testing.T) {
		rows := sqlmock.NewRows(docCols).
			AddRow(int64(41), doc.OwnerID, doc.StorageKey, doc.OriginalName, doc.StoragePath, doc.Size,
				doc.MimeType, "form16", doc.AssessmentYear, now)

		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(doc.OwnerID, doc.StorageKey, doc.OriginalName, doc.StoragePath, doc.Size,
				doc.MimeType, "form16", doc.AssessmentYear).
			WillReturnRows(rows)

		result, err := repo.Create(ctx, doc)

		require.NoError(t, err)
		assert.Equal(t, int64(41), result.ID)
		assert.Equal(t, model.DocumentTypeForm16, result.DocumentType)
		assert.Equal(t, now, result.UploadedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO documents").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_storage_key_key"})

		result, err := repo.Create(ctx, doc)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, repository.ErrConstraintViolation)
		assert.Contains(t, err.Error(), "documents_storage_key_key")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other error", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO documents").WillReturnError(errors.New("conn reset"))

		_, err := repo.Create(ctx, doc)

		assert.EqualError(t, err, "conn reset")
		assert.NotErrorIs(t, err, repository.ErrConstraintViolation)
	})
}

func TestDocumentPostgres_ListByOwner(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	newer := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	rows := sqlmock.NewRows(docCols).
		AddRow(int64(2), int64(7), "k2", "pan.png", "/p/k2", int64(10), "image/png", "pan", "2024", newer).
		AddRow(int64(1), int64(7), "k1", "aadhar.jpg", "/p/k1", int64(20), "image/jpeg", "aadhar", "2023", older)

	mock.ExpectQuery(`SELECT (.+) FROM documents d WHERE d.user_id = \$1 ORDER BY d.uploaded_at DESC`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	docs, err := repo.ListByOwner(ctx, 7)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(2), docs[0].ID)
	assert.Equal(t, model.DocumentTypePAN, docs[0].DocumentType)
	assert.Equal(t, "2023", docs[1].AssessmentYear)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_ListByOwnerEmpty(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.user_id").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(docCols))

	docs, err := repo.ListByOwner(context.Background(), 9)

	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestDocumentPostgres_FindByIDAndOwner(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(docCols).
			AddRow(int64(5), int64(7), "k", "f.pdf", "/p/k", int64(100), "application/pdf", "other", "2022", time.Now())

		mock.ExpectQuery(`SELECT (.+) FROM documents d WHERE d.id = \$1 AND d.user_id = \$2`).
			WithArgs(int64(5), int64(7)).
			WillReturnRows(rows)

		doc, err := repo.FindByIDAndOwner(ctx, 5, 7)

		require.NoError(t, err)
		assert.Equal(t, int64(5), doc.ID)
		assert.Equal(t, int64(7), doc.OwnerID)
	})

	t.Run("not found or not owned", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM documents d WHERE d.id = \$1 AND d.user_id = \$2`).
			WithArgs(int64(5), int64(8)).
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindByIDAndOwner(ctx, 5, 8)

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_ListWithOwners(t *testing.T) {
	cols := append(append([]string{}, docCols...), "owner_id", "first_name", "last_name", "email_id")
	now := time.Now()

	t.Run("no filter", func(t *testing.T) {
		repo, mock := newMock(t)
		rows := sqlmock.NewRows(cols).
			AddRow(int64(3), int64(7), "k", "f.pdf", "/p/k", int64(1), "application/pdf", "pan", "2024", now,
				int64(7), "Asha", "Rao", "asha@example.com")

		mock.ExpectQuery(`SELECT (.+) FROM documents d JOIN users u ON u.id = d.user_id\s+ORDER BY`).
			WillReturnRows(rows)

		items, err := repo.ListWithOwners(context.Background(), repository.AdminFilter{})

		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, int64(3), items[0].ID)
		assert.Equal(t, "asha@example.com", items[0].Owner.Email)
		assert.Equal(t, "Asha Rao", items[0].Owner.DisplayName())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("all filters", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectQuery(`WHERE \(u.first_name ILIKE \$1 .+\) AND d.assessment_year = \$2 AND d.document_type = \$3`).
			WithArgs(`%50\%\_off%`, "2024", "form16").
			WillReturnRows(sqlmock.NewRows(cols))

		items, err := repo.ListWithOwners(context.Background(), repository.AdminFilter{
			Search:       " 50%_off ",
			Year:         "2024",
			DocumentType: model.DocumentTypeForm16,
		})

		require.NoError(t, err)
		assert.Empty(t, items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_DeleteByIDAndOwner(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM documents WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(5), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM documents WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(5), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteByIDAndOwner(ctx, 5, 7)
	assert.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteByIDAndOwner(ctx, 5, 8)
	assert.NoError(t, err)
	assert.False(t, deleted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_StorageKeyExists(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("documents/a.pdf").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.StorageKeyExists(context.Background(), "documents/a.pdf")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
