package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taxdocs/internal/cache"
	"taxdocs/internal/model"
	"taxdocs/internal/repository"
	"taxdocs/internal/storage"
)

// MaxUploadSize is the largest accepted document, in bytes.
const MaxUploadSize int64 = 5 << 20

var allowedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
}

var yearPattern = regexp.MustCompile(`^[0-9]{4}$`)

// UploadInput carries one multipart upload into the service.
// Size is the size declared by the client, or -1 when unknown.
type UploadInput struct {
	Reader       io.Reader
	Filename     string
	MimeType     string
	Size         int64
	DocumentType model.DocumentType
	Year         string
}

// Download is an open document stream. The caller must close Body.
type Download struct {
	Document *model.Document
	Body     io.ReadCloser
	Size     int64
}

// DocumentService defines the use cases for handling documents.
// Every operation is performed on behalf of an explicit caller identity.
type DocumentService interface {
	// Upload validates the input, streams the content into blob storage and records its metadata.
	// If the metadata write fails the blob is removed again.
	Upload(ctx context.Context, caller model.Identity, in UploadInput) (*model.Document, error)

	// ListOwn returns the caller's documents, newest first.
	ListOwn(ctx context.Context, caller model.Identity) ([]model.Document, error)

	// Download opens a document owned by the caller.
	Download(ctx context.Context, caller model.Identity, id int64) (*Download, error)

	// Delete removes the caller's document: metadata first, then the blob.
	Delete(ctx context.Context, caller model.Identity, id int64) error

	// ListAll returns every document with owner details. Admin only.
	ListAll(ctx context.Context, caller model.Identity, f repository.AdminFilter) ([]model.DocumentWithOwner, error)
}

// Option configures a document service.
type Option func(*documentService)

// WithKeyGenerator replaces the default time+random key generator.
func WithKeyGenerator(g storage.KeyGenerator) Option {
	return func(s *documentService) { s.keys = g }
}

// WithCache enables list caching.
func WithCache(c cache.ListCache) Option {
	return func(s *documentService) { s.cache = c }
}

// WithLogger sets the logger used for upload and cleanup events.
func WithLogger(l *slog.Logger) Option {
	return func(s *documentService) { s.logger = l }
}

// WithMetrics records upload and orphan counters on m.
func WithMetrics(m *Metrics) Option {
	return func(s *documentService) { s.metrics = m }
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store   storage.Storage
	repo    repository.DocumentRepository
	keys    storage.KeyGenerator
	cache   cache.ListCache
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, opts ...Option) DocumentService {
	s := &documentService{
		store:  store,
		repo:   repo,
		keys:   storage.TimeRandomKeys{},
		cache:  cache.Noop{},
		logger: slog.Default(),
		tracer: otel.Tracer("taxdocs/internal/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newUnregisteredMetrics()
	}
	s.logger = s.logger.With("component", "document_service")
	return s
}

func (s *documentService) startSpan(ctx context.Context, name string, caller model.Identity) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "DocumentService."+name, trace.WithAttributes(
		attribute.Int64("caller.id", caller.UserID),
		attribute.String("caller.role", string(caller.Role)),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *documentService) Upload(ctx context.Context, caller model.Identity, in UploadInput) (doc *model.Document, err error) {
	ctx, span := s.startSpan(ctx, "Upload", caller)
	defer func() { endSpan(span, err) }()

	doc, err = s.upload(ctx, caller, in)
	switch {
	case err == nil:
		s.metrics.uploads.WithLabelValues(uploadResultSuccess).Inc()
		s.metrics.uploadBytes.Observe(float64(doc.Size))
		span.SetAttributes(attribute.Int64("document.id", doc.ID))
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrUnsupportedMediaType),
		errors.Is(err, ErrPayloadTooLarge), errors.Is(err, ErrUnauthenticated):
		s.metrics.uploads.WithLabelValues(uploadResultRejected).Inc()
	default:
		s.metrics.uploads.WithLabelValues(uploadResultError).Inc()
	}
	return doc, err
}

func (s *documentService) upload(ctx context.Context, caller model.Identity, in UploadInput) (*model.Document, error) {
	if caller.UserID <= 0 {
		return nil, ErrUnauthenticated
	}
	if in.Reader == nil {
		return nil, invalid("file", "file is required")
	}

	mimeType, ok := normalizeMimeType(in.MimeType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, in.MimeType)
	}
	if in.Size > MaxUploadSize {
		return nil, tooLarge()
	}
	if in.DocumentType == "" {
		return nil, invalid("documentType", "document type is required")
	}
	if !in.DocumentType.Valid() {
		return nil, invalid("documentType", fmt.Sprintf("unknown document type %q", in.DocumentType))
	}
	if in.Year == "" {
		return nil, invalid("year", "assessment year is required")
	}
	if !yearPattern.MatchString(in.Year) {
		return nil, invalid("year", "assessment year must have four digits")
	}

	key := s.keys.NewKey(mimeType)
	size := in.Size
	if size <= 0 {
		size = -1
	}

	lr := &limitedReader{r: in.Reader, remaining: MaxUploadSize}
	info, err := s.store.Put(ctx, key, lr, storage.PutObjectOptions{
		Size:        size,
		ContentType: mimeType,
		Metadata: map[string]string{
			"owner-id": fmt.Sprint(caller.UserID),
		},
	})
	if err != nil {
		if lr.exceeded {
			// Put never publishes a failed stream, but the delete is idempotent.
			_ = s.store.Delete(context.WithoutCancel(ctx), key)
			return nil, tooLarge()
		}
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		OwnerID:        caller.UserID,
		StorageKey:     info.Key,
		OriginalName:   displayName(in.Filename),
		StoragePath:    info.Path,
		Size:           info.Size,
		MimeType:       mimeType,
		DocumentType:   in.DocumentType,
		AssessmentYear: in.Year,
	}
	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(context.WithoutCancel(ctx), info.Key); delErr != nil {
			s.metrics.orphaned.WithLabelValues(orphanReasonRollback).Inc()
			s.logger.ErrorContext(ctx, "upload rollback failed, blob orphaned",
				"event", "blob_orphaned",
				"storage_key", info.Key,
				"owner_id", caller.UserID,
				"error", delErr,
			)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	s.invalidate(ctx, caller.UserID)
	s.logger.InfoContext(ctx, "document uploaded",
		"event", "document_uploaded",
		"document_id", stored.ID,
		"owner_id", caller.UserID,
		"document_type", stored.DocumentType,
		"size", humanize.IBytes(uint64(stored.Size)),
	)
	return stored, nil
}

func (s *documentService) ListOwn(ctx context.Context, caller model.Identity) (docs []model.Document, err error) {
	ctx, span := s.startSpan(ctx, "ListOwn", caller)
	defer func() { endSpan(span, err) }()

	if caller.UserID <= 0 {
		return nil, ErrUnauthenticated
	}

	key := cache.OwnerListKey(caller.UserID)
	if s.cachedList(ctx, key, &docs) {
		return docs, nil
	}

	docs, err = s.repo.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	s.storeList(ctx, key, docs)
	return docs, nil
}

func (s *documentService) Download(ctx context.Context, caller model.Identity, id int64) (dl *Download, err error) {
	ctx, span := s.startSpan(ctx, "Download", caller)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("document.id", id))

	doc, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	body, info, err := s.store.Get(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.ErrorContext(ctx, "document row has no blob",
				"event", "blob_missing",
				"document_id", doc.ID,
				"storage_key", doc.StorageKey,
			)
			return nil, ErrBlobMissing
		}
		return nil, fmt.Errorf("open stored file: %w", err)
	}

	size := info.Size
	if size <= 0 {
		size = doc.Size
	}
	return &Download{Document: doc, Body: body, Size: size}, nil
}

func (s *documentService) Delete(ctx context.Context, caller model.Identity, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "Delete", caller)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("document.id", id))

	doc, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.DeleteByIDAndOwner(ctx, doc.ID, caller.UserID)
	if err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	if !deleted {
		// Lost a race with a concurrent delete of the same document.
		return ErrNotFound
	}
	s.invalidate(ctx, caller.UserID)

	if err := s.store.Delete(context.WithoutCancel(ctx), doc.StorageKey); err != nil {
		s.metrics.orphaned.WithLabelValues(orphanReasonDelete).Inc()
		s.logger.ErrorContext(ctx, "blob delete failed, blob orphaned",
			"event", "blob_orphaned",
			"document_id", doc.ID,
			"storage_key", doc.StorageKey,
			"error", err,
		)
	}
	// A ListOwn that read the row before the metadata delete may have cached it since.
	s.invalidate(ctx, caller.UserID)
	return nil
}

func (s *documentService) ListAll(ctx context.Context, caller model.Identity, f repository.AdminFilter) (items []model.DocumentWithOwner, err error) {
	ctx, span := s.startSpan(ctx, "ListAll", caller)
	defer func() { endSpan(span, err) }()

	if caller.UserID <= 0 {
		return nil, ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	f.Search = strings.TrimSpace(f.Search)
	if f.Year != "" && !yearPattern.MatchString(f.Year) {
		return nil, invalid("year", "assessment year must have four digits")
	}
	if f.DocumentType != "" && !f.DocumentType.Valid() {
		return nil, invalid("type", fmt.Sprintf("unknown document type %q", f.DocumentType))
	}

	key := cache.AdminListKey(fmt.Sprintf("q=%s|y=%s|t=%s", strings.ToLower(f.Search), f.Year, f.DocumentType))
	if s.cachedList(ctx, key, &items) {
		return items, nil
	}

	items, err = s.repo.ListWithOwners(ctx, f)
	if err != nil {
		return nil, err
	}
	s.storeList(ctx, key, items)
	return items, nil
}

// findOwned reads ownership from the database. A document owned by someone else is reported
// exactly like a missing one.
func (s *documentService) findOwned(ctx context.Context, caller model.Identity, id int64) (*model.Document, error) {
	if caller.UserID <= 0 {
		return nil, ErrUnauthenticated
	}
	if id <= 0 {
		return nil, ErrNotFound
	}
	doc, err := s.repo.FindByIDAndOwner(ctx, id, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) cachedList(ctx context.Context, key string, dst any) bool {
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "list cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		s.logger.WarnContext(ctx, "list cache entry unreadable", "key", key, "error", err)
		return false
	}
	return true
}

func (s *documentService) storeList(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b); err != nil {
		s.logger.WarnContext(ctx, "list cache write failed", "key", key, "error", err)
	}
}

func (s *documentService) invalidate(ctx context.Context, ownerID int64) {
	if err := s.cache.Delete(ctx, cache.OwnerListKey(ownerID)); err != nil {
		s.logger.WarnContext(ctx, "list cache invalidation failed", "owner_id", ownerID, "error", err)
	}
	if err := s.cache.DeletePrefix(ctx, cache.AdminListPrefix()); err != nil {
		s.logger.WarnContext(ctx, "admin list cache invalidation failed", "error", err)
	}
}

func tooLarge() error {
	return fmt.Errorf("%w: file exceeds the %s limit", ErrPayloadTooLarge, humanize.IBytes(uint64(MaxUploadSize)))
}

// normalizeMimeType drops parameters and case, then checks the allow-list.
func normalizeMimeType(v string) (string, bool) {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return "", false
	}
	_, ok := allowedMimeTypes[mt]
	return mt, ok
}

// displayName keeps only the final path element of a client file name.
// It is shown back to users and never used to build a storage location.
func displayName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}

// limitedReader fails once more than remaining bytes have been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, ErrPayloadTooLarge
	}
	// Read one byte past the limit so an exact-size file still succeeds.
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return 0, ErrPayloadTooLarge
	}
	return n, err
}
