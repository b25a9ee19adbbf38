package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"taxdocs/internal/repository"
	"taxdocs/internal/storage"
)

// OrphanSweeper removes blobs that no metadata row references.
// Blobs younger than the grace period are left alone so in-flight uploads, whose row is not
// written yet, are never touched.
type OrphanSweeper struct {
	store   storage.Storage
	repo    repository.DocumentRepository
	grace   time.Duration
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

func NewOrphanSweeper(store storage.Storage, repo repository.DocumentRepository, grace time.Duration, logger *slog.Logger, metrics *Metrics) *OrphanSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = newUnregisteredMetrics()
	}
	return &OrphanSweeper{
		store:   store,
		repo:    repo,
		grace:   grace,
		logger:  logger.With("component", "orphan_sweeper"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Sweep runs one pass and returns how many blobs were removed.
func (s *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	start := s.now()
	cutoff := start.Add(-s.grace)

	var candidates []string
	err := s.store.List(ctx, func(o storage.ObjectInfo) error {
		if !strings.HasPrefix(o.Key, storage.KeyPrefix+"/") {
			return nil
		}
		if !o.LastModified.IsZero() && o.LastModified.After(cutoff) {
			return nil
		}
		candidates = append(candidates, o.Key)
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range candidates {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		referenced, err := s.repo.StorageKeyExists(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "orphan check failed", "storage_key", key, "error", err)
			continue
		}
		if referenced {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "orphan delete failed", "storage_key", key, "error", err)
			continue
		}
		removed++
		s.metrics.swept.Inc()
		s.logger.InfoContext(ctx, "orphaned blob removed", "event", "blob_swept", "storage_key", key)
	}

	s.logger.InfoContext(ctx, "orphan sweep finished",
		"event", "orphan_sweep",
		"scanned", len(candidates),
		"removed", removed,
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return removed, nil
}

// Run sweeps every interval until ctx is canceled.
func (s *OrphanSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "orphan sweep failed", "error", err)
			}
		}
	}
}
