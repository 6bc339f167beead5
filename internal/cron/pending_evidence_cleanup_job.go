package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

const (
	pendingEvidenceLifetime  = 24 * time.Hour
	pendingEvidenceBatchSize = 200
)

type PendingEvidenceCleanupJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Repo      pendingEvidenceRepo
	Store     objectDeleter
	Bucket    string
	Lifetime  time.Duration
	BatchSize int
}

type pendingEvidenceRepo interface {
	ListPendingBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]models.Evidence, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

// NewPendingEvidenceCleanupJob purges uploads that were never attached to a
// request within the configured lifetime.
func NewPendingEvidenceCleanupJob(params PendingEvidenceCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("evidence repository required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if params.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	lifetime := params.Lifetime
	if lifetime <= 0 {
		lifetime = pendingEvidenceLifetime
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = pendingEvidenceBatchSize
	}
	return &pendingEvidenceCleanupJob{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repo,
		store:    params.Store,
		bucket:   params.Bucket,
		lifetime: lifetime,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type pendingEvidenceCleanupJob struct {
	logg     *logger.Logger
	db       txRunner
	repo     pendingEvidenceRepo
	store    objectDeleter
	bucket   string
	lifetime time.Duration
	batch    int
	now      func() time.Time
}

func (j *pendingEvidenceCleanupJob) Name() string { return "pending-evidence-cleanup" }

func (j *pendingEvidenceCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.lifetime)
	rows, err := j.repo.ListPendingBefore(ctx, nil, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending evidence: %w", err)
	}

	var (
		errs    error
		deleted int
	)
	for _, row := range rows {
		// Object before row. A missing object counts as deleted, so a failed row delete is retried next cycle.
		if err := j.store.DeleteObject(ctx, j.bucket, row.GCSKey); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete object %s: %w", row.GCSKey, err))
			continue
		}
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.repo.Delete(ctx, tx, row.ID)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete evidence row %s: %w", row.ID, err))
			continue
		}
		deleted++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":              cutoff,
		"lifetime":            j.lifetime.String(),
		"evidence_candidates": len(rows),
		"evidence_deleted":    deleted,
	})
	j.logg.Info(logCtx, "pending evidence cleanup complete")
	if errs != nil {
		return fmt.Errorf("pending evidence cleanup: %w", errs)
	}
	return nil
}
