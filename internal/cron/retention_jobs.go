package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

const (
	notificationRetentionDays = 30
	outboxRetentionDays       = 30
	outboxMinAttempts         = 5
)

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  int
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	Retention   int
	MinAttempts int
}

// NewNotificationCleanupJob drops in-app notifications older than the
// retention window. The ledger's own history lives in transactions and is
// never swept.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return asJob(newRetentionJob("notification-cleanup", params.Logger, params.DB, params.Retention, notificationRetentionDays, nil,
		params.Repository.DeleteOlderThan))
}

// NewOutboxRetentionJob drops published outbox rows, and unpublished rows
// that already used minAttempts, once they fall out of the window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	purge := func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return params.Repository.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
	}
	return asJob(newRetentionJob("outbox-retention", params.Logger, params.DB, params.Retention, outboxRetentionDays,
		map[string]any{"min_attempts": minAttempts}, purge))
}

func asJob(job *retentionJob, err error) (Job, error) {
	if err != nil {
		return nil, err
	}
	return job, nil
}

type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// retentionJob deletes rows older than a day-based window in one transaction.
type retentionJob struct {
	name          string
	logg          *logger.Logger
	db            txRunner
	retentionDays int
	fields        map[string]any
	purge         purgeFunc
	now           func() time.Time
}

func newRetentionJob(name string, logg *logger.Logger, db txRunner, days, defaultDays int, fields map[string]any, purge purgeFunc) (*retentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if days <= 0 {
		days = defaultDays
	}
	return &retentionJob{
		name:          name,
		logg:          logg,
		db:            db,
		retentionDays: days,
		fields:        fields,
		purge:         purge,
		now:           time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) cutoff() time.Time {
	return j.now().UTC().AddDate(0, 0, -j.retentionDays)
}

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.cutoff()
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	logCtx := j.logg.WithFields(ctx, j.fields)
	logCtx = j.logg.WithFields(logCtx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retentionDays,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "retention sweep complete")
	return nil
}
