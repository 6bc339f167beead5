package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

const staleRequestThreshold = 72 * time.Hour

type StaleRequestJobParams struct {
	Logger    *logger.Logger
	Repo      staleRequestCounter
	Gauge     stalePendingGauge
	Threshold time.Duration
}

type staleRequestCounter interface {
	CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type stalePendingGauge interface {
	SetStalePending(count int64)
}

// NewStaleRequestJob reports moderated requests left pending past the
// threshold. It never changes request state.
func NewStaleRequestJob(params StaleRequestJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = staleRequestThreshold
	}
	return &staleRequestJob{
		logg:      params.Logger,
		repo:      params.Repo,
		gauge:     params.Gauge,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

type staleRequestJob struct {
	logg      *logger.Logger
	repo      staleRequestCounter
	gauge     stalePendingGauge
	threshold time.Duration
	now       func() time.Time
}

func (j *staleRequestJob) Name() string { return "stale-request-report" }

func (j *staleRequestJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.threshold)
	count, err := j.repo.CountPendingOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count stale requests: %w", err)
	}
	if j.gauge != nil {
		j.gauge.SetStalePending(count)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"threshold":   j.threshold.String(),
		"stale_count": count,
	})
	if count > 0 {
		j.logg.Warn(logCtx, "moderated requests awaiting review past threshold")
		return nil
	}
	j.logg.Info(logCtx, "no stale moderated requests")
	return nil
}
