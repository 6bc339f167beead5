package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

type fakeStaleCounter struct {
	count      int64
	err        error
	lastCutoff time.Time
}

func (f *fakeStaleCounter) CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	return f.count, f.err
}

type fakeGauge struct {
	value int64
	set   bool
}

func (f *fakeGauge) SetStalePending(count int64) {
	f.value = count
	f.set = true
}

func TestStaleRequestJobPublishesCount(t *testing.T) {
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	repo := &fakeStaleCounter{count: 3}
	gauge := &fakeGauge{}
	jobIface, err := NewStaleRequestJob(StaleRequestJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Repo:      repo,
		Gauge:     gauge,
		Threshold: 48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewStaleRequestJob: %v", err)
	}
	job := jobIface.(*staleRequestJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !repo.lastCutoff.Equal(now.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", repo.lastCutoff)
	}
	if !gauge.set || gauge.value != 3 {
		t.Fatalf("expected gauge 3, got %+v", gauge)
	}
}

func TestStaleRequestJobPropagatesErrors(t *testing.T) {
	gauge := &fakeGauge{}
	job, err := NewStaleRequestJob(StaleRequestJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Repo:   &fakeStaleCounter{err: errors.New("db down")},
		Gauge:  gauge,
	})
	if err != nil {
		t.Fatalf("NewStaleRequestJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if gauge.set {
		t.Fatal("gauge should not change on failure")
	}
}
