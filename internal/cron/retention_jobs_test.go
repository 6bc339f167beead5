package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

type retentionTxRunner struct{ calls int }

func (r *retentionTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	r.calls++
	return fn(nil)
}

type fakeNotificationRepo struct {
	cutoff time.Time
	err    error
}

func (f *fakeNotificationRepo) DeleteOlderThan(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 42, f.err
}

type fakeOutboxRetentionRepo struct {
	cutoff      time.Time
	minAttempts int
	err         error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.cutoff = cutoff
	f.minAttempts = minAttemptCount
	return 7, f.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestNotificationCleanupUsesRetentionWindow(t *testing.T) {
	now := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	repo := &fakeNotificationRepo{}
	runner := &retentionTxRunner{}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{Logger: quietLogger(), DB: runner, Repository: repo})
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return now }

	require.Equal(t, "notification-cleanup", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.True(t, repo.cutoff.Equal(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)), "cutoff %s", repo.cutoff)
	require.Equal(t, 1, runner.calls)
}

func TestOutboxRetentionPassesAttemptFloor(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      quietLogger(),
		DB:          &retentionTxRunner{},
		Repository:  repo,
		Retention:   7,
		MinAttempts: 10,
	})
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.True(t, repo.cutoff.Equal(now.AddDate(0, 0, -7)), "cutoff %s", repo.cutoff)
	require.Equal(t, 10, repo.minAttempts)

	defaults, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: quietLogger(), DB: &retentionTxRunner{}, Repository: repo})
	require.NoError(t, err)
	require.NoError(t, defaults.Run(context.Background()))
	require.Equal(t, outboxMinAttempts, repo.minAttempts)
	require.Equal(t, outboxRetentionDays, defaults.(*retentionJob).retentionDays)
}

func TestRetentionJobsWrapPurgeErrors(t *testing.T) {
	notif, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     quietLogger(),
		DB:         &retentionTxRunner{},
		Repository: &fakeNotificationRepo{err: errors.New("lock timeout")},
	})
	require.NoError(t, err)
	require.ErrorContains(t, notif.Run(context.Background()), "notification-cleanup: lock timeout")

	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: quietLogger(), Repository: &fakeOutboxRetentionRepo{}})
	require.ErrorContains(t, err, "db runner required")
	_, err = NewNotificationCleanupJob(NotificationCleanupJobParams{Logger: quietLogger(), DB: &retentionTxRunner{}})
	require.ErrorContains(t, err, "notifications repository required")
}
