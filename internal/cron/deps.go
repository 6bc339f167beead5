package cron

import (
	"context"

	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, bucket, object string) error
}
