package evidence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/outbox"
	"github.com/angelmondragon/medledger-backend/pkg/outbox/payloads"
)

type objectStore interface {
	Upload(ctx context.Context, bucket, object, contentType string, data []byte) error
	DeleteObject(ctx context.Context, bucket, object string) error
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages supporting documents from upload to release.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*models.Evidence, error)
	Attach(ctx context.Context, tx *gorm.DB, ownerID, evidenceID uuid.UUID, purpose enums.EvidencePurpose) (*models.Evidence, error)
	Release(ctx context.Context, tx *gorm.DB, key, reason string) error
	ReadURL(ctx context.Context, input ReadURLInput) (*ReadURL, error)
	ReadURLForKey(ctx context.Context, key string) (*ReadURL, error)
}

// UploadInput carries a file received by the API.
type UploadInput struct {
	OwnerID  uuid.UUID
	Purpose  enums.EvidencePurpose
	FileName string
	Data     []byte
}

// ReadURLInput identifies who is asking for a download link.
type ReadURLInput struct {
	EvidenceID  uuid.UUID
	RequesterID uuid.UUID
	IsAdmin     bool
}

type ReadURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options configures the evidence service.
type Options struct {
	Repo        *Repository
	Store       objectStore
	Outbox      outboxEmitter
	Logger      *logger.Logger
	Bucket      string
	MaxBytes    int64
	DownloadTTL time.Duration
}

type service struct {
	repo        *Repository
	store       objectStore
	outbox      outboxEmitter
	logg        *logger.Logger
	bucket      string
	maxBytes    int64
	downloadTTL time.Duration
	now         func() time.Time
}

// NewService validates the options and builds the service.
func NewService(opts Options) (Service, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("evidence repository required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if opts.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	if opts.DownloadTTL <= 0 {
		return nil, fmt.Errorf("download ttl must be positive")
	}
	return &service{
		repo:        opts.Repo,
		store:       opts.Store,
		outbox:      opts.Outbox,
		logg:        opts.Logger,
		bucket:      opts.Bucket,
		maxBytes:    opts.MaxBytes,
		downloadTTL: opts.DownloadTTL,
		now:         time.Now,
	}, nil
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*models.Evidence, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner required")
	}
	if !input.Purpose.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid evidence purpose")
	}
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_name is required")
	}
	size := int64(len(input.Data))
	if size == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if size > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file must be at most %d bytes", s.maxBytes))
	}

	mimeType := detectMime(input.Data)
	if !allowedMime(input.Purpose, mimeType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file must be %s", allowedMimeDescription(input.Purpose))).
			WithDetails(map[string]any{"detected_mime_type": mimeType})
	}

	id := uuid.New()
	row := &models.Evidence{
		ID:        id,
		OwnerID:   input.OwnerID,
		Purpose:   input.Purpose,
		Status:    enums.EvidenceStatusPending,
		GCSKey:    buildKey(input.Purpose, input.OwnerID, id, fileName),
		FileName:  fileName,
		MimeType:  mimeType,
		SizeBytes: size,
	}

	if err := s.store.Upload(ctx, s.bucket, row.GCSKey, mimeType, input.Data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload evidence")
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if delErr := s.store.DeleteObject(ctx, s.bucket, row.GCSKey); delErr != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "gcs_key", row.GCSKey), "failed to remove orphaned evidence object", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist evidence row")
	}
	return row, nil
}

// Attach binds a pending upload to a request being submitted in tx.
func (s *service) Attach(ctx context.Context, tx *gorm.DB, ownerID, evidenceID uuid.UUID, purpose enums.EvidencePurpose) (*models.Evidence, error) {
	if evidenceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "evidence_id is required")
	}
	ok, err := s.repo.MarkAttached(ctx, tx, evidenceID, ownerID, purpose, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach evidence")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "evidence is not an unused upload of the right kind").
			WithDetails(map[string]any{"evidence_id": evidenceID, "purpose": purpose})
	}

	var row models.Evidence
	if err := s.repo.conn(tx).WithContext(ctx).First(&row, "id = ?", evidenceID).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &row, nil
}

// Release marks the object behind key for deletion and queues the deletion
// event. Unknown keys are ignored since the request row is the source of
// truth for what was referenced.
func (s *service) Release(ctx context.Context, tx *gorm.DB, key, reason string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "release requires a transaction")
	}
	if strings.TrimSpace(key) == "" {
		return nil
	}
	row, err := s.repo.FindByKey(ctx, tx, key)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.repo.MarkReleased(ctx, tx, key, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release evidence")
	}

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventEvidenceReleased,
		AggregateType: enums.AggregateEvidence,
		AggregateID:   row.ID,
		Data: payloads.EvidenceReleasedEvent{
			EvidenceID: row.ID,
			GCSKey:     row.GCSKey,
			Reason:     reason,
		},
	})
}

// ReadURL signs a short-lived download link for the owner or an admin.
func (s *service) ReadURL(ctx context.Context, input ReadURLInput) (*ReadURL, error) {
	row, err := s.repo.FindByID(ctx, input.EvidenceID)
	if err != nil {
		return nil, err
	}
	if !input.IsAdmin && row.OwnerID != input.RequesterID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "evidence belongs to another user")
	}
	if row.Status == enums.EvidenceStatusReleased {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "evidence has been released")
	}

	return s.sign(row)
}

// ReadURLForKey signs a download link for the evidence stored under key, as
// referenced by a moderated request. Callers must be admins.
func (s *service) ReadURLForKey(ctx context.Context, key string) (*ReadURL, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request has no evidence")
	}
	row, err := s.repo.FindByKey(ctx, nil, key)
	if err != nil {
		return nil, err
	}
	if row.Status == enums.EvidenceStatusReleased {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "evidence has been released")
	}
	return s.sign(row)
}

func (s *service) sign(row *models.Evidence) (*ReadURL, error) {
	url, err := s.store.SignedReadURL(s.bucket, row.GCSKey, s.downloadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign read url")
	}
	return &ReadURL{URL: url, ExpiresAt: s.now().Add(s.downloadTTL).UTC()}, nil
}
