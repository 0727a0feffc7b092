package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/apperr"
	"github.com/harentsoaR/telehealth-api/internal/blob"
	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

const (
	MaxAttachments    = 5
	MaxAttachmentSize = 5 << 20
)

var attachmentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type HealthRecordInput struct {
	RecordType   string
	Date         string
	DoctorName   string
	HospitalName string
	Details      string
}

type HealthRecordService struct {
	records store.HealthRecordStore
	blobs   blob.Store
	now     func() time.Time
}

func NewHealthRecordService(records store.HealthRecordStore, blobs blob.Store) *HealthRecordService {
	return &HealthRecordService{records: records, blobs: blobs, now: func() time.Time { return time.Now().UTC() }}
}

func (s *HealthRecordService) List(ctx context.Context, caller Caller) ([]models.HealthRecord, error) {
	records, err := s.records.ListByUser(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to load health records", err)
	}
	return records, nil
}

// Create validates the record and its files before anything is stored.
func (s *HealthRecordService) Create(ctx context.Context, caller Caller, in HealthRecordInput, files []*multipart.FileHeader) (*models.HealthRecord, error) {
	if !models.IsRecordType(in.RecordType) {
		return nil, apperr.Invalid(apperr.CodeInvalidRequest,
			"Record type must be one of "+strings.Join(models.RecordTypes, ", "))
	}
	date, err := models.NormalizeDate(in.Date)
	if err != nil {
		return nil, apperr.Invalid(apperr.CodeInvalidRequest, "Invalid date, expected YYYY-MM-DD")
	}
	if strings.TrimSpace(in.Details) == "" {
		return nil, apperr.Invalid(apperr.CodeInvalidRequest, "Details are required")
	}
	if len(files) > MaxAttachments {
		return nil, apperr.Invalid(apperr.CodeInvalidRequest, fmt.Sprintf("At most %d attachments are allowed", MaxAttachments))
	}
	for _, f := range files {
		if _, ok := attachmentTypes[strings.ToLower(filepath.Ext(f.Filename))]; !ok {
			return nil, apperr.Invalid(apperr.CodeInvalidRequest, "Only PDF, JPG and PNG files are allowed")
		}
		if f.Size > MaxAttachmentSize {
			return nil, apperr.Invalid(apperr.CodeInvalidRequest, fmt.Sprintf("%s exceeds the 5MB limit", f.Filename))
		}
	}

	now := s.now()
	rec := &models.HealthRecord{
		ID:           primitive.NewObjectID(),
		User:         caller.ID,
		RecordType:   in.RecordType,
		Date:         date,
		DoctorName:   strings.TrimSpace(in.DoctorName),
		HospitalName: strings.TrimSpace(in.HospitalName),
		Details:      strings.TrimSpace(in.Details),
		Attachments:  make([]models.Attachment, 0, len(files)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i, f := range files {
		att, err := s.upload(ctx, caller, f)
		if err != nil {
			s.discard(ctx, rec.Attachments)
			return nil, err
		}
		att.URL = fmt.Sprintf("/api/health-records/%s/attachments/%d", rec.ID.Hex(), i)
		rec.Attachments = append(rec.Attachments, *att)
	}

	if err := s.records.Insert(ctx, rec); err != nil {
		s.discard(ctx, rec.Attachments)
		return nil, apperr.Internal("Failed to save health record", err)
	}
	zerolog.Ctx(ctx).Info().Str("record_id", rec.ID.Hex()).Int("attachments", len(files)).Msg("health record created")
	return rec, nil
}

// discard removes blobs stored for a record that was never saved.
func (s *HealthRecordService) discard(ctx context.Context, atts []models.Attachment) {
	for _, att := range atts {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), att.Key); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", att.Key).Msg("orphaned attachment")
		}
	}
}

func (s *HealthRecordService) upload(ctx context.Context, caller Caller, f *multipart.FileHeader) (*models.Attachment, error) {
	ext := strings.ToLower(filepath.Ext(f.Filename))
	key := caller.ID.Hex() + "/" + uuid.NewString() + ext
	contentType := attachmentTypes[ext]

	src, err := f.Open()
	if err != nil {
		return nil, apperr.Internal("Failed to read upload", err)
	}
	defer src.Close()

	if err := s.blobs.Put(ctx, key, src, contentType); err != nil {
		return nil, apperr.Internal("Failed to store attachment", err)
	}
	return &models.Attachment{
		Filename:    filepath.Base(f.Filename),
		Key:         key,
		ContentType: contentType,
		Size:        f.Size,
	}, nil
}

// OpenAttachment streams one attachment of the caller's record. Records of
// other users read as not found.
func (s *HealthRecordService) OpenAttachment(ctx context.Context, caller Caller, idRaw string, index int) (io.ReadCloser, *models.Attachment, error) {
	id, err := parseID(idRaw, "record id")
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.records.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && rec.User != caller.ID) {
		return nil, nil, apperr.NotFound("Health record not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("Failed to load health record", err)
	}
	if index < 0 || index >= len(rec.Attachments) {
		return nil, nil, apperr.NotFound("Attachment not found")
	}

	att := rec.Attachments[index]
	rc, err := s.blobs.Get(ctx, att.Key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil, apperr.NotFound("Attachment not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("Failed to read attachment", err)
	}
	return rc, &att, nil
}
