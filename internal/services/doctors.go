package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/apperr"
	"github.com/harentsoaR/telehealth-api/internal/cache"
	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

type DoctorInput struct {
	Name           string                `json:"name"`
	Specialization string                `json:"specialization"`
	Experience     *int                  `json:"experience"`
	Languages      []string              `json:"languages"`
	Availability   []models.Availability `json:"availability"`
	ImageURL       string                `json:"imageUrl"`
	Fees           *float64              `json:"fees"`
}

func (in DoctorInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Specialization) == "" {
		missing = append(missing, "specialization")
	}
	if in.Experience == nil {
		missing = append(missing, "experience")
	}
	if len(in.Languages) == 0 {
		missing = append(missing, "languages")
	}
	if len(in.Availability) == 0 {
		missing = append(missing, "availability")
	}
	if in.Fees == nil {
		missing = append(missing, "fees")
	}
	if len(missing) > 0 {
		return apperr.Invalid(apperr.CodeInvalidRequest, "Missing required fields: "+strings.Join(missing, ", "))
	}
	if *in.Experience < 0 {
		return apperr.Invalid(apperr.CodeInvalidRequest, "Experience cannot be negative")
	}
	if *in.Fees < 0 {
		return apperr.Invalid(apperr.CodeInvalidRequest, "Fees cannot be negative")
	}

	for _, a := range in.Availability {
		if !models.IsWeekday(a.Day) {
			return apperr.Invalid(apperr.CodeInvalidRequest, fmt.Sprintf("Invalid availability day %q", a.Day))
		}
		for _, slot := range a.Slots {
			start, err1 := models.NormalizeTime(slot.StartTime)
			end, err2 := models.NormalizeTime(slot.EndTime)
			if err1 != nil || err2 != nil {
				return apperr.Invalid(apperr.CodeInvalidRequest, "Availability slots must use HH:MM")
			}
			if start >= end {
				return apperr.Invalid(apperr.CodeInvalidRequest, "Availability slot must end after it starts")
			}
		}
	}
	return nil
}

func (in DoctorInput) apply(d *models.Doctor) {
	d.Name = strings.TrimSpace(in.Name)
	d.Specialization = strings.TrimSpace(in.Specialization)
	d.Experience = *in.Experience
	d.Languages = in.Languages
	d.ImageURL = strings.TrimSpace(in.ImageURL)
	d.Fees = *in.Fees

	d.Availability = make([]models.Availability, 0, len(in.Availability))
	for _, a := range in.Availability {
		slots := make([]models.TimeRange, 0, len(a.Slots))
		for _, s := range a.Slots {
			start, _ := models.NormalizeTime(s.StartTime)
			end, _ := models.NormalizeTime(s.EndTime)
			slots = append(slots, models.TimeRange{StartTime: start, EndTime: end})
		}
		d.Availability = append(d.Availability, models.Availability{Day: a.Day, Slots: slots})
	}
}

type DoctorService struct {
	store *store.Store
	cache cache.RatingCache
	now   func() time.Time
}

func NewDoctorService(st *store.Store, rc cache.RatingCache) *DoctorService {
	if rc == nil {
		rc = cache.Noop{}
	}
	return &DoctorService{store: st, cache: rc, now: func() time.Time { return time.Now().UTC() }}
}

func (s *DoctorService) List(ctx context.Context, filter store.DoctorFilter) ([]models.DoctorProfile, error) {
	doctors, err := s.store.Doctors.Find(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("Failed to load doctors", err)
	}
	out := make([]models.DoctorProfile, 0, len(doctors))
	for _, d := range doctors {
		summary, err := s.RatingSummary(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.DoctorProfile{Doctor: d, Rating: summary})
	}
	return out, nil
}

func (s *DoctorService) Get(ctx context.Context, idRaw string) (*models.DoctorProfile, error) {
	id, err := parseID(idRaw, "doctor id")
	if err != nil {
		return nil, err
	}
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := s.RatingSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.DoctorProfile{Doctor: *d, Rating: summary}, nil
}

// RatingSummary reads through the cache. Cache failures fall back to the
// store.
func (s *DoctorService) RatingSummary(ctx context.Context, id primitive.ObjectID) (models.RatingSummary, error) {
	log := zerolog.Ctx(ctx)
	summary, ok, err := s.cache.Get(ctx, id.Hex())
	if err != nil {
		log.Warn().Err(err).Str("doctor_id", id.Hex()).Msg("rating cache read failed")
	}
	if ok {
		return summary, nil
	}

	summary, err = s.store.Ratings.Summary(ctx, id)
	if err != nil {
		return models.RatingSummary{}, apperr.Internal("Failed to load ratings", err)
	}
	if err := s.cache.Set(ctx, id.Hex(), summary); err != nil {
		log.Warn().Err(err).Str("doctor_id", id.Hex()).Msg("rating cache write failed")
	}
	return summary, nil
}

func (s *DoctorService) Create(ctx context.Context, in DoctorInput) (*models.Doctor, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	d := &models.Doctor{ID: primitive.NewObjectID(), CreatedAt: now, UpdatedAt: now}
	in.apply(d)
	if err := s.store.Doctors.Insert(ctx, d); err != nil {
		return nil, apperr.Internal("Failed to create doctor", err)
	}
	return d, nil
}

func (s *DoctorService) Update(ctx context.Context, idRaw string, in DoctorInput) (*models.Doctor, error) {
	id, err := parseID(idRaw, "doctor id")
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(d)
	d.UpdatedAt = s.now()
	if err := s.store.Doctors.Update(ctx, d); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Doctor not found")
		}
		return nil, apperr.Internal("Failed to update doctor", err)
	}
	return d, nil
}

// Delete removes the doctor record. Existing appointments and ratings keep
// their reference and render without a doctor summary.
func (s *DoctorService) Delete(ctx context.Context, idRaw string) error {
	id, err := parseID(idRaw, "doctor id")
	if err != nil {
		return err
	}
	if err := s.store.Doctors.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Doctor not found")
		}
		return apperr.Internal("Failed to delete doctor", err)
	}
	if err := s.cache.Invalidate(ctx, id.Hex()); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("doctor_id", id.Hex()).Msg("rating cache invalidation failed")
	}
	return nil
}

func (s *DoctorService) load(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	d, err := s.store.Doctors.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Doctor not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load doctor", err)
	}
	return d, nil
}
