package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/apperr"
	"github.com/harentsoaR/telehealth-api/internal/cache"
	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

const (
	DefaultRatingsPageSize = 10
	MaxRatingsPageSize     = 50

	msgNotRateable = "Can only rate after completed appointment"
)

type SubmitRatingRequest struct {
	DoctorID      string `json:"doctor_id"`
	AppointmentID string `json:"appointment_id"`
	Rating        int    `json:"rating"`
	Review        string `json:"review"`
}

type RatingService struct {
	store *store.Store
	cache cache.RatingCache
	now   func() time.Time
}

func NewRatingService(st *store.Store, rc cache.RatingCache) *RatingService {
	if rc == nil {
		rc = cache.Noop{}
	}
	return &RatingService{store: st, cache: rc, now: func() time.Time { return time.Now().UTC() }}
}

func validRating(r int) error {
	if r < models.MinRating || r > models.MaxRating {
		return apperr.Invalid(apperr.CodeInvalidRequest, "Rating must be between 1 and 5")
	}
	return nil
}

// Submit rates a completed appointment of the caller. Each
// (user, doctor, appointment) can be rated once.
func (s *RatingService) Submit(ctx context.Context, caller Caller, req SubmitRatingRequest) (*models.Rating, error) {
	if err := validRating(req.Rating); err != nil {
		return nil, err
	}
	doctorID, err := parseID(req.DoctorID, "doctor id")
	if err != nil {
		return nil, err
	}
	appointmentID, err := parseID(req.AppointmentID, "appointment id")
	if err != nil {
		return nil, err
	}

	apt, err := s.store.Appointments.FindByID(ctx, appointmentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal("Failed to load appointment", err)
	}
	if apt == nil || apt.UserID != caller.ID || apt.DoctorID != doctorID || apt.Status != models.StatusCompleted {
		return nil, apperr.Invalid(apperr.CodeNotRateable, msgNotRateable)
	}

	existing, err := s.store.Ratings.FindOne(ctx, caller.ID, doctorID, appointmentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal("Failed to check existing rating", err)
	}
	if existing != nil {
		return nil, duplicateRating()
	}

	now := s.now()
	rating := &models.Rating{
		ID:          primitive.NewObjectID(),
		User:        caller.ID,
		Doctor:      doctorID,
		Appointment: appointmentID,
		Rating:      req.Rating,
		Review:      strings.TrimSpace(req.Review),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	switch err := s.store.Ratings.Insert(ctx, rating); {
	case errors.Is(err, store.ErrDuplicateRating):
		return nil, duplicateRating()
	case err != nil:
		return nil, apperr.Internal("Failed to submit rating", err)
	}

	s.invalidate(ctx, doctorID)
	return rating, nil
}

func duplicateRating() *apperr.Error {
	return apperr.Duplicate(apperr.CodeDuplicateRating, "You have already rated this appointment")
}

// Update changes the caller's own rating. Someone else's rating reads as
// not found.
func (s *RatingService) Update(ctx context.Context, caller Caller, ratingIDRaw string, value int, review string) (*models.Rating, error) {
	id, err := parseID(ratingIDRaw, "rating id")
	if err != nil {
		return nil, err
	}
	if err := validRating(value); err != nil {
		return nil, err
	}

	rating, err := s.store.Ratings.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && rating.User != caller.ID) {
		return nil, apperr.NotFound("Rating not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load rating", err)
	}

	now := s.now()
	review = strings.TrimSpace(review)
	if err := s.store.Ratings.Update(ctx, id, value, review, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Rating not found")
		}
		return nil, apperr.Internal("Failed to update rating", err)
	}
	rating.Rating = value
	rating.Review = review
	rating.UpdatedAt = now

	s.invalidate(ctx, rating.Doctor)
	return rating, nil
}

// ListByDoctor pages through a doctor's ratings newest first. page is
// 1-based; out of range page or limit values are clamped.
func (s *RatingService) ListByDoctor(ctx context.Context, doctorIDRaw string, page, limit int) ([]models.RatingView, models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultRatingsPageSize
	}
	if limit > MaxRatingsPageSize {
		limit = MaxRatingsPageSize
	}
	p := models.Pagination{Page: page, Limit: limit}

	doctorID, err := parseID(doctorIDRaw, "doctor id")
	if err != nil {
		return nil, p, err
	}

	if int64(page-1) > math.MaxInt64/int64(limit) {
		return []models.RatingView{}, p, nil
	}
	skip := int64(page-1) * int64(limit)
	ratings, err := s.store.Ratings.ListByDoctor(ctx, doctorID, skip, int64(limit))
	if err != nil {
		return nil, p, apperr.Internal("Failed to load ratings", err)
	}
	total, err := s.store.Ratings.CountByDoctor(ctx, doctorID)
	if err != nil {
		return nil, p, apperr.Internal("Failed to count ratings", err)
	}
	p.HasMore = skip+int64(len(ratings)) < total

	ids := make([]primitive.ObjectID, 0, len(ratings))
	for _, r := range ratings {
		ids = append(ids, r.User)
	}
	users, err := s.store.Users.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, p, apperr.Internal("Failed to load reviewers", err)
	}

	out := make([]models.RatingView, 0, len(ratings))
	for _, r := range ratings {
		v := models.RatingView{Rating: r}
		if u, ok := users[r.User]; ok {
			v.Reviewer = &models.PatientSummary{ID: u.ID, Name: u.Name}
		}
		out = append(out, v)
	}
	return out, p, nil
}

// GetUserRating returns the caller's rating for an appointment, or nil.
func (s *RatingService) GetUserRating(ctx context.Context, caller Caller, doctorIDRaw, appointmentIDRaw string) (*models.Rating, error) {
	doctorID, err := parseID(doctorIDRaw, "doctor id")
	if err != nil {
		return nil, err
	}
	appointmentID, err := parseID(appointmentIDRaw, "appointment id")
	if err != nil {
		return nil, err
	}
	rating, err := s.store.Ratings.FindOne(ctx, caller.ID, doctorID, appointmentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load rating", err)
	}
	return rating, nil
}

func (s *RatingService) invalidate(ctx context.Context, doctorID primitive.ObjectID) {
	if err := s.cache.Invalidate(ctx, doctorID.Hex()); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("doctor_id", doctorID.Hex()).Msg("rating cache invalidation failed")
	}
}
