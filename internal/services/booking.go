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
	"github.com/harentsoaR/telehealth-api/internal/metrics"
	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

type BookRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
}

type BookingService struct {
	store     *store.Store
	conflicts *ConflictChecker
	notifier  Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewBookingService(st *store.Store, notifier Notifier, m *metrics.Metrics) *BookingService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &BookingService{
		store:     st,
		conflicts: NewConflictChecker(st.Appointments),
		notifier:  notifier,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Book validates and normalizes the request, checks both slot conflicts and
// inserts an upcoming appointment owned by the caller.
func (s *BookingService) Book(ctx context.Context, caller Caller, req BookRequest) (*models.AppointmentView, error) {
	apt, doctor, err := s.book(ctx, caller, req)
	switch {
	case err == nil:
		s.metrics.ObserveBooking(metrics.ResultBooked)
	case apperr.IsKind(err, apperr.KindConflict):
		s.metrics.ObserveBooking(apperr.From(err).Code)
	case apperr.IsKind(err, apperr.KindInternal):
		s.metrics.ObserveBooking(metrics.ResultError)
	default:
		s.metrics.ObserveBooking(metrics.ResultInvalid)
	}
	if err != nil {
		return nil, err
	}

	s.notify(ctx, apt, doctor, s.notifier.AppointmentBooked)
	return &models.AppointmentView{Appointment: *apt, Doctor: doctor.Summary()}, nil
}

func (s *BookingService) book(ctx context.Context, caller Caller, req BookRequest) (*models.Appointment, *models.Doctor, error) {
	if strings.TrimSpace(req.DoctorID) == "" || strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Time) == "" {
		return nil, nil, apperr.Invalid(apperr.CodeInvalidRequest, "Doctor, date and time are required")
	}
	doctorID, err := parseID(req.DoctorID, "doctor id")
	if err != nil {
		return nil, nil, err
	}
	date, err := models.NormalizeDate(req.Date)
	if err != nil {
		return nil, nil, apperr.Invalid(apperr.CodeInvalidRequest, "Invalid date, expected YYYY-MM-DD")
	}
	at, err := models.NormalizeTime(req.Time)
	if err != nil {
		return nil, nil, apperr.Invalid(apperr.CodeInvalidRequest, "Invalid time, expected HH:MM")
	}

	doctor, err := s.store.Doctors.FindByID(ctx, doctorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound("Doctor not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("Failed to load doctor", err)
	}

	if err := s.conflicts.Check(ctx, doctorID, caller.ID, date, at); err != nil {
		return nil, nil, err
	}

	now := s.now()
	apt := &models.Appointment{
		ID:        primitive.NewObjectID(),
		UserID:    caller.ID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      at,
		Status:    models.StatusUpcoming,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch err := s.store.Appointments.Insert(ctx, apt); {
	case errors.Is(err, store.ErrDoctorSlotTaken):
		return nil, nil, doctorSlotTaken()
	case errors.Is(err, store.ErrUserSlotTaken):
		return nil, nil, userSlotTaken()
	case err != nil:
		return nil, nil, apperr.Internal("Failed to book appointment", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("appointment_id", apt.ID.Hex()).
		Str("doctor_id", doctorID.Hex()).
		Str("date", date).
		Str("time", at).
		Msg("appointment booked")
	return apt, doctor, nil
}

// notify looks up the patient and hands off to the notifier. Failures are
// logged and never reach the caller.
func (s *BookingService) notify(ctx context.Context, apt *models.Appointment, doctor *models.Doctor,
	send func(context.Context, *models.User, *models.Doctor, *models.Appointment)) {
	patient, err := s.store.Users.FindByID(ctx, apt.UserID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("appointment_id", apt.ID.Hex()).Msg("notification skipped: patient lookup failed")
		return
	}
	if doctor == nil {
		if doctor, err = s.store.Doctors.FindByID(ctx, apt.DoctorID); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("appointment_id", apt.ID.Hex()).Msg("notification skipped: doctor lookup failed")
			return
		}
	}
	send(ctx, patient, doctor, apt)
}

// ListForUser returns the caller's appointments with doctor summaries.
func (s *BookingService) ListForUser(ctx context.Context, caller Caller) ([]models.AppointmentView, error) {
	apts, err := s.store.Appointments.Find(ctx, store.AppointmentFilter{UserID: caller.ID})
	if err != nil {
		return nil, apperr.Internal("Failed to load appointments", err)
	}
	return s.views(ctx, apts, true, false)
}

// ListForDoctorOnDate backs slot display. Cancelled appointments are left
// out unless includeCancelled is set.
func (s *BookingService) ListForDoctorOnDate(ctx context.Context, doctorIDRaw, dateRaw string, includeCancelled bool) ([]models.Appointment, error) {
	doctorID, err := parseID(doctorIDRaw, "doctor id")
	if err != nil {
		return nil, err
	}
	date, err := models.NormalizeDate(dateRaw)
	if err != nil {
		return nil, apperr.Invalid(apperr.CodeInvalidRequest, "Invalid date, expected YYYY-MM-DD")
	}
	filter := store.AppointmentFilter{DoctorID: doctorID, Date: date}
	if !includeCancelled {
		filter.Statuses = models.ActiveStatuses()
	}
	apts, err := s.store.Appointments.Find(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("Failed to load appointments", err)
	}
	return apts, nil
}

// ListForDoctor returns every appointment of a doctor with patient names.
func (s *BookingService) ListForDoctor(ctx context.Context, doctorIDRaw string) ([]models.AppointmentView, error) {
	doctorID, err := parseID(doctorIDRaw, "doctor id")
	if err != nil {
		return nil, err
	}
	apts, err := s.store.Appointments.Find(ctx, store.AppointmentFilter{DoctorID: doctorID})
	if err != nil {
		return nil, apperr.Internal("Failed to load appointments", err)
	}
	return s.views(ctx, apts, false, true)
}

// ListAll is the admin view over every appointment, optionally narrowed by
// status and date.
func (s *BookingService) ListAll(ctx context.Context, caller Caller, status, dateRaw string) ([]models.AppointmentView, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("Admin access required")
	}
	var filter store.AppointmentFilter
	if status != "" {
		st := models.AppointmentStatus(status)
		if !st.Valid() {
			return nil, apperr.Invalid(apperr.CodeInvalidStatus, "Invalid status")
		}
		filter.Statuses = []models.AppointmentStatus{st}
	}
	if dateRaw != "" {
		date, err := models.NormalizeDate(dateRaw)
		if err != nil {
			return nil, apperr.Invalid(apperr.CodeInvalidRequest, "Invalid date, expected YYYY-MM-DD")
		}
		filter.Date = date
	}
	apts, err := s.store.Appointments.Find(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("Failed to load appointments", err)
	}
	return s.views(ctx, apts, true, true)
}

// ListCompleted returns the caller's completed appointments with their rating,
// if any.
func (s *BookingService) ListCompleted(ctx context.Context, caller Caller) ([]models.CompletedAppointmentView, error) {
	apts, err := s.store.Appointments.Find(ctx, store.AppointmentFilter{
		UserID:   caller.ID,
		Statuses: []models.AppointmentStatus{models.StatusCompleted},
	})
	if err != nil {
		return nil, apperr.Internal("Failed to load appointments", err)
	}
	views, err := s.views(ctx, apts, true, false)
	if err != nil {
		return nil, err
	}
	ratings, err := s.store.Ratings.FindByUser(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to load ratings", err)
	}
	byAppointment := make(map[primitive.ObjectID]*models.Rating, len(ratings))
	for i := range ratings {
		byAppointment[ratings[i].Appointment] = &ratings[i]
	}

	out := make([]models.CompletedAppointmentView, 0, len(views))
	for _, v := range views {
		r := byAppointment[v.ID]
		out = append(out, models.CompletedAppointmentView{AppointmentView: v, HasRated: r != nil, Rating: r})
	}
	return out, nil
}

// UpdateStatus is the admin transition. Only completed and cancelled are
// valid targets.
func (s *BookingService) UpdateStatus(ctx context.Context, caller Caller, idRaw, target string) (*models.AppointmentView, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("Admin access required")
	}
	to := models.AppointmentStatus(strings.TrimSpace(target))
	if to != models.StatusCompleted && to != models.StatusCancelled {
		return nil, apperr.Invalid(apperr.CodeInvalidStatus, "Status must be completed or cancelled")
	}
	id, err := parseID(idRaw, "appointment id")
	if err != nil {
		return nil, err
	}
	apt, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, apt, to)
}

// Cancel lets the owner, or an admin, cancel an upcoming appointment.
func (s *BookingService) Cancel(ctx context.Context, caller Caller, idRaw string) (*models.AppointmentView, error) {
	id, err := parseID(idRaw, "appointment id")
	if err != nil {
		return nil, err
	}
	apt, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.UserID != caller.ID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("You can only cancel your own appointments")
	}
	return s.transition(ctx, apt, models.StatusCancelled)
}

func (s *BookingService) find(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	apt, err := s.store.Appointments.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Appointment not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load appointment", err)
	}
	return apt, nil
}

func (s *BookingService) transition(ctx context.Context, apt *models.Appointment, to models.AppointmentStatus) (*models.AppointmentView, error) {
	invalid := apperr.Conflict(apperr.CodeInvalidTransition,
		fmt.Sprintf("Cannot change status from %s to %s", apt.Status, to))

	if !apt.Status.CanTransitionTo(to) {
		s.metrics.ObserveTransition(string(to), metrics.ResultRejected)
		return nil, invalid
	}

	updated, err := s.store.Appointments.UpdateStatus(ctx, apt.ID, apt.Status, to, s.now())
	switch {
	case errors.Is(err, store.ErrStatusChanged):
		s.metrics.ObserveTransition(string(to), metrics.ResultRejected)
		return nil, invalid
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("Appointment not found")
	case err != nil:
		s.metrics.ObserveTransition(string(to), metrics.ResultError)
		return nil, apperr.Internal("Failed to update appointment", err)
	}
	s.metrics.ObserveTransition(string(to), metrics.ResultOK)

	zerolog.Ctx(ctx).Info().
		Str("appointment_id", apt.ID.Hex()).
		Str("from", string(apt.Status)).
		Str("to", string(to)).
		Msg("appointment status changed")

	doctor, err := s.store.Doctors.FindByID(ctx, updated.DoctorID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("appointment_id", updated.ID.Hex()).
			Str("doctor_id", updated.DoctorID.Hex()).
			Msg("doctor lookup failed, responding without doctor summary")
		doctor = nil
	}
	if to == models.StatusCancelled && doctor != nil {
		s.notify(ctx, updated, doctor, s.notifier.AppointmentCancelled)
	}

	view := &models.AppointmentView{Appointment: *updated}
	if doctor != nil {
		view.Doctor = doctor.Summary()
	}
	return view, nil
}

// views joins doctor and patient summaries onto appointments. Missing
// referents leave the summary nil.
func (s *BookingService) views(ctx context.Context, apts []models.Appointment, withDoctor, withPatient bool) ([]models.AppointmentView, error) {
	var doctors map[primitive.ObjectID]*models.Doctor
	var users map[primitive.ObjectID]*models.User

	if withDoctor {
		ids := make([]primitive.ObjectID, 0, len(apts))
		for _, a := range apts {
			ids = append(ids, a.DoctorID)
		}
		var err error
		if doctors, err = s.store.Doctors.FindByIDs(ctx, uniqueIDs(ids)); err != nil {
			return nil, apperr.Internal("Failed to load doctors", err)
		}
	}
	if withPatient {
		ids := make([]primitive.ObjectID, 0, len(apts))
		for _, a := range apts {
			ids = append(ids, a.UserID)
		}
		var err error
		if users, err = s.store.Users.FindByIDs(ctx, uniqueIDs(ids)); err != nil {
			return nil, apperr.Internal("Failed to load patients", err)
		}
	}

	out := make([]models.AppointmentView, 0, len(apts))
	for _, a := range apts {
		v := models.AppointmentView{Appointment: a}
		if d, ok := doctors[a.DoctorID]; ok {
			v.Doctor = d.Summary()
		}
		if u, ok := users[a.UserID]; ok {
			v.Patient = &models.PatientSummary{ID: u.ID, Name: u.Name}
		}
		out = append(out, v)
	}
	return out, nil
}
