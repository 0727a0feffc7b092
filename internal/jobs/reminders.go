package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/services"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

// ReminderScheduler texts every patient with an upcoming appointment on the
// next calendar day.
type ReminderScheduler struct {
	store    *store.Store
	notifier services.Notifier
	log      zerolog.Logger
	cron     *cron.Cron
	now      func() time.Time
	timeout  time.Duration
}

func NewReminderScheduler(st *store.Store, notifier services.Notifier, log zerolog.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		store:    st,
		notifier: notifier,
		log:      log.With().Str("component", "reminders").Logger(),
		cron:     cron.New(),
		now:      time.Now,
		timeout:  5 * time.Minute,
	}
}

// Start registers the job on a standard five-field cron schedule and starts
// the scheduler.
func (s *ReminderScheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		sent, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("reminder run failed")
			return
		}
		s.log.Info().Int("sent", sent).Msg("reminder run finished")
	})
	if err != nil {
		return fmt.Errorf("schedule reminders %q: %w", schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop prevents new runs and returns a context that is done once a running
// job has finished.
func (s *ReminderScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce sends reminders for tomorrow's upcoming appointments and returns
// how many were delivered. Skipped and failed sends are logged, not counted.
func (s *ReminderScheduler) RunOnce(ctx context.Context) (int, error) {
	tomorrow := s.now().UTC().AddDate(0, 0, 1).Format(models.DateLayout)
	apts, err := s.store.Appointments.Find(ctx, store.AppointmentFilter{
		Date:     tomorrow,
		Statuses: []models.AppointmentStatus{models.StatusUpcoming},
	})
	if err != nil {
		return 0, fmt.Errorf("load appointments for %s: %w", tomorrow, err)
	}
	if len(apts) == 0 {
		return 0, nil
	}

	userIDs := make([]primitive.ObjectID, 0, len(apts))
	doctorIDs := make([]primitive.ObjectID, 0, len(apts))
	for _, a := range apts {
		userIDs = append(userIDs, a.UserID)
		doctorIDs = append(doctorIDs, a.DoctorID)
	}
	users, err := s.store.Users.FindByIDs(ctx, userIDs)
	if err != nil {
		return 0, fmt.Errorf("load patients: %w", err)
	}
	doctors, err := s.store.Doctors.FindByIDs(ctx, doctorIDs)
	if err != nil {
		return 0, fmt.Errorf("load doctors: %w", err)
	}

	sent := 0
	for i := range apts {
		apt := &apts[i]
		patient, doctor := users[apt.UserID], doctors[apt.DoctorID]
		if patient == nil || doctor == nil {
			s.log.Warn().Str("appointment_id", apt.ID.Hex()).Msg("reminder skipped: missing patient or doctor")
			continue
		}
		err := s.notifier.AppointmentReminder(ctx, patient, doctor, apt)
		if errors.Is(err, services.ErrSMSSkipped) {
			s.log.Debug().Str("appointment_id", apt.ID.Hex()).Msg("reminder skipped: sms not sent")
			continue
		}
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", apt.ID.Hex()).Msg("reminder failed")
			continue
		}
		sent++
	}
	return sent, nil
}
