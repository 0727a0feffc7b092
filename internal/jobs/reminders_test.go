package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/services"
	"github.com/harentsoaR/telehealth-api/internal/store/memstore"
)

type recordingNotifier struct {
	mu        sync.Mutex
	reminders []primitive.ObjectID
	fail      map[primitive.ObjectID]bool
}

func (n *recordingNotifier) AppointmentBooked(context.Context, *models.User, *models.Doctor, *models.Appointment) {
}

func (n *recordingNotifier) AppointmentCancelled(context.Context, *models.User, *models.Doctor, *models.Appointment) {
}

func (n *recordingNotifier) AppointmentReminder(_ context.Context, patient *models.User, _ *models.Doctor, apt *models.Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[apt.ID] {
		return errors.New("textbelt down")
	}
	if patient.PhoneNumber == "" {
		return services.ErrSMSSkipped
	}
	n.reminders = append(n.reminders, apt.ID)
	return nil
}

func TestReminderScheduler_RunOnce(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	patient := &models.User{Name: "Asha", PhoneNumber: "+15550001"}
	require.NoError(t, st.Users.Insert(ctx, patient))
	doctor := &models.Doctor{Name: "Rao"}
	require.NoError(t, st.Doctors.Insert(ctx, doctor))

	insert := func(date, at string, status models.AppointmentStatus) *models.Appointment {
		apt := &models.Appointment{UserID: patient.ID, DoctorID: doctor.ID, Date: date, Time: at, Status: status}
		require.NoError(t, st.Appointments.Insert(ctx, apt))
		return apt
	}
	due := insert("2025-06-11", "09:00", models.StatusUpcoming)
	noPhone := &models.User{Name: "Ravi"}
	require.NoError(t, st.Users.Insert(ctx, noPhone))
	require.NoError(t, st.Appointments.Insert(ctx, &models.Appointment{
		UserID: noPhone.ID, DoctorID: doctor.ID, Date: "2025-06-11", Time: "12:00", Status: models.StatusUpcoming,
	}))
	failing := insert("2025-06-11", "11:00", models.StatusUpcoming)
	insert("2025-06-11", "10:00", models.StatusCancelled)
	insert("2025-06-12", "09:00", models.StatusUpcoming)

	notifier := &recordingNotifier{fail: map[primitive.ObjectID]bool{failing.ID: true}}
	s := NewReminderScheduler(st, notifier, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC) }

	sent, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []primitive.ObjectID{due.ID}, notifier.reminders)
}

func TestReminderScheduler_StartRejectsBadSchedule(t *testing.T) {
	s := NewReminderScheduler(memstore.New(), &recordingNotifier{}, zerolog.Nop())
	assert.Error(t, s.Start("every day"))
}

func TestReminderScheduler_StartStop(t *testing.T) {
	s := NewReminderScheduler(memstore.New(), &recordingNotifier{}, zerolog.Nop())
	require.NoError(t, s.Start("0 18 * * *"))
	<-s.Stop().Done()
}
