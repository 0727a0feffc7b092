package services

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/metrics"
	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
	"github.com/harentsoaR/telehealth-api/internal/store/memstore"
)

type recordingNotifier struct {
	mu        sync.Mutex
	booked    []primitive.ObjectID
	cancelled []primitive.ObjectID
}

func (n *recordingNotifier) AppointmentBooked(_ context.Context, _ *models.User, _ *models.Doctor, apt *models.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, apt.ID)
}

func (n *recordingNotifier) AppointmentCancelled(_ context.Context, _ *models.User, _ *models.Doctor, apt *models.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, apt.ID)
}

func (n *recordingNotifier) AppointmentReminder(context.Context, *models.User, *models.Doctor, *models.Appointment) error {
	return nil
}

type fixture struct {
	st       *store.Store
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	reg      *prometheus.Registry
	booking  *BookingService
	ratings  *RatingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	n := &recordingNotifier{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return &fixture{
		st:       st,
		notifier: n,
		metrics:  m,
		reg:      reg,
		booking:  NewBookingService(st, n, m),
		ratings:  NewRatingService(st, nil),
	}
}

func (f *fixture) addUser(t *testing.T, name string) Caller {
	t.Helper()
	u := &models.User{Name: name, PhoneNumber: "+1555" + primitive.NewObjectID().Hex()[18:], Role: models.RoleUser}
	require.NoError(t, f.st.Users.Insert(context.Background(), u))
	return Caller{ID: u.ID, Role: u.Role}
}

func (f *fixture) addAdmin(t *testing.T) Caller {
	t.Helper()
	u := &models.User{Name: "Admin", PhoneNumber: "+1999" + primitive.NewObjectID().Hex()[18:], Role: models.RoleAdmin}
	require.NoError(t, f.st.Users.Insert(context.Background(), u))
	return Caller{ID: u.ID, Role: u.Role}
}

func (f *fixture) addDoctor(t *testing.T, name string) *models.Doctor {
	t.Helper()
	d := &models.Doctor{Name: name, Specialization: "Cardiology", Languages: []string{"English"}}
	require.NoError(t, f.st.Doctors.Insert(context.Background(), d))
	return d
}

func (f *fixture) book(t *testing.T, caller Caller, doctor *models.Doctor, date, at string) *models.AppointmentView {
	t.Helper()
	v, err := f.booking.Book(context.Background(), caller, BookRequest{DoctorID: doctor.ID.Hex(), Date: date, Time: at})
	require.NoError(t, err)
	return v
}

func (f *fixture) complete(t *testing.T, apt *models.AppointmentView) {
	t.Helper()
	_, err := f.st.Appointments.UpdateStatus(context.Background(), apt.ID, models.StatusUpcoming, models.StatusCompleted, apt.CreatedAt)
	require.NoError(t, err)
}
