package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the booking and HTTP counters. A nil *Metrics is a no-op.
type Metrics struct {
	bookingAttempts   *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Name:      "booking_attempts_total",
			Help:      "Appointment booking attempts by result",
		}, []string{"result"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Name:      "status_transitions_total",
			Help:      "Appointment status transitions by target status and result",
		}, []string{"to", "result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telehealth",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingAttempts, m.statusTransitions, m.requestDuration)
	return m
}

// Booking results.
const (
	ResultBooked      = "booked"
	ResultDoctorTaken = "doctor_slot_taken"
	ResultUserTaken   = "user_slot_taken"
	ResultInvalid     = "invalid"
	ResultError       = "error"
	ResultOK          = "ok"
	ResultRejected    = "rejected"
)

func (m *Metrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransition(to, result string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(to, result).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
