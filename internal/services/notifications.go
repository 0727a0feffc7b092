package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/telehealth-api/internal/models"
)

// ErrSMSSkipped reports that no message was sent because SMS is disabled or
// the patient has no phone number.
var ErrSMSSkipped = errors.New("sms skipped")

// Notifier tells patients about their appointments. Implementations must
// not block the request path.
type Notifier interface {
	AppointmentBooked(ctx context.Context, patient *models.User, doctor *models.Doctor, apt *models.Appointment)
	AppointmentCancelled(ctx context.Context, patient *models.User, doctor *models.Doctor, apt *models.Appointment)
	// AppointmentReminder is called from the reminder job and sends
	// synchronously. It returns ErrSMSSkipped when nothing was sent.
	AppointmentReminder(ctx context.Context, patient *models.User, doctor *models.Doctor, apt *models.Appointment) error
}

// NotificationService sends SMS through the Textbelt HTTP API. With no API
// key it only logs.
type NotificationService struct {
	apiKey string
	url    string
	client *http.Client
	log    zerolog.Logger
	wg     sync.WaitGroup
}

func NewNotificationService(apiKey, url string, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		apiKey: apiKey,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With().Str("component", "notifications").Logger(),
	}
}

func (s *NotificationService) Enabled() bool {
	return s.apiKey != "" && s.url != ""
}

func (s *NotificationService) AppointmentBooked(ctx context.Context, patient *models.User, doctor *models.Doctor, apt *models.Appointment) {
	s.sendAsync(ctx, patient, fmt.Sprintf(
		"Appointment confirmed with Dr. %s on %s at %s.",
		doctor.Name, apt.Date, apt.Time,
	))
}

func (s *NotificationService) AppointmentCancelled(ctx context.Context, patient *models.User, doctor *models.Doctor, apt *models.Appointment) {
	s.sendAsync(ctx, patient, fmt.Sprintf(
		"Your appointment with Dr. %s on %s at %s has been cancelled.",
		doctor.Name, apt.Date, apt.Time,
	))
}

func (s *NotificationService) AppointmentReminder(ctx context.Context, patient *models.User, doctor *models.Doctor, apt *models.Appointment) error {
	if patient.PhoneNumber == "" || !s.Enabled() {
		return ErrSMSSkipped
	}
	return s.Send(ctx, patient.PhoneNumber, fmt.Sprintf(
		"Reminder: appointment with Dr. %s tomorrow (%s) at %s.",
		doctor.Name, apt.Date, apt.Time,
	))
}

// sendAsync detaches from the request so the SMS outlives the response.
func (s *NotificationService) sendAsync(ctx context.Context, patient *models.User, message string) {
	if patient.PhoneNumber == "" {
		s.log.Debug().Str("user_id", patient.ID.Hex()).Msg("sms not sent: no phone number")
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Send(ctx, patient.PhoneNumber, message); err != nil {
			s.log.Warn().Err(err).Str("user_id", patient.ID.Hex()).Msg("sms failed")
		}
	}()
}

// Wait blocks until in-flight async sends finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

type textbeltResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *NotificationService) Send(ctx context.Context, phone, message string) error {
	if !s.Enabled() {
		s.log.Debug().Str("phone", phone).Msg("sms disabled, skipping")
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
		"key":     s.apiKey,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("textbelt request: %w", err)
	}
	defer resp.Body.Close()

	var result textbeltResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("textbelt response (status %d): %w", resp.StatusCode, err)
	}
	if !result.Success {
		return fmt.Errorf("textbelt rejected sms: %s", result.Error)
	}
	s.log.Info().Str("phone", phone).Msg("sms sent")
	return nil
}

type nopNotifier struct{}

func (nopNotifier) AppointmentBooked(context.Context, *models.User, *models.Doctor, *models.Appointment) {
}

func (nopNotifier) AppointmentCancelled(context.Context, *models.User, *models.Doctor, *models.Appointment) {
}

func (nopNotifier) AppointmentReminder(context.Context, *models.User, *models.Doctor, *models.Appointment) error {
	return ErrSMSSkipped
}
