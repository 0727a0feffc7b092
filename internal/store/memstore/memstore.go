// Package memstore is an in-process implementation of the store contracts.
// It is used by STORE_DRIVER=memory and by the service and handler tests.
// Every write that has a uniqueness rule checks and inserts under one lock,
// so it gives the same guarantees as the Mongo unique indexes.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

func New() *store.Store {
	return &store.Store{
		Appointments:  NewAppointments(),
		Users:         NewUsers(),
		Doctors:       NewDoctors(),
		Ratings:       NewRatings(),
		HealthRecords: NewHealthRecords(),
		Chats:         NewChats(),
	}
}

func isActive(s models.AppointmentStatus) bool {
	return s != models.StatusCancelled
}

// --- Appointments ---

type Appointments struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Appointment
}

func NewAppointments() *Appointments {
	return &Appointments{byID: make(map[primitive.ObjectID]models.Appointment)}
}

func (s *Appointments) Insert(_ context.Context, apt *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userTaken := false
	for _, existing := range s.byID {
		if !isActive(existing.Status) || existing.Date != apt.Date || existing.Time != apt.Time {
			continue
		}
		if existing.DoctorID == apt.DoctorID {
			return store.ErrDoctorSlotTaken
		}
		if existing.UserID == apt.UserID {
			userTaken = true
		}
	}
	if userTaken {
		return store.ErrUserSlotTaken
	}

	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	s.byID[apt.ID] = *apt
	return nil
}

func (s *Appointments) FindByID(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apt, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &apt, nil
}

func (s *Appointments) Find(_ context.Context, f store.AppointmentFilter) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Appointment, 0)
	for _, apt := range s.byID {
		if !f.UserID.IsZero() && apt.UserID != f.UserID {
			continue
		}
		if !f.DoctorID.IsZero() && apt.DoctorID != f.DoctorID {
			continue
		}
		if f.Date != "" && apt.Date != f.Date {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, apt.Status) {
			continue
		}
		out = append(out, apt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Appointments) DoctorSlotTaken(_ context.Context, doctorID primitive.ObjectID, date, at string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, apt := range s.byID {
		if apt.DoctorID == doctorID && apt.Date == date && apt.Time == at && isActive(apt.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Appointments) UserSlotTaken(_ context.Context, userID primitive.ObjectID, date, at string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, apt := range s.byID {
		if apt.UserID == userID && apt.Date == date && apt.Time == at && isActive(apt.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Appointments) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to models.AppointmentStatus, at time.Time) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apt, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if apt.Status != from {
		return nil, store.ErrStatusChanged
	}
	apt.Status = to
	apt.UpdatedAt = at
	s.byID[id] = apt
	return &apt, nil
}

func containsStatus(list []models.AppointmentStatus, s models.AppointmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// --- Users ---

type Users struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.User
}

func NewUsers() *Users {
	return &Users{byID: make(map[primitive.ObjectID]models.User)}
}

func (s *Users) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.PhoneNumber == u.PhoneNumber {
			return store.ErrDuplicatePhone
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.byID[u.ID] = *u
	return nil
}

func (s *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Users) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.byID {
		if u.PhoneNumber == phone {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Users) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[primitive.ObjectID]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			out[id] = &u
		}
	}
	return out, nil
}

// --- Doctors ---

type Doctors struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Doctor
}

func NewDoctors() *Doctors {
	return &Doctors{byID: make(map[primitive.ObjectID]models.Doctor)}
}

func (s *Doctors) Insert(_ context.Context, d *models.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	s.byID[d.ID] = *d
	return nil
}

func (s *Doctors) FindByID(_ context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (s *Doctors) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[primitive.ObjectID]*models.Doctor, len(ids))
	for _, id := range ids {
		if d, ok := s.byID[id]; ok {
			out[id] = &d
		}
	}
	return out, nil
}

func (s *Doctors) Find(_ context.Context, f store.DoctorFilter) ([]models.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Doctor, 0)
	for _, d := range s.byID {
		if f.Specialization != "" && d.Specialization != f.Specialization {
			continue
		}
		if f.Language != "" && !containsString(d.Languages, f.Language) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Doctors) Update(_ context.Context, d *models.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[d.ID]; !ok {
		return store.ErrNotFound
	}
	s.byID[d.ID] = *d
	return nil
}

func (s *Doctors) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// --- Ratings ---

type Ratings struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Rating
}

func NewRatings() *Ratings {
	return &Ratings{byID: make(map[primitive.ObjectID]models.Rating)}
}

func (s *Ratings) Insert(_ context.Context, r *models.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.User == r.User && existing.Doctor == r.Doctor && existing.Appointment == r.Appointment {
			return store.ErrDuplicateRating
		}
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.byID[r.ID] = *r
	return nil
}

func (s *Ratings) FindByID(_ context.Context, id primitive.ObjectID) (*models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Ratings) FindOne(_ context.Context, user, doctor, appointment primitive.ObjectID) (*models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.byID {
		if r.User == user && r.Doctor == doctor && r.Appointment == appointment {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Ratings) FindByUser(_ context.Context, user primitive.ObjectID) ([]models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Rating, 0)
	for _, r := range s.byID {
		if r.User == user {
			out = append(out, r)
		}
	}
	sortRatingsNewestFirst(out)
	return out, nil
}

func (s *Ratings) Update(_ context.Context, id primitive.ObjectID, rating int, review string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Rating = rating
	r.Review = review
	r.UpdatedAt = at
	s.byID[id] = r
	return nil
}

func (s *Ratings) ListByDoctor(_ context.Context, doctor primitive.ObjectID, skip, limit int64) ([]models.Rating, error) {
	s.mu.RLock()
	all := make([]models.Rating, 0)
	for _, r := range s.byID {
		if r.Doctor == doctor {
			all = append(all, r)
		}
	}
	s.mu.RUnlock()

	sortRatingsNewestFirst(all)
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(all)) {
		return []models.Rating{}, nil
	}
	end := int64(len(all))
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return all[skip:end], nil
}

func (s *Ratings) CountByDoctor(_ context.Context, doctor primitive.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.byID {
		if r.Doctor == doctor {
			n++
		}
	}
	return n, nil
}

func (s *Ratings) Summary(_ context.Context, doctor primitive.ObjectID) (models.RatingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum, n int64
	for _, r := range s.byID {
		if r.Doctor == doctor {
			sum += int64(r.Rating)
			n++
		}
	}
	if n == 0 {
		return models.RatingSummary{}, nil
	}
	return models.RatingSummary{
		Average: store.RoundRating(float64(sum) / float64(n)),
		Count:   n,
	}, nil
}

func sortRatingsNewestFirst(list []models.Rating) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

// --- Health records ---

type HealthRecords struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.HealthRecord
}

func NewHealthRecords() *HealthRecords {
	return &HealthRecords{byID: make(map[primitive.ObjectID]models.HealthRecord)}
}

func (s *HealthRecords) Insert(_ context.Context, rec *models.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	s.byID[rec.ID] = *rec
	return nil
}

func (s *HealthRecords) FindByID(_ context.Context, id primitive.ObjectID) (*models.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *HealthRecords) ListByUser(_ context.Context, user primitive.ObjectID) ([]models.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.HealthRecord, 0)
	for _, rec := range s.byID {
		if rec.User == user {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// --- Chats ---

type Chats struct {
	mu       sync.RWMutex
	messages []models.ChatMessage
}

func NewChats() *Chats {
	return &Chats{}
}

func (s *Chats) Insert(_ context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *Chats) Conversation(_ context.Context, a, b primitive.ObjectID) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ChatMessage, 0)
	for _, m := range s.messages {
		if (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
