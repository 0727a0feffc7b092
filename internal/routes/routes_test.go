package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/telehealth-api/internal/blob"
	"github.com/harentsoaR/telehealth-api/internal/chat"
	"github.com/harentsoaR/telehealth-api/internal/handlers"
	"github.com/harentsoaR/telehealth-api/internal/metrics"
	"github.com/harentsoaR/telehealth-api/internal/middleware"
	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/services"
	"github.com/harentsoaR/telehealth-api/internal/store"
	"github.com/harentsoaR/telehealth-api/internal/store/memstore"
	"github.com/harentsoaR/telehealth-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router *gin.Engine
	store  *store.Store
	jwt    *utils.JWTManager
	hub    *chat.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := memstore.New()
	jwt := utils.NewJWTManager("test-secret", time.Hour)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	hub := chat.NewHub(zerolog.Nop())
	t.Cleanup(hub.Close)

	h := &handlers.Handler{
		Auth:    services.NewAuthService(st.Users, jwt, bcrypt.MinCost),
		Booking: services.NewBookingService(st, nil, m),
		Ratings: services.NewRatingService(st, nil),
		Doctors: services.NewDoctorService(st, nil),
		Records: services.NewHealthRecordService(st.HealthRecords, blobs),
		Chat:    services.NewChatService(st, hub),
		Hub:     hub,
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(zerolog.Nop()), middleware.Recovery(zerolog.Nop()), middleware.Metrics(m))
	Routes(r, h, jwt, reg)
	return &testAPI{router: r, store: st, jwt: jwt, hub: hub}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type account struct {
	ID    string
	Token string
}

func (a *testAPI) register(t *testing.T, name, phone string) account {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/users/register", "", gin.H{"name": name, "phoneNumber": phone, "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return account{ID: body.ID, Token: body.Token}
}

func (a *testAPI) admin(t *testing.T) account {
	t.Helper()
	u := &models.User{Name: "Admin", PhoneNumber: "+19990000", Role: models.RoleAdmin}
	require.NoError(t, a.store.Users.Insert(context.Background(), u))
	token, err := a.jwt.Generate(u.ID.Hex(), u.Role)
	require.NoError(t, err)
	return account{ID: u.ID.Hex(), Token: token}
}

func (a *testAPI) doctor(t *testing.T, name string) string {
	t.Helper()
	d := &models.Doctor{Name: name, Specialization: "Cardiology", Languages: []string{"English"}}
	require.NoError(t, a.store.Doctors.Insert(context.Background(), d))
	return d.ID.Hex()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func book(date, at, doctorID string) gin.H {
	return gin.H{"doctorId": doctorID, "date": date, "time": at}
}

func (a *testAPI) count(t *testing.T) int {
	t.Helper()
	apts, err := a.store.Appointments.Find(context.Background(), store.AppointmentFilter{})
	require.NoError(t, err)
	return len(apts)
}

func TestBookingScenario(t *testing.T) {
	api := newTestAPI(t)
	u1 := api.register(t, "U1", "+15550001")
	u2 := api.register(t, "U2", "+15550002")
	d1 := api.doctor(t, "D1")
	d2 := api.doctor(t, "D2")

	w := api.do(t, http.MethodPost, "/api/appointments", u1.Token, book("2025-06-10", "09:00", d1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	assert.Equal(t, u1.ID, created["userId"])
	assert.Equal(t, d1, created["doctorId"])
	assert.Equal(t, "2025-06-10", created["date"])
	assert.Equal(t, "09:00", created["time"])
	assert.Equal(t, "upcoming", created["status"])

	w = api.do(t, http.MethodPost, "/api/appointments", u2.Token, book("2025-06-10", "09:00", d1))
	assert.Equal(t, http.StatusConflict, w.Code)
	e := decode[apiError](t, w)
	assert.Equal(t, "doctor_slot_taken", e.Code)
	assert.Contains(t, e.Message, "already booked")
	assert.Equal(t, 1, api.count(t))

	w = api.do(t, http.MethodPost, "/api/appointments", u1.Token, book("2025-06-10", "09:00", d2))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user_slot_taken", decode[apiError](t, w).Code)

	w = api.do(t, http.MethodPost, "/api/appointments", u2.Token, book("2025-06-10", "10:00", d1))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, api.count(t))

	for _, body := range []gin.H{
		{"date": "2025-06-10", "time": "11:00"},
		{"doctorId": d1, "time": "11:00"},
		{"doctorId": d1, "date": "2025-06-10"},
	} {
		w = api.do(t, http.MethodPost, "/api/appointments", u1.Token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	assert.Equal(t, 2, api.count(t))

	w = api.do(t, http.MethodPost, "/api/appointments", u1.Token, book("2025-06-10", "11:00", "64a000000000000000000099"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/appointments?doctor="+d1+"&date=2025-06-10", u1.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = api.do(t, http.MethodGet, "/api/appointments", u1.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[[]models.AppointmentView](t, w)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Doctor)
	assert.Equal(t, "D1", mine[0].Doctor.Name)
}

func TestConcurrentBookingOneWinner(t *testing.T) {
	api := newTestAPI(t)
	d1 := api.doctor(t, "D1")

	const bookers = 10
	accounts := make([]account, bookers)
	for i := range accounts {
		accounts[i] = api.register(t, fmt.Sprintf("U%d", i), fmt.Sprintf("+1555100%02d", i))
	}

	var wg sync.WaitGroup
	codes := make([]int, bookers)
	for i, acc := range accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = api.do(t, http.MethodPost, "/api/appointments", acc.Token, book("2025-06-10", "09:00", d1)).Code
		}()
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, code)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, api.count(t))
}

func TestStatusTransitions(t *testing.T) {
	api := newTestAPI(t)
	u1 := api.register(t, "U1", "+15550001")
	admin := api.admin(t)
	d1 := api.doctor(t, "D1")

	w := api.do(t, http.MethodPost, "/api/appointments", u1.Token, book("2025-06-10", "09:00", d1))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)
	path := "/api/appointments/" + id + "/status"

	w = api.do(t, http.MethodPatch, path, u1.Token, gin.H{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPatch, path, admin.Token, gin.H{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPatch, "/api/appointments/64a000000000000000000099/status", admin.Token, gin.H{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPatch, path, admin.Token, gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decode[map[string]any](t, w)["status"])

	w = api.do(t, http.MethodPatch, path, admin.Token, gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", decode[apiError](t, w).Code)

	w = api.do(t, http.MethodPatch, "/api/appointments/"+id+"/cancel", u1.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodGet, "/api/appointments/all?status=completed", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = api.do(t, http.MethodGet, "/api/appointments/all", u1.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCancelFreesSlot(t *testing.T) {
	api := newTestAPI(t)
	u1 := api.register(t, "U1", "+15550001")
	u2 := api.register(t, "U2", "+15550002")
	d1 := api.doctor(t, "D1")

	w := api.do(t, http.MethodPost, "/api/appointments", u1.Token, book("2025-06-10", "09:00", d1))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)

	w = api.do(t, http.MethodPatch, "/api/appointments/"+id+"/cancel", u2.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPatch, "/api/appointments/"+id+"/cancel", u1.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode[map[string]any](t, w)["status"])

	w = api.do(t, http.MethodPost, "/api/appointments", u2.Token, book("2025-06-10", "09:00", d1))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodGet, "/api/appointments?doctor="+d1+"&date=2025-06-10&includeCancelled=true", u1.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)
}

func TestRatingOncePerAppointment(t *testing.T) {
	api := newTestAPI(t)
	u1 := api.register(t, "U1", "+15550001")
	admin := api.admin(t)
	d1 := api.doctor(t, "D1")

	w := api.do(t, http.MethodPost, "/api/appointments", u1.Token, book("2025-06-10", "09:00", d1))
	require.Equal(t, http.StatusCreated, w.Code)
	aptID := decode[map[string]any](t, w)["id"].(string)

	rating := gin.H{"doctor_id": d1, "appointment_id": aptID, "rating": 5, "review": "Great"}
	w = api.do(t, http.MethodPost, "/api/ratings/submit", u1.Token, rating)
	assert.Equal(t, http.StatusBadRequest, w.Code, "upcoming appointments cannot be rated")

	w = api.do(t, http.MethodPatch, "/api/appointments/"+aptID+"/status", admin.Token, gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, "/api/ratings/submit", u1.Token, rating)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[map[string]any](t, w)
	assert.Equal(t, true, res["success"])
	assert.NotEmpty(t, res["ratingId"])

	w = api.do(t, http.MethodPost, "/api/ratings/submit", u1.Token, rating)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "duplicate_rating", decode[apiError](t, w).Code)

	w = api.do(t, http.MethodGet, "/api/ratings/doctor/"+d1, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[struct {
		Ratings    []models.RatingView `json:"ratings"`
		Pagination models.Pagination   `json:"pagination"`
	}](t, w)
	assert.Len(t, listed.Ratings, 1)
	assert.False(t, listed.Pagination.HasMore)

	w = api.do(t, http.MethodGet, "/api/ratings/doctor/"+d1+"?page=1000000000000000000&limit=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `[]`, string(decode[map[string]json.RawMessage](t, w)["ratings"]))

	w = api.do(t, http.MethodGet, "/api/doctors/"+d1, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RatingSummary{Average: 5, Count: 1}, decode[models.DoctorProfile](t, w).Rating)

	w = api.do(t, http.MethodGet, "/api/appointments/completed", u1.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	completed := decode[[]models.CompletedAppointmentView](t, w)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].HasRated)
}

func TestAuthAndErrorShape(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode[apiError](t, w).Code)

	api.register(t, "U1", "+15550001")
	w = api.do(t, http.MethodPost, "/api/users/register", "", gin.H{"name": "Dup", "phoneNumber": "+15550001", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "phone_taken", decode[apiError](t, w).Code)

	w = api.do(t, http.MethodPost, "/api/users/login", "", gin.H{"phoneNumber": "+15550001", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[map[string]any](t, w)["token"].(string)

	w = api.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[map[string]any](t, w)
	assert.Equal(t, "U1", profile["name"])
	assert.NotContains(t, profile, "password")

	w = api.do(t, http.MethodPost, "/api/users/login", "", gin.H{"phoneNumber": "+15550001", "password": "nope!!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminDoctors(t *testing.T) {
	api := newTestAPI(t)
	u1 := api.register(t, "U1", "+15550001")
	admin := api.admin(t)

	input := gin.H{
		"name": "Meera Rao", "specialization": "Cardiology", "experience": 10,
		"languages": []string{"English", "Hindi"}, "fees": 500,
		"availability": []gin.H{{"day": "Monday", "slots": []gin.H{{"startTime": "09:00", "endTime": "12:00"}}}},
	}
	w := api.do(t, http.MethodPost, "/api/admin/doctors", u1.Token, input)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/admin/doctors", admin.Token, input)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]any](t, w)["id"].(string)

	w = api.do(t, http.MethodGet, "/api/doctors?language=Hindi", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	input["fees"] = -1
	w = api.do(t, http.MethodPut, "/api/admin/doctors/"+id, admin.Token, input)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodDelete, "/api/admin/doctors/"+id, admin.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodGet, "/api/doctors/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthRecordUploadAndDownload(t *testing.T) {
	api := newTestAPI(t)
	u1 := api.register(t, "U1", "+15550001")
	u2 := api.register(t, "U2", "+15550002")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("recordType", "prescription"))
	require.NoError(t, mw.WriteField("date", "2025-05-02"))
	require.NoError(t, mw.WriteField("details", "Amoxicillin 500mg"))
	part, err := mw.CreateFormFile("attachments", "rx.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 rx"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/health-records", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+u1.Token)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode[models.HealthRecord](t, w)
	require.Len(t, rec.Attachments, 1)

	w = api.do(t, http.MethodGet, rec.Attachments[0].URL, u1.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 rx", w.Body.String())

	w = api.do(t, http.MethodGet, rec.Attachments[0].URL, u2.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/health-records", u1.Token, gin.H{"recordType": "general"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/health-records", u1.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.HealthRecord](t, w), 1)
}

func TestChatOverWebsocket(t *testing.T) {
	api := newTestAPI(t)
	u1 := api.register(t, "U1", "+15550001")
	u2 := api.register(t, "U2", "+15550002")

	srv := httptest.NewServer(api.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws?token=" + u2.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return api.hub.TopicCount(u2.ID) == 1 }, time.Second, 10*time.Millisecond)

	w := api.do(t, http.MethodPost, "/api/chat", u1.Token, gin.H{"receiverId": u2.ID, "message": "hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt chat.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, chat.EventMessage, evt.Type)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(evt.Data, &msg))
	assert.Equal(t, "hello", msg.Message)

	w = api.do(t, http.MethodGet, "/api/chat/"+u1.ID, u2.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ChatMessage](t, w), 1)
}

func TestOperationalEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	api.do(t, http.MethodGet, "/healthz", "", nil)
	w = api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `telehealth_http_request_duration_seconds_count{method="GET",route="/healthz",status="200"}`)
}
