package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/internal/notify"
	"github.com/wolfman30/patient-portal/internal/scheduling"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

const testSession = "sess-1"

type portalFixture struct {
	handler *Handler
	center  *notify.Center
	signer  *identity.SessionSigner
	router  http.Handler
}

func newFixture(t *testing.T, repo scheduling.Repository) *portalFixture {
	t.Helper()
	store := scheduling.NewStore(repo, logging.Default()).WithLatency(scheduling.Latency{})
	center := notify.NewCenter(time.Minute)
	signer := identity.NewSessionSigner("test-secret", time.Hour)
	h := NewHandler(store, center, signer, nil)

	r := chi.NewRouter()
	r.Post("/auth/login", h.Login)
	r.Group(func(api chi.Router) {
		api.Use(testSessionMiddleware)
		api.Get("/api/dashboard", h.Dashboard)
		api.Get("/api/appointments", h.ListAppointments)
		api.Get("/api/waiting-list", h.ListWaitingList)
		api.Get("/api/catalog", h.Catalog)
		api.Post("/api/appointments", h.ScheduleAppointment)
		api.Post("/api/appointments/{id}/cancellation", h.RequestCancellation)
		api.Delete("/api/appointments/{id}", h.CancelAppointment)
		api.Get("/api/notifications", h.Notifications)
		api.Get("/api/notifications/ws", h.NotificationStream)
	})
	return &portalFixture{handler: h, center: center, signer: signer, router: r}
}

func testSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := r.Header.Get("X-Test-Session")
		if session == "" {
			session = testSession
		}
		ctx := identity.WithSessionID(r.Context(), session)
		ctx = identity.WithPatientID(ctx, "12345678901")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (f *portalFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

type failingRepo struct {
	err error
}

func (f failingRepo) ListAppointments(context.Context) ([]scheduling.Appointment, error) {
	return nil, f.err
}

func (f failingRepo) ListWaitingList(context.Context) ([]scheduling.WaitingListItem, error) {
	return nil, f.err
}

func (f failingRepo) InsertAppointment(context.Context, scheduling.Appointment) error {
	return f.err
}

func (f failingRepo) DeleteAppointment(context.Context, string) (scheduling.Appointment, error) {
	return scheduling.Appointment{}, f.err
}

type loginCounter struct {
	ok, failed int
}

func (l *loginCounter) ObserveLogin(success bool) {
	if success {
		l.ok++
	} else {
		l.failed++
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())
	counter := &loginCounter{}
	f.handler.WithLoginObserver(counter)

	rec := f.do(t, http.MethodPost, "/auth/login", LoginRequest{CardNumber: "12345678901", PIN: "1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LoginResponse](t, rec)
	assert.Equal(t, "12345678901", resp.PatientID)

	session, err := f.signer.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "12345678901", session.PatientID)
	assert.Equal(t, 1, counter.ok)
}

func TestLogin_RejectsMalformedCredentials(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())
	counter := &loginCounter{}
	f.handler.WithLoginObserver(counter)

	cases := []LoginRequest{
		{CardNumber: "1234567890", PIN: "1234"},
		{CardNumber: "123456789012", PIN: "1234"},
		{CardNumber: "1234567890a", PIN: "1234"},
		{CardNumber: "12345678901", PIN: "123"},
		{CardNumber: "12345678901", PIN: "12a4"},
		{},
	}
	for _, c := range cases {
		rec := f.do(t, http.MethodPost, "/auth/login", c)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%+v", c)
		assert.Equal(t, MsgInvalidCredentials, decode[errorResponse](t, rec).Error)
	}
	assert.Equal(t, len(cases), counter.failed)
}

func TestLogin_BadBody(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard_LoadsSeedData(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())

	rec := f.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[DashboardResponse](t, rec)

	require.Len(t, resp.Appointments, 2)
	assert.Equal(t, "1", resp.Appointments[0].ID)
	assert.Equal(t, "2", resp.Appointments[1].ID)
	assert.Equal(t, "Confirmado", resp.Appointments[0].Status)
	assert.Equal(t, "15 de agosto de 2024", resp.Appointments[0].DateLabel)
	assert.Equal(t, "quinta-feira, 15 de agosto de 2024", resp.Appointments[0].FullDateLabel)
	assert.True(t, resp.Appointments[0].DoctorAssigned)

	require.Len(t, resp.WaitingList, 2)
	wl1 := resp.WaitingList[0]
	assert.Equal(t, "wl1", wl1.ID)
	assert.InDelta(t, float64(87-12)/87, wl1.Progress, 1e-9)
	assert.False(t, wl1.LastInLine)
	assert.Equal(t, "20 de mai. de 2024", wl1.RequestDateLabel)
	assert.Equal(t, "10 de novembro de 2024", wl1.EstimatedDateLabel)
}

func TestDashboard_FetchFailure(t *testing.T) {
	f := newFixture(t, failingRepo{err: errors.New("backend down")})

	rec := f.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Appointments []AppointmentView   `json:"appointments"`
		WaitingList  []WaitingListView   `json:"waiting_list"`
		Error        string              `json:"error"`
		Notification notify.Notification `json:"notification"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotNil(t, resp.Appointments)
	assert.Empty(t, resp.Appointments)
	assert.NotNil(t, resp.WaitingList)
	assert.Empty(t, resp.WaitingList)
	assert.Equal(t, MsgLoadFailed, resp.Error)
	assert.Equal(t, notify.KindError, resp.Notification.Kind)

	active := f.center.Active(testSession)
	require.Len(t, active, 1)
	assert.Equal(t, MsgLoadFailed, active[0].Message)
}

func TestListEndpoints(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())

	rec := f.do(t, http.MethodGet, "/api/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AppointmentView](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/api/waiting-list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]WaitingListView](t, rec)
	require.Len(t, items, 2)
	assert.InDelta(t, float64(23-5)/23, items[1].Progress, 1e-9)
}

func TestListEndpoints_Failure(t *testing.T) {
	f := newFixture(t, failingRepo{err: errors.New("backend down")})

	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodGet, "/api/appointments", nil).Code)
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodGet, "/api/waiting-list", nil).Code)
	assert.Len(t, f.center.Active(testSession), 2)
}

func TestCatalog(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())

	rec := f.do(t, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CatalogResponse](t, rec)
	assert.Len(t, resp.Specialties, 5)
	assert.Len(t, resp.TimeSlots, 17)
	assert.Equal(t, scheduling.TimeSlot("08:00"), resp.TimeSlots[0])
	assert.Equal(t, scheduling.TimeSlot("17:00"), resp.TimeSlots[16])
}

func TestScheduleAppointment(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())

	rec := f.do(t, http.MethodPost, "/api/appointments", ScheduleRequest{Specialty: "Pediatria", Time: "09:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[MutationResponse](t, rec)

	require.NotNil(t, resp.Appointment)
	assert.Equal(t, scheduling.Specialty("Pediatria"), resp.Appointment.Specialty)
	assert.Equal(t, scheduling.TimeSlot("09:00"), resp.Appointment.Time)
	assert.Equal(t, scheduling.PlaceholderDoctor, resp.Appointment.Doctor)
	assert.False(t, resp.Appointment.DoctorAssigned)
	require.NotNil(t, resp.Notification)
	assert.Equal(t, "Solicitação para Pediatria enviada com sucesso!", resp.Notification.Message)
	assert.Equal(t, notify.KindSuccess, resp.Notification.Kind)

	list := decode[[]AppointmentView](t, f.do(t, http.MethodGet, "/api/appointments", nil))
	assert.Len(t, list, 3)
}

func TestScheduleAppointment_InvalidInput(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())

	for _, req := range []ScheduleRequest{
		{Specialty: "Neurologia", Time: "09:00"},
		{Specialty: "Pediatria", Time: "12:00"},
	} {
		rec := f.do(t, http.MethodPost, "/api/appointments", req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, MsgScheduleFailed, decode[errorResponse](t, rec).Error)
	}

	list := decode[[]AppointmentView](t, f.do(t, http.MethodGet, "/api/appointments", nil))
	assert.Len(t, list, 2)
}

func TestScheduleAppointment_StoreFailure(t *testing.T) {
	f := newFixture(t, failingRepo{err: errors.New("insert failed")})

	rec := f.do(t, http.MethodPost, "/api/appointments", ScheduleRequest{Specialty: "Pediatria", Time: "09:00"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, MsgScheduleFailed, resp.Error)
	require.NotNil(t, resp.Notification)
	assert.Equal(t, notify.KindError, resp.Notification.Kind)
}

func TestCancelFlow(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())

	rec := f.do(t, http.MethodPost, "/api/appointments/1/cancellation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prompt := decode[CancellationPrompt](t, rec)
	assert.Equal(t, "Você tem certeza que deseja cancelar a consulta de Cardiologia no dia 15 de agosto?", prompt.Prompt)
	assert.NotEmpty(t, prompt.Token)

	rec = f.do(t, http.MethodDelete, "/api/appointments/1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/appointments/1?confirmation="+prompt.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MutationResponse](t, rec)
	require.NotNil(t, resp.Notification)
	assert.Equal(t, MsgCancelSucceeded, resp.Notification.Message)

	list := decode[[]AppointmentView](t, f.do(t, http.MethodGet, "/api/appointments", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].ID)

	rec = f.do(t, http.MethodDelete, "/api/appointments/1?confirmation="+prompt.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancel_NotFoundConsumesConfirmation(t *testing.T) {
	repo := scheduling.NewSeededMemoryRepository()
	f := newFixture(t, repo)

	prompt := decode[CancellationPrompt](t, f.do(t, http.MethodPost, "/api/appointments/1/cancellation", nil))
	_, err := repo.DeleteAppointment(context.Background(), "1")
	require.NoError(t, err)

	rec := f.do(t, http.MethodDelete, "/api/appointments/1?confirmation="+prompt.Token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgCancelFailed, decode[errorResponse](t, rec).Error)

	rec = f.do(t, http.MethodDelete, "/api/appointments/1?confirmation="+prompt.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	list := decode[[]AppointmentView](t, f.do(t, http.MethodGet, "/api/appointments", nil))
	assert.Len(t, list, 1)
}

func TestRequestCancellation_UnknownAppointment(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())
	rec := f.do(t, http.MethodPost, "/api/appointments/nope/cancellation", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	resp := decode[errorResponse](t, rec)
	assert.Equal(t, MsgCancelFailed, resp.Error)
	require.NotNil(t, resp.Notification)
	assert.Equal(t, notify.KindError, resp.Notification.Kind)
	assert.Equal(t, MsgCancelFailed, resp.Notification.Message)

	active := f.center.Active(testSession)
	require.Len(t, active, 1)
	assert.Equal(t, MsgCancelFailed, active[0].Message)
}

func TestCancel_ConfirmationBoundToSession(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())
	prompt := decode[CancellationPrompt](t, f.do(t, http.MethodPost, "/api/appointments/1/cancellation", nil))

	req := httptest.NewRequest(http.MethodDelete, "/api/appointments/1?confirmation="+prompt.Token, nil)
	req.Header.Set("X-Test-Session", "someone-else")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/appointments/2?confirmation="+prompt.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, decode[[]AppointmentView](t, f.do(t, http.MethodGet, "/api/appointments", nil)), 2)
}

func TestNotificationsEndpoint(t *testing.T) {
	f := newFixture(t, scheduling.NewSeededMemoryRepository())

	rec := f.do(t, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]notify.Notification](t, rec))

	f.do(t, http.MethodPost, "/api/appointments", ScheduleRequest{Specialty: "Ortopedia", Time: "13:30"})
	active := decode[[]notify.Notification](t, f.do(t, http.MethodGet, "/api/notifications", nil))
	require.Len(t, active, 1)
	assert.Equal(t, "Solicitação para Ortopedia enviada com sucesso!", active[0].Message)
}

func TestNewHandler_PanicsWithoutDeps(t *testing.T) {
	store := scheduling.NewStore(scheduling.NewSeededMemoryRepository(), nil)
	center := notify.NewCenter(0)
	signer := identity.NewSessionSigner("s", time.Hour)
	assert.Panics(t, func() { NewHandler(nil, center, signer, nil) })
	assert.Panics(t, func() { NewHandler(store, nil, signer, nil) })
	assert.Panics(t, func() { NewHandler(store, center, nil, nil) })
}
