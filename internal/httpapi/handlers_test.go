package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"receptionist-platform/internal/audit"
	"receptionist-platform/internal/auth"
	"receptionist-platform/internal/booking"
	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/realtime"
	"receptionist-platform/internal/reporting"
	"receptionist-platform/internal/scheduling"
)

// 2025-03-03 is a Monday.
var monday = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

type env struct {
	router   *gin.Engine
	book     *booking.Service
	store    *booking.MemoryStore
	callRepo *calls.MemoryRepo
	auditLog *audit.MemoryRepo
}

func newEnv(t *testing.T) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	schedRepo := scheduling.NewMemoryRepo()
	schedRepo.AddOffering(scheduling.Offering{ID: "svc-1", OrgID: "org-1", Name: "Dental Cleaning", DurationMinutes: 60})
	sched := scheduling.NewService(schedRepo)
	if _, err := sched.ReplaceWeeklyRules(context.Background(), "org-1", []scheduling.RuleInput{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}); err != nil {
		t.Fatalf("seed rules: %v", err)
	}

	store := booking.NewMemoryStore()
	book := booking.NewService(store, sched)
	callRepo := calls.NewMemoryRepo()
	callsSvc := calls.NewService(callRepo, nil)
	auditLog := audit.NewMemoryRepo()

	hub := realtime.NewHub()
	go hub.Run()
	t.Cleanup(hub.Close)

	reportRepo := reporting.NewMemoryRepo()
	h := Handlers{
		Sched:     sched,
		Book:      book,
		Calls:     callsSvc,
		Reporting: reporting.NewService(reportRepo, nil),
		Audit:     audit.NewService(auditLog),
		Hub:       hub,
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u-1", "org-1", "owner")
		c.Request = c.Request.WithContext(ctx)
	})
	r.GET("/availability", h.GetAvailability)
	r.PUT("/availability", h.PutAvailability)
	r.GET("/appointments", h.ListAppointments)
	r.POST("/appointments", h.CreateAppointment)
	r.PATCH("/appointments/:id", h.UpdateAppointment)
	r.GET("/services", h.ListServices)
	r.GET("/calls", h.ListCalls)
	r.GET("/calls/:id", h.GetCall)
	r.GET("/analytics/summary", h.AnalyticsSummary)

	return env{router: r, book: book, store: store, callRepo: callRepo, auditLog: auditLog}
}

func (e env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
}

func TestGetAvailability_SlotsExcludeBooked(t *testing.T) {
	e := newEnv(t)
	if _, err := e.book.Reserve(context.Background(), booking.ReserveRequest{
		OrgID: "org-1", ClientName: "Existing", Start: monday.Add(10 * time.Hour), End: monday.Add(10*time.Hour + 30*time.Minute),
	}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	w := e.do(t, http.MethodGet, "/availability?date=2025-03-03", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Date            string            `json:"date"`
		Slots           []scheduling.Slot `json:"slots"`
		ServiceDuration int               `json:"serviceDuration"`
	}
	decode(t, w, &resp)
	if resp.ServiceDuration != scheduling.DefaultDurationMinutes {
		t.Fatalf("duration %d", resp.ServiceDuration)
	}
	for _, s := range resp.Slots {
		if s.Start.Equal(monday.Add(10 * time.Hour)) {
			t.Fatalf("booked slot offered: %+v", s)
		}
	}
	if len(resp.Slots) == 0 || !resp.Slots[0].Start.Equal(monday.Add(9*time.Hour)) {
		t.Fatalf("unexpected slots: %+v", resp.Slots)
	}
}

func TestGetAvailability_NoDateReturnsRules(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/availability", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp struct {
		Availability []scheduling.AvailabilityRule `json:"availability"`
	}
	decode(t, w, &resp)
	if len(resp.Availability) != 1 || resp.Availability[0].DayOfWeek != 1 {
		t.Fatalf("unexpected rules: %+v", resp.Availability)
	}
}

func TestPutAvailability_ReplacesAndAudits(t *testing.T) {
	e := newEnv(t)

	body := `{"availability": [
		{"dayOfWeek": 1, "startTime": "10:00", "endTime": "16:00", "isActive": true},
		{"dayOfWeek": 2, "startTime": "09:00", "endTime": "12:00", "isActive": true}
	]}`
	w := e.do(t, http.MethodPut, "/availability", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Availability []scheduling.AvailabilityRule `json:"availability"`
	}
	decode(t, w, &resp)
	if len(resp.Availability) != 2 {
		t.Fatalf("expected 2 rules, got %+v", resp.Availability)
	}
	if len(e.auditLog.Events()) != 1 {
		t.Fatalf("expected audit event")
	}

	if w := e.do(t, http.MethodPut, "/availability", `{"availability": [{"dayOfWeek": 9}]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid weekday status %d", w.Code)
	}
}

func TestCreateAppointment_ConflictMapsTo409(t *testing.T) {
	e := newEnv(t)

	body := `{"clientName": "Sarah Mitchell", "clientPhone": "+15552348901", "startTime": "2025-03-03T14:00:00Z"}`
	w := e.do(t, http.MethodPost, "/appointments", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", w.Code, w.Body.String())
	}
	var appt booking.Appointment
	decode(t, w, &appt)
	if appt.Service != scheduling.DefaultOfferingName {
		t.Fatalf("default service not applied: %q", appt.Service)
	}
	if !appt.EndTime.Equal(appt.StartTime.Add(30 * time.Minute)) {
		t.Fatalf("default duration not applied: %+v", appt)
	}

	if w := e.do(t, http.MethodPost, "/appointments", body); w.Code != http.StatusConflict {
		t.Fatalf("conflict status %d", w.Code)
	}
	if e.store.Count("org-1") != 1 {
		t.Fatalf("conflict must not create rows")
	}

	if w := e.do(t, http.MethodPost, "/appointments", `{"clientName": ""}`); w.Code != http.StatusBadRequest {
		t.Fatalf("validation status %d", w.Code)
	}
}

func TestUpdateAppointment_StatusTransition(t *testing.T) {
	e := newEnv(t)
	appt, err := e.book.Reserve(context.Background(), booking.ReserveRequest{
		OrgID: "org-1", ClientName: "Sarah", Start: monday.Add(11 * time.Hour), End: monday.Add(11*time.Hour + 30*time.Minute),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := e.do(t, http.MethodPatch, "/appointments/"+appt.ID, `{"status": "CANCELLED"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status %d: %s", w.Code, w.Body.String())
	}
	var updated booking.Appointment
	decode(t, w, &updated)
	if updated.Status != booking.StatusCancelled {
		t.Fatalf("status %s", updated.Status)
	}

	// Terminal state: reviving is a validation error.
	if w := e.do(t, http.MethodPatch, "/appointments/"+appt.ID, `{"status": "CONFIRMED"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("revive status %d", w.Code)
	}

	if w := e.do(t, http.MethodPatch, "/appointments/nope", `{"status": "CANCELLED"}`); w.Code != http.StatusNotFound {
		t.Fatalf("missing id status %d", w.Code)
	}
}

func TestListCallsAndGetCall(t *testing.T) {
	e := newEnv(t)
	callsSvc := calls.NewService(e.callRepo, nil)
	stored, _, err := callsSvc.HandleStarted(context.Background(), calls.StartedEvent{
		OrgID: "org-1", ExternalCallID: "vapi-1", CallerPhone: "+15550001111",
	})
	if err != nil {
		t.Fatalf("seed call: %v", err)
	}

	w := e.do(t, http.MethodGet, "/calls?status=IN_PROGRESS", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d", w.Code)
	}
	var resp struct {
		Calls []calls.Call `json:"calls"`
		Total int          `json:"total"`
	}
	decode(t, w, &resp)
	if resp.Total != 1 || len(resp.Calls) != 1 {
		t.Fatalf("unexpected list %+v", resp)
	}

	if w := e.do(t, http.MethodGet, "/calls/"+stored.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("get status %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/calls/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing call status %d", w.Code)
	}
}

func TestListServices(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/services", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp struct {
		Services []scheduling.Offering `json:"services"`
	}
	decode(t, w, &resp)
	if len(resp.Services) != 1 || resp.Services[0].Name != "Dental Cleaning" {
		t.Fatalf("unexpected catalog %+v", resp.Services)
	}
}

func TestAnalyticsSummary_DefaultWindow(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/analytics/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var sum reporting.Summary
	decode(t, w, &sum)
	if sum.OrgID != "org-1" {
		t.Fatalf("unexpected summary %+v", sum)
	}

	if w := e.do(t, http.MethodGet, "/analytics/summary?from=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad range status %d", w.Code)
	}
}
