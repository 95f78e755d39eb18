// Package httpapi exposes the dashboard REST surface.
// Keep handlers thin: parse/validate input, call internal services,
// map errors, return JSON.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"receptionist-platform/internal/audit"
	"receptionist-platform/internal/auth"
	"receptionist-platform/internal/booking"
	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/realtime"
	"receptionist-platform/internal/reporting"
	"receptionist-platform/internal/scheduling"
	"receptionist-platform/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Auth      *auth.Manager
	Sched     *scheduling.Service
	Book      *booking.Service
	Calls     *calls.Service
	Reporting *reporting.Service
	Audit     *audit.Service
	Hub       *realtime.Hub
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Role   string `json:"role"`
}

// Login issues an access token.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.OrgID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, org_id, role required"})
		return
	}
	token, err := h.Auth.Issue(time.Now(), req.UserID, req.OrgID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// --- Availability ---

// GetAvailability answers two shapes. With ?date= it computes open
// slots for that day; without it, it returns the raw weekly rules.
func (h Handlers) GetAvailability(c *gin.Context) {
	orgID := mustOrgID(c)
	if orgID == "" {
		return
	}

	dateParam := c.Query("date")
	if dateParam == "" {
		rules, err := h.Sched.WeeklyRules(c.Request.Context(), orgID)
		if err != nil {
			internalError(c, "availability lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"availability": rules})
		return
	}

	date, err := time.ParseInLocation("2006-01-02", dateParam, time.UTC)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	ctx := c.Request.Context()
	_, duration := h.Sched.ResolveDuration(ctx, orgID, c.Query("service"))

	rule, open, err := h.Sched.RuleForDate(ctx, orgID, date)
	if err != nil {
		internalError(c, "availability lookup failed", err)
		return
	}
	slots := []scheduling.Slot{}
	if open {
		candidates, err := scheduling.GenerateSlots(rule, date, duration)
		if err != nil {
			internalError(c, "slot generation failed", err)
			return
		}
		busy, err := h.Book.BusyIntervals(ctx, orgID, date)
		if err != nil {
			internalError(c, "busy interval lookup failed", err)
			return
		}
		slots = scheduling.AvailableSlots(candidates, busy)
	}
	c.JSON(http.StatusOK, gin.H{
		"date":            dateParam,
		"slots":           slots,
		"serviceDuration": duration,
	})
}

type putAvailabilityRequest struct {
	Availability []scheduling.RuleInput `json:"availability"`
}

// PutAvailability performs the full weekly replace (upsert per
// weekday). RBAC: owner or super_admin.
func (h Handlers) PutAvailability(c *gin.Context) {
	orgID := mustOrgID(c)
	if orgID == "" {
		return
	}
	var req putAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.Availability) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "availability required"})
		return
	}

	rules, err := h.Sched.ReplaceWeeklyRules(c.Request.Context(), orgID, req.Availability)
	if err != nil {
		if errors.Is(err, scheduling.ErrInvalidRule) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		internalError(c, "availability replace failed", err)
		return
	}

	h.auditReplace(c, orgID)
	c.JSON(http.StatusOK, gin.H{"availability": rules})
}

// ListServices returns the org's bookable service catalog.
func (h Handlers) ListServices(c *gin.Context) {
	orgID := mustOrgID(c)
	if orgID == "" {
		return
	}
	offerings, err := h.Sched.Offerings(c.Request.Context(), orgID)
	if err != nil {
		internalError(c, "service catalog lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": offerings})
}

// --- Appointments ---

type createAppointmentRequest struct {
	ClientName  string `json:"clientName"`
	ClientPhone string `json:"clientPhone"`
	ClientEmail string `json:"clientEmail"`
	Service     string `json:"service"`
	StartTime   string `json:"startTime"` // RFC 3339
	EndTime     string `json:"endTime"`   // optional, defaults to service duration
	Notes       string `json:"notes"`
}

func (h Handlers) CreateAppointment(c *gin.Context) {
	orgID := mustOrgID(c)
	if orgID == "" {
		return
	}
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "startTime must be RFC 3339"})
		return
	}
	var end time.Time
	if req.EndTime != "" {
		end, err = time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "endTime must be RFC 3339"})
			return
		}
	} else {
		_, duration := h.Sched.ResolveDuration(ctx, orgID, req.Service)
		end = start.Add(time.Duration(duration) * time.Minute)
	}

	appt, err := h.Book.Reserve(ctx, booking.ReserveRequest{
		OrgID:       orgID,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		ClientEmail: req.ClientEmail,
		Service:     req.Service,
		Start:       start,
		End:         end,
		Notes:       req.Notes,
	})
	if err != nil {
		bookingError(c, err)
		return
	}

	h.Hub.Publish(orgID, realtime.EventAppointmentCreated, appt)
	h.auditAppointment(c, audit.EventTypeAppointmentCreated, appt, "appointment created")
	c.JSON(http.StatusCreated, appt)
}

type updateAppointmentRequest struct {
	Status    *string `json:"status"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
	Notes     *string `json:"notes"`
}

func (h Handlers) UpdateAppointment(c *gin.Context) {
	orgID := mustOrgID(c)
	if orgID == "" {
		return
	}
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}
	var req updateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var upd booking.UpdateRequest
	if req.Status != nil {
		st := booking.AppointmentStatus(*req.Status)
		upd.Status = &st
	}
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "startTime must be RFC 3339"})
			return
		}
		upd.Start = &t
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "endTime must be RFC 3339"})
			return
		}
		upd.End = &t
	}
	upd.Notes = req.Notes

	appt, err := h.Book.Update(c.Request.Context(), orgID, id, upd)
	if err != nil {
		bookingError(c, err)
		return
	}

	h.Hub.Publish(orgID, realtime.EventAppointmentUpdated, appt)
	h.auditAppointment(c, audit.EventTypeAppointmentUpdated, appt, "appointment updated")
	c.JSON(http.StatusOK, appt)
}

func (h Handlers) ListAppointments(c *gin.Context) {
	orgID := mustOrgID(c)
	if orgID == "" {
		return
	}

	f := booking.ListFilter{
		Status: booking.AppointmentStatus(c.Query("status")),
		Page:   intQuery(c, "page"),
		Limit:  intQuery(c, "limit"),
	}
	var ok bool
	if f.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if f.To, ok = timeQuery(c, "to"); !ok {
		return
	}

	appts, total, err := h.Book.List(c.Request.Context(), orgID, f)
	if err != nil {
		bookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts, "total": total})
}

// --- Calls ---

func (h Handlers) ListCalls(c *gin.Context) {
	orgID := mustOrgID(c)
	if orgID == "" {
		return
	}

	f := calls.ListFilter{
		Status:    calls.CallStatus(c.Query("status")),
		Sentiment: calls.Sentiment(c.Query("sentiment")),
		Page:      intQuery(c, "page"),
		Limit:     intQuery(c, "limit"),
	}
	var ok bool
	if f.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if f.To, ok = timeQuery(c, "to"); !ok {
		return
	}

	rows, total, err := h.Calls.List(c.Request.Context(), orgID, f)
	if err != nil {
		internalError(c, "call listing failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows, "total": total})
}

func (h Handlers) GetCall(c *gin.Context) {
	orgID := mustOrgID(c)
	if orgID == "" {
		return
	}
	call, err := h.Calls.Get(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		internalError(c, "call lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, call)
}

// --- Analytics ---

func (h Handlers) AnalyticsSummary(c *gin.Context) {
	orgID := mustOrgID(c)
	if orgID == "" {
		return
	}

	// Default window: the last 30 days.
	now := time.Now().UTC()
	r := reporting.Range{From: now.AddDate(0, 0, -30), To: now}
	var ok bool
	if from, found := c.GetQuery("from"); found {
		if r.From, ok = parseTimeParam(c, "from", from); !ok {
			return
		}
	}
	if to, found := c.GetQuery("to"); found {
		if r.To, ok = parseTimeParam(c, "to", to); !ok {
			return
		}
	}

	sum, err := h.Reporting.OrgSummary(c.Request.Context(), reporting.SummaryRequest{OrgID: orgID, Range: r})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid reporting range"})
			return
		}
		internalError(c, "summary failed", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- helpers ---

func mustOrgID(c *gin.Context) string {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return ""
	}
	return orgID
}

func bookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "time slot is no longer available"})
	case errors.Is(err, booking.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
	default:
		internalError(c, "booking operation failed", err)
	}
}

func internalError(c *gin.Context, msg string, err error) {
	logger.FromGin(c).Error(msg, "error", err)
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
}

func intQuery(c *gin.Context, name string) int {
	v := c.Query(name)
	if v == "" {
		return 0
	}
	var n int
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func timeQuery(c *gin.Context, name string) (time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, true
	}
	return parseTimeParam(c, name, v)
}

// parseTimeParam accepts RFC 3339 or a bare date.
func parseTimeParam(c *gin.Context, name, v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02", v, time.UTC); err == nil {
		return t, true
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be RFC 3339 or YYYY-MM-DD"})
	return time.Time{}, false
}

func (h Handlers) auditAppointment(c *gin.Context, typ audit.EventType, appt booking.Appointment, msg string) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	userID, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	if err := h.Audit.LogAppointmentChange(ctx, typ, appt.OrgID, userID, role, c.ClientIP(), appt.ID, appt.CallID, msg); err != nil {
		logger.FromGin(c).Warn("audit append failed", "error", err)
	}
}

func (h Handlers) auditReplace(c *gin.Context, orgID string) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	userID, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	if err := h.Audit.LogAvailabilityReplace(ctx, orgID, userID, role, c.ClientIP(), ""); err != nil {
		logger.FromGin(c).Warn("audit append failed", "error", err)
	}
}
