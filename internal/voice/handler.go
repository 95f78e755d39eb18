package voice

import (
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"receptionist-platform/internal/booking"
	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/notify"
	"receptionist-platform/internal/realtime"
	"receptionist-platform/pkg/logger"
	"receptionist-platform/pkg/utils"
)

// Handler terminates voice-engine webhooks. Event deliveries are
// always acknowledged with 200: the engine retries aggressively on
// anything else, and the lifecycle fold is idempotent so replays are
// harmless anyway.
type Handler struct {
	calls      *calls.Service
	book       *booking.Service
	dispatcher *Dispatcher
	hub        *realtime.Hub
	outbound   *notify.Worker
	rdb        *redis.Client
	secret     string
}

func NewHandler(callsSvc *calls.Service, book *booking.Service, d *Dispatcher, hub *realtime.Hub, outbound *notify.Worker, rdb *redis.Client, secret string) *Handler {
	return &Handler{calls: callsSvc, book: book, dispatcher: d, hub: hub, outbound: outbound, rdb: rdb, secret: secret}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/webhooks/vapi", h.handleWebhook)
	// Older assistant configurations post lifecycle events to
	// dedicated paths with a flat call object.
	r.POST("/webhooks/call-started", h.handleLegacyStarted)
	r.POST("/webhooks/call-ended", h.handleLegacyEnded)
}

func (h *Handler) authorized(c *gin.Context) bool {
	if h.secret == "" {
		return true
	}
	got := c.GetHeader("X-Vapi-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

func (h *Handler) handleWebhook(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	env, err := DecodeEnvelope(body)
	if err != nil {
		logger.FromGin(c).Warn("webhook dropped", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	switch env.Type {
	case EventCallStarted:
		h.onStarted(c, env.Call)
		c.JSON(http.StatusOK, gin.H{"success": true})

	case EventCallEnded:
		h.onEnded(c, env.Call)
		c.JSON(http.StatusOK, gin.H{"success": true})

	case EventToolCall:
		orgID := env.Call.ResolveOrgID()
		result := h.dispatcher.Dispatch(c.Request.Context(), orgID, env.Call.ID, *env.ToolCall)
		h.afterTool(c, orgID, result)
		c.JSON(http.StatusOK, gin.H{"result": result})

	case EventStatusUpdate:
		if orgID := env.Call.ResolveOrgID(); orgID != "" {
			h.hub.Publish(orgID, realtime.EventCallStatus, gin.H{
				"externalCallId": env.Call.ID,
				"status":         env.Call.Status,
				"transcript":     env.Call.Transcript,
			})
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h *Handler) handleLegacyStarted(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}
	var call CallPayload
	if err := c.ShouldBindJSON(&call); err != nil {
		logger.FromGin(c).Warn("legacy started dropped", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	h.onStarted(c, call)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) handleLegacyEnded(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}
	var call CallPayload
	if err := c.ShouldBindJSON(&call); err != nil {
		logger.FromGin(c).Warn("legacy ended dropped", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	h.onEnded(c, call)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) onStarted(c *gin.Context, p CallPayload) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	call, created, err := h.calls.HandleStarted(ctx, calls.StartedEvent{
		OrgID:          p.ResolveOrgID(),
		ExternalCallID: p.ID,
		CallerPhone:    p.CallerPhone(),
		CallerName:     p.Customer.Name,
	})
	if err != nil {
		log.Warn("call.started dropped", "external_call_id", p.ID, "error", err)
		return
	}
	if !created {
		return
	}

	h.hub.Publish(call.OrgID, realtime.EventCallStarted, gin.H{
		"id":          call.ID,
		"callerPhone": call.CallerPhone,
		"callerName":  call.CallerName,
		"startedAt":   call.CreatedAt,
	})

	if h.rdb != nil {
		if _, err := utils.IncrMonthlyUsage(ctx, h.rdb, call.OrgID, time.Now().UTC(), 0); err != nil {
			log.Warn("usage counter increment failed", "org_id", call.OrgID, "error", err)
		}
	}
}

func (h *Handler) onEnded(c *gin.Context, p CallPayload) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	call, err := h.calls.HandleEnded(ctx, calls.EndedEvent{
		OrgID:          p.ResolveOrgID(),
		ExternalCallID: p.ID,
		EndedReason:    p.EndedReason,
		DurationSec:    int(p.Duration + 0.5),
		CallerPhone:    p.CallerPhone(),
		Transcript:     p.ResolvedTranscript(),
		Summary:        p.ResolvedSummary(),
		RecordingURL:   p.ResolvedRecordingURL(),
	})
	if err != nil {
		log.Warn("call.ended dropped", "external_call_id", p.ID, "error", err)
		return
	}

	h.hub.Publish(call.OrgID, realtime.EventCallEnded, gin.H{
		"id":        call.ID,
		"status":    call.Status,
		"duration":  call.DurationSeconds,
		"sentiment": call.Sentiment,
		"summary":   call.Summary,
	})
}

// afterTool runs the post-commit side effects of a successful
// booking: realtime fan-out and the SMS confirmation. Both are
// best-effort and never alter the tool response.
func (h *Handler) afterTool(c *gin.Context, orgID string, result any) {
	res, ok := result.(BookingResult)
	if !ok || !res.Success {
		return
	}
	ctx := c.Request.Context()

	appt, err := h.book.Get(ctx, orgID, res.AppointmentID)
	if err != nil {
		logger.FromGin(c).Warn("booked appointment readback failed", "appointment_id", res.AppointmentID, "error", err)
		return
	}

	h.hub.Publish(orgID, realtime.EventAppointmentCreated, appt)

	if h.outbound != nil && appt.ClientPhone != "" && appt.ClientPhone != "unknown" {
		h.outbound.Enqueue(ctx, notify.Message{
			ToPhone: appt.ClientPhone,
			Body:    notify.ConfirmationBody(appt, ""),
		})
	}
}
