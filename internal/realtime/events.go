package realtime

// Event types pushed to dashboard clients.
const (
	EventAppointmentCreated = "appointment:created"
	EventAppointmentUpdated = "appointment:updated"
	EventCallStarted        = "call:started"
	EventCallEnded          = "call:ended"
	EventCallStatus         = "call:status"
)
