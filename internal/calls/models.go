package calls

import "time"

// Call represents one inbound phone conversation handled by the voice
// agent, tenant-scoped by OrgID.
//
// Idempotency invariant: ExternalCallID is the voice engine's call id
// and is unique across all rows. At most one Call exists per external
// call no matter how often its webhook events are redelivered.
type Call struct {
	ID    string `json:"id" db:"id"`
	OrgID string `json:"org_id" db:"org_id"`

	ExternalCallID string `json:"external_call_id" db:"external_call_id"`

	CallerPhone string `json:"caller_phone" db:"caller_phone"`
	CallerName  string `json:"caller_name,omitempty" db:"caller_name"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is filled when the call ends.
	DurationSeconds int `json:"duration" db:"duration_seconds"`

	Transcript   string    `json:"transcript,omitempty" db:"transcript"`
	Summary      string    `json:"summary,omitempty" db:"summary"`
	Sentiment    Sentiment `json:"sentiment" db:"sentiment"`
	RecordingURL string    `json:"recording_url,omitempty" db:"recording_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusInProgress CallStatus = "IN_PROGRESS"
	CallStatusCompleted  CallStatus = "COMPLETED"
	CallStatusMissed     CallStatus = "MISSED"
)

// Terminal reports whether a status ends the call lifecycle.
func Terminal(s CallStatus) bool {
	return s == CallStatusCompleted || s == CallStatusMissed
}

type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentUnknown  Sentiment = "UNKNOWN"
)

// ParseSentiment normalizes classifier output, mapping anything
// unrecognized to UNKNOWN.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return Sentiment(s)
	default:
		return SentimentUnknown
	}
}
