package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"receptionist-platform/pkg/logger"

	"github.com/google/uuid"
)

// Service is the Call Lifecycle State Machine: the sole writer of Call
// status. It folds asynchronous, possibly duplicated, possibly
// reordered webhook events into durable Call rows keyed by the voice
// engine's call id.
type Service struct {
	repo      Repository
	sentiment SentimentClassifier
	clock     func() time.Time
}

// Repository abstracts call persistence. The external_call_id
// uniqueness constraint lives here: concurrent writers for the same key
// must race to "exactly one creates, others update the same row".
type Repository interface {
	// CreateIfAbsent inserts c unless a row with its ExternalCallID
	// already exists; it returns the stored row and whether this call
	// created it.
	CreateIfAbsent(ctx context.Context, c Call) (Call, bool, error)

	// UpsertEnded inserts c as a terminal row, or overwrites the
	// terminal fields of the existing row with the same ExternalCallID.
	UpsertEnded(ctx context.Context, c Call) (Call, error)

	GetByExternalID(ctx context.Context, externalCallID string) (Call, bool, error)
	Get(ctx context.Context, orgID, id string) (Call, error)
	List(ctx context.Context, orgID string, f ListFilter) ([]Call, int, error)
}

// SentimentClassifier derives sentiment from a transcript. Failures are
// tolerated: the state machine falls back to UNKNOWN and proceeds.
type SentimentClassifier interface {
	Classify(ctx context.Context, transcript string) (Sentiment, error)
}

var (
	ErrMalformedEvent = errors.New("calls: malformed event")
	ErrNotFound       = errors.New("calls: not found")
)

// missedMaxDuration: a customer hangup shorter than this counts as a
// missed call rather than a completed conversation.
const missedMaxDuration = 5

// sentimentTimeout bounds the classifier so a slow collaborator can
// never stall webhook processing.
const sentimentTimeout = 3 * time.Second

func NewService(repo Repository, sentiment SentimentClassifier) *Service {
	return &Service{repo: repo, sentiment: sentiment, clock: time.Now}
}

// StartedEvent is the payload of a call.started webhook after envelope
// decoding.
type StartedEvent struct {
	OrgID          string
	ExternalCallID string
	CallerPhone    string
	CallerName     string
}

// HandleStarted upsert-creates the Call row. Duplicate deliveries are
// no-ops: a second row is never created for the same external id.
// It returns the stored row and whether this event created it.
func (s *Service) HandleStarted(ctx context.Context, ev StartedEvent) (Call, bool, error) {
	if ev.OrgID == "" || ev.ExternalCallID == "" {
		return Call{}, false, fmt.Errorf("%w: org_id and external call id required", ErrMalformedEvent)
	}

	now := s.clock().UTC()
	phone := strings.TrimSpace(ev.CallerPhone)
	if phone == "" {
		phone = "unknown"
	}

	c := Call{
		ID:             uuid.NewString(),
		OrgID:          ev.OrgID,
		ExternalCallID: ev.ExternalCallID,
		CallerPhone:    phone,
		CallerName:     strings.TrimSpace(ev.CallerName),
		Status:         CallStatusInProgress,
		Sentiment:      SentimentUnknown,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.repo.CreateIfAbsent(ctx, c)
}

// EndedEvent is the payload of a call.ended webhook.
type EndedEvent struct {
	OrgID          string
	ExternalCallID string
	EndedReason    string
	DurationSec    int
	CallerPhone    string
	Transcript     string
	Summary        string
	RecordingURL   string
}

// HandleEnded finalizes the Call. If no row exists yet (ended arrived
// before started, or started was never delivered), a terminal row is
// created directly. Redelivery overwrites the same row with the same
// values; no duplicate Call is created on replay.
func (s *Service) HandleEnded(ctx context.Context, ev EndedEvent) (Call, error) {
	if ev.OrgID == "" || ev.ExternalCallID == "" {
		return Call{}, fmt.Errorf("%w: org_id and external call id required", ErrMalformedEvent)
	}

	now := s.clock().UTC()
	phone := strings.TrimSpace(ev.CallerPhone)
	if phone == "" {
		phone = "unknown"
	}

	c := Call{
		ID:              uuid.NewString(),
		OrgID:           ev.OrgID,
		ExternalCallID:  ev.ExternalCallID,
		CallerPhone:     phone,
		Status:          Classify(ev.EndedReason, ev.DurationSec),
		DurationSeconds: ev.DurationSec,
		Transcript:      ev.Transcript,
		Summary:         ev.Summary,
		Sentiment:       s.classifySentiment(ctx, ev.Transcript),
		RecordingURL:    ev.RecordingURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return s.repo.UpsertEnded(ctx, c)
}

// Classify maps the ended reason and duration onto the terminal status.
func Classify(endedReason string, durationSec int) CallStatus {
	if endedReason == "customer-ended-call" && durationSec < missedMaxDuration {
		return CallStatusMissed
	}
	return CallStatusCompleted
}

// classifySentiment never fails: absent transcripts, a missing
// classifier and classifier errors all yield UNKNOWN.
func (s *Service) classifySentiment(ctx context.Context, transcript string) Sentiment {
	if s.sentiment == nil || strings.TrimSpace(transcript) == "" {
		return SentimentUnknown
	}
	cctx, cancel := context.WithTimeout(ctx, sentimentTimeout)
	defer cancel()

	out, err := s.sentiment.Classify(cctx, transcript)
	if err != nil {
		logger.From(ctx).Warn("sentiment classification failed", "err", err)
		return SentimentUnknown
	}
	return ParseSentiment(string(out))
}

// ByExternalID resolves the call owning a live conversation. Used by
// the tool-call dispatcher for phone fallback and back-references.
func (s *Service) ByExternalID(ctx context.Context, externalCallID string) (Call, bool, error) {
	if externalCallID == "" {
		return Call{}, false, nil
	}
	return s.repo.GetByExternalID(ctx, externalCallID)
}

// Get fetches a single call scoped to the org.
func (s *Service) Get(ctx context.Context, orgID, id string) (Call, error) {
	if orgID == "" || id == "" {
		return Call{}, fmt.Errorf("%w: org_id and id required", ErrMalformedEvent)
	}
	return s.repo.Get(ctx, orgID, id)
}

// ListFilter narrows call listings.
type ListFilter struct {
	Status    CallStatus
	Sentiment Sentiment
	From      time.Time
	To        time.Time
	Page      int
	Limit     int
}

func (f ListFilter) withDefaults() ListFilter {
	out := f
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.Limit <= 0 || out.Limit > 100 {
		out.Limit = 20
	}
	return out
}

// List returns calls ordered newest-first plus the total count.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]Call, int, error) {
	if orgID == "" {
		return nil, 0, fmt.Errorf("%w: org_id required", ErrMalformedEvent)
	}
	return s.repo.List(ctx, orgID, f.withDefaults())
}
