package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"receptionist-platform/internal/booking"
	"receptionist-platform/internal/calls"
	"receptionist-platform/pkg/logger"
	"receptionist-platform/pkg/utils"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository reads committed rows. Implementations must filter by org.
type Repository interface {
	ListCalls(ctx context.Context, orgID string, from, to time.Time) ([]calls.Call, error)
	ListAppointments(ctx context.Context, orgID string, from, to time.Time) ([]booking.Appointment, error)
}

type Service struct {
	repo  Repository
	rdb   *redis.Client
	clock func() time.Time
}

func NewService(repo Repository, rdb *redis.Client) *Service {
	return &Service{repo: repo, rdb: rdb, clock: time.Now}
}

func (s *Service) OrgSummary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.OrgID == "" {
		return Summary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}

	callRows, err := s.repo.ListCalls(ctx, req.OrgID, req.Range.From, req.Range.To)
	if err != nil {
		return Summary{}, err
	}
	apptRows, err := s.repo.ListAppointments(ctx, req.OrgID, req.Range.From, req.Range.To)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{OrgID: req.OrgID, Range: req.Range}
	for _, c := range callRows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusMissed:
			out.MissedCalls++
		case calls.CallStatusInProgress:
			out.InProgressCalls++
		}
		switch c.Sentiment {
		case calls.SentimentPositive:
			out.Sentiment.Positive++
		case calls.SentimentNeutral:
			out.Sentiment.Neutral++
		case calls.SentimentNegative:
			out.Sentiment.Negative++
		default:
			out.Sentiment.Unknown++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}

	for _, a := range apptRows {
		out.TotalAppointments++
		switch a.Status {
		case booking.StatusPending:
			out.PendingAppointments++
		case booking.StatusConfirmed:
			out.ConfirmedAppointments++
		case booking.StatusCancelled:
			out.CancelledAppointments++
		case booking.StatusCompleted:
			out.CompletedAppointments++
		}
	}
	if out.CompletedCalls > 0 {
		out.BookingRate = out.TotalAppointments * 100 / out.CompletedCalls
	}

	// The usage counter is advisory; a cold cache reads as zero.
	if s.rdb != nil {
		usage, err := utils.GetMonthlyUsage(ctx, s.rdb, req.OrgID, s.clock().UTC())
		if err != nil {
			logger.From(ctx).Warn("usage counter read failed", "org_id", req.OrgID, "error", err)
		} else {
			out.MonthlyUsage = usage
		}
	}

	return out, nil
}
