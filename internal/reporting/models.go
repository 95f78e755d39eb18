// Package reporting aggregates committed call and appointment state
// for the dashboard. It is strictly read-only: summaries are computed
// from rows other packages have already written.
package reporting

import "time"

// Range is a half-open reporting window [From, To).
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type SummaryRequest struct {
	OrgID string
	Range Range
}

// SentimentBreakdown counts terminal calls by classified sentiment.
type SentimentBreakdown struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
	Unknown  int `json:"unknown"`
}

// Summary is the dashboard overview for one org and window.
type Summary struct {
	OrgID string `json:"orgId"`
	Range Range  `json:"range"`

	TotalCalls             int `json:"totalCalls"`
	CompletedCalls         int `json:"completedCalls"`
	MissedCalls            int `json:"missedCalls"`
	InProgressCalls        int `json:"inProgressCalls"`
	TotalDurationSeconds   int `json:"totalDurationSeconds"`
	AverageDurationSeconds int `json:"averageDurationSeconds"`

	Sentiment SentimentBreakdown `json:"sentiment"`

	TotalAppointments     int `json:"totalAppointments"`
	PendingAppointments   int `json:"pendingAppointments"`
	ConfirmedAppointments int `json:"confirmedAppointments"`
	CancelledAppointments int `json:"cancelledAppointments"`
	CompletedAppointments int `json:"completedAppointments"`

	// BookingRate is appointments created per completed call, as a
	// percentage. Zero when there are no completed calls.
	BookingRate int `json:"bookingRate"`

	// MonthlyUsage is the cached call counter for the current month.
	MonthlyUsage int64 `json:"monthlyUsage"`
}
