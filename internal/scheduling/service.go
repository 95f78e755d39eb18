package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"receptionist-platform/pkg/logger"
)

// Repository abstracts availability persistence.
//
// ReplaceRules must be atomic: either every weekday row is upserted or
// none are. One row per (org_id, day_of_week) is a storage constraint.
type Repository interface {
	ListRules(ctx context.Context, orgID string) ([]AvailabilityRule, error)
	ReplaceRules(ctx context.Context, orgID string, rules []AvailabilityRule) error

	ListOfferings(ctx context.Context, orgID string) ([]Offering, error)
	FindOffering(ctx context.Context, orgID, name string) (Offering, bool, error)
}

var ErrInvalidRule = errors.New("scheduling: invalid availability rule")

// Service owns the weekly open-hours rules and the offering catalog.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WeeklyRules returns the raw rule set ordered by weekday.
func (s *Service) WeeklyRules(ctx context.Context, orgID string) ([]AvailabilityRule, error) {
	if orgID == "" {
		return nil, ErrInvalidRule
	}
	return s.repo.ListRules(ctx, orgID)
}

// RuleInput is one weekday entry of a bulk replace request.
type RuleInput struct {
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	IsActive  bool   `json:"isActive"`
}

// ReplaceWeeklyRules validates and applies a full weekly replace
// (upsert per weekday). Days not present in the request keep their
// stored rule.
func (s *Service) ReplaceWeeklyRules(ctx context.Context, orgID string, inputs []RuleInput) ([]AvailabilityRule, error) {
	if orgID == "" || len(inputs) == 0 {
		return nil, ErrInvalidRule
	}

	now := s.clock().UTC()
	seen := make(map[int]struct{}, len(inputs))
	rules := make([]AvailabilityRule, 0, len(inputs))
	for _, in := range inputs {
		if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
			return nil, fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidRule, in.DayOfWeek)
		}
		if _, dup := seen[in.DayOfWeek]; dup {
			return nil, fmt.Errorf("%w: duplicate day_of_week %d", ErrInvalidRule, in.DayOfWeek)
		}
		seen[in.DayOfWeek] = struct{}{}

		open, err := parseClock(in.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		clo, err := parseClock(in.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		if in.IsActive && clo <= open {
			return nil, fmt.Errorf("%w: close must be after open on day %d", ErrInvalidRule, in.DayOfWeek)
		}

		rules = append(rules, AvailabilityRule{
			OrgID:     orgID,
			DayOfWeek: in.DayOfWeek,
			OpenTime:  in.StartTime,
			CloseTime: in.EndTime,
			IsActive:  in.IsActive,
			UpdatedAt: now,
		})
	}

	if err := s.repo.ReplaceRules(ctx, orgID, rules); err != nil {
		return nil, err
	}
	return s.repo.ListRules(ctx, orgID)
}

// RuleForDate resolves the active rule governing one calendar date.
// A missing or inactive rule means the business is closed that day.
func (s *Service) RuleForDate(ctx context.Context, orgID string, date time.Time) (AvailabilityRule, bool, error) {
	rules, err := s.repo.ListRules(ctx, orgID)
	if err != nil {
		return AvailabilityRule{}, false, err
	}
	dow := int(date.Weekday())
	for _, r := range rules {
		if r.DayOfWeek == dow && r.IsActive {
			return r, true, nil
		}
	}
	return AvailabilityRule{}, false, nil
}

// ResolveDuration maps a spoken/typed service name to a catalog duration.
// Unknown names, empty names and repository failures all degrade to the
// 30-minute default so the live call path never stalls on the catalog.
func (s *Service) ResolveDuration(ctx context.Context, orgID, service string) (string, int) {
	if service == "" {
		return DefaultOfferingName, DefaultDurationMinutes
	}
	off, ok, err := s.repo.FindOffering(ctx, orgID, service)
	if err != nil {
		logger.From(ctx).Warn("offering lookup failed, using default duration", "org_id", orgID, "service", service, "err", err)
		return service, DefaultDurationMinutes
	}
	if !ok {
		return service, DefaultDurationMinutes
	}
	return off.Name, off.DurationMinutes
}

// Offerings lists the org's catalog.
func (s *Service) Offerings(ctx context.Context, orgID string) ([]Offering, error) {
	if orgID == "" {
		return nil, ErrInvalidRule
	}
	return s.repo.ListOfferings(ctx, orgID)
}
