// Package services implements domain business logic and use cases.
package services

import (
	"fmt"
	"time"

	"github.com/ochairo/enforcer/internal/domain/entities"
)

// DefaultDeprecationWindowMonths is how far ahead a deprecation takes effect
// when no effective date is supplied
const DefaultDeprecationWindowMonths = 6

// transitions maps each status to the statuses it may move to.
// DEPRECATED and RETIRED have no outbound edges.
var transitions = map[entities.Status][]entities.Status{
	entities.StatusCreated:           {entities.StatusLimited, entities.StatusGA, entities.StatusRetired},
	entities.StatusLimited:           {entities.StatusLimitedDeprecated, entities.StatusGA, entities.StatusRetired},
	entities.StatusLimitedDeprecated: {entities.StatusLimited, entities.StatusRetired},
	entities.StatusGA:                {entities.StatusDeprecated, entities.StatusRetired},
	entities.StatusDeprecated:        {},
	entities.StatusRetired:           {},
}

var transitionHints = map[entities.Status]string{
	entities.StatusCreated:           "CREATED may progress to LIMITED, GA or RETIRED.",
	entities.StatusLimited:           "LIMITED may progress to LIMITED_DEPRECATED or RETIRED.",
	entities.StatusLimitedDeprecated: "LIMITED_DEPRECATED may progress to LIMITED or RETIRED.",
	entities.StatusGA:                "GA may progress to DEPRECATED or RETIRED.",
	entities.StatusDeprecated:        "DEPRECATED may not progress.",
	entities.StatusRetired:           "RETIRED may not progress.",
}

// TransitionError reports a rejected lifecycle change
type TransitionError struct {
	From   entities.Status
	To     entities.Status
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// CanTransition reports whether from -> to is an edge of the lifecycle
func CanTransition(from, to entities.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal successors of a status
func NextStatuses(from entities.Status) []entities.Status {
	next := transitions[from]
	out := make([]entities.Status, len(next))
	copy(out, next)
	return out
}

// LifecycleConfig holds tunables for the lifecycle state machine
type LifecycleConfig struct {
	DeprecationWindowMonths int
	Now                     func() time.Time
}

// Lifecycle validates artifact status changes and stamps their authorization fields
type Lifecycle struct {
	deprecationWindow int
	now               func() time.Time
}

// NewLifecycle creates a lifecycle state machine
func NewLifecycle(config LifecycleConfig) *Lifecycle {
	window := config.DeprecationWindowMonths
	if window <= 0 {
		window = DefaultDeprecationWindowMonths
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{deprecationWindow: window, now: now}
}

// Apply checks next against previous and fills in authorization dates and
// timestamps on next. Nothing is modified when the change is rejected.
func (l *Lifecycle) Apply(previous, next *entities.Artifact) error {
	if !next.Status.Valid() {
		return &TransitionError{From: previous.Status, To: next.Status, Reason: "unknown status"}
	}

	now := l.now()

	if previous.Status != next.Status {
		if !CanTransition(previous.Status, next.Status) {
			reason, ok := transitionHints[previous.Status]
			if !ok {
				reason = fmt.Sprintf("unknown current status %q", previous.Status)
			}
			return &TransitionError{From: previous.Status, To: next.Status, Reason: reason}
		}

		auth, kind, defaultDate := l.authorizationFor(next, now)
		if auth.By == "" {
			return &TransitionError{
				From:   previous.Status,
				To:     next.Status,
				Reason: "Must provide " + kind + " Authorization",
			}
		}
		if auth.Date == nil {
			auth.Date = timePtr(defaultDate)
		}
		auth.Timestamp = timePtr(now)
	}

	// A changed approver re-stamps its own fields even without a status change.
	// This may overwrite what the transition just stamped.
	restamp(&previous.Approval, &next.Approval, now, now)
	restamp(&previous.Deprecation, &next.Deprecation, now, l.deprecationDate(now))
	restamp(&previous.Retirement, &next.Retirement, now, now)

	return nil
}

func (l *Lifecycle) authorizationFor(a *entities.Artifact, now time.Time) (*entities.Authorization, string, time.Time) {
	switch a.Status {
	case entities.StatusLimited, entities.StatusGA:
		return &a.Approval, "Approval", now
	case entities.StatusLimitedDeprecated, entities.StatusDeprecated:
		return &a.Deprecation, "Deprecation", l.deprecationDate(now)
	default:
		return &a.Retirement, "Retirement", now
	}
}

func (l *Lifecycle) deprecationDate(now time.Time) time.Time {
	return now.AddDate(0, l.deprecationWindow, 0)
}

func restamp(previous, next *entities.Authorization, now, defaultDate time.Time) {
	if next.By == "" || next.By == previous.By {
		return
	}
	next.Timestamp = timePtr(now)
	if next.Date == nil {
		next.Date = timePtr(defaultDate)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
