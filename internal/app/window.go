package app

import (
	"time"

	"contest-service/internal/domain"
)

// Policy holds the fixed offsets of the contest timeline.
type Policy struct {
	// RegistrationLead closes registration this long before the start.
	RegistrationLead time.Duration
	// SubmissionGrace extends the personal deadline past entry + duration.
	SubmissionGrace time.Duration
}

// DefaultPolicy is a 15 minute registration lead and a 2 minute grace period.
func DefaultPolicy() Policy {
	return Policy{
		RegistrationLead: 15 * time.Minute,
		SubmissionGrace:  2 * time.Minute,
	}
}

// Window tells which lifecycle transitions are allowed at a given instant.
type Window struct {
	RegistrationOpen bool
	ExamOpen         bool
	AnswerOpen       bool
	SubmissionOpen   bool
	// Deadline is entry + duration + grace; zero when the user has not entered.
	Deadline time.Time
}

// ContestWindow evaluates every time based gate for a contest and, optionally,
// the caller's participation. Bounds are inclusive.
func ContestWindow(c domain.Contest, p *domain.Participation, now time.Time, policy Policy) Window {
	var w Window
	if c.Cancelled() {
		return w
	}

	start := c.StartTime
	w.RegistrationOpen = now.Before(start.Add(-policy.RegistrationLead))
	w.ExamOpen = within(now, start, start.Add(c.Duration()))
	w.AnswerOpen = within(now, start, c.EndTime)

	if p != nil && p.StartedAt != nil {
		w.Deadline = p.StartedAt.Add(c.Duration() + policy.SubmissionGrace)
		w.SubmissionOpen = !now.After(w.Deadline)
	}
	return w
}

func within(now, from, to time.Time) bool {
	return !now.Before(from) && !now.After(to)
}
