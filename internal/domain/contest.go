package domain

import "time"

// ContestStatus is the informational lifecycle status advanced by the sweep.
type ContestStatus string

const (
	StatusCreated    ContestStatus = "Created"
	StatusInProgress ContestStatus = "In Progress"
	StatusFinished   ContestStatus = "Finished"
	StatusCancelled  ContestStatus = "Cancelled"
)

// Valid reports whether s is a known status.
func (s ContestStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusInProgress, StatusFinished, StatusCancelled:
		return true
	}
	return false
}

// Contest is a timed exam over a set of linked questions.
type Contest struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	DurationMinutes int           `json:"duration"`
	Status          ContestStatus `json:"status"`
	CreatedBy       string        `json:"user_created"`
	CreatedAt       time.Time     `json:"created_date"`
	UpdatedAt       time.Time     `json:"last_update"`
}

// Duration is the exam length. Without an explicit duration the whole
// start..end span is used.
func (c Contest) Duration() time.Duration {
	if c.DurationMinutes > 0 {
		return time.Duration(c.DurationMinutes) * time.Minute
	}
	return c.EndTime.Sub(c.StartTime)
}

// Cancelled reports whether an admin cancelled the contest.
func (c Contest) Cancelled() bool {
	return c.Status == StatusCancelled
}

// Validate checks the time invariants.
func (c Contest) Validate() error {
	if c.Name == "" {
		return Invalidf("contest name is required")
	}
	if c.StartTime.IsZero() || c.EndTime.IsZero() {
		return Invalidf("contest start and end time are required")
	}
	if !c.EndTime.After(c.StartTime) {
		return Invalidf("end_time must be after start_time")
	}
	if c.DurationMinutes < 0 {
		return Invalidf("duration must be positive")
	}
	if c.Status != "" && !c.Status.Valid() {
		return Invalidf("unknown contest status")
	}
	return nil
}
