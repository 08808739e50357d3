package models

import "time"

// Category tags an interval as rest or work time
type Category string

const (
	CategoryRest Category = "rest"
	CategoryWork Category = "work"
)

// Interval represents a half-open time span [Start, End) on a worker's schedule
type Interval struct {
	ID       string    `json:"id,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Category Category  `json:"category"`
}

// Valid reports whether the interval is well-formed (Start strictly before End)
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Hours returns the interval's duration in hours
func (iv Interval) Hours() float64 {
	return iv.End.Sub(iv.Start).Hours()
}

// WorkerScheduleSnapshot is one worker's recorded intervals at validation time.
// It carries exactly one worker's data; cross-worker sets cannot be expressed.
type WorkerScheduleSnapshot struct {
	WorkerID string     `json:"worker_id"`
	Rest     []Interval `json:"rest_intervals"`
	Work     []Interval `json:"work_intervals"`
}

// Candidate is the interval under evaluation. ExcludeID names an existing
// record being edited so it does not count against itself during re-validation.
type Candidate struct {
	Interval  Interval `json:"interval"`
	ExcludeID string   `json:"exclude_id,omitempty"`
}

// Violation codes
const (
	ViolationInvalidInterval     = "invalid_interval"
	ViolationOverlap             = "overlap"
	ViolationDailyBudgetExceeded = "daily_budget_exceeded"
)

// Violation is one independently reportable reason a candidate is inadmissible
type Violation struct {
	Code        string    `json:"code"`
	Reason      string    `json:"reason,omitempty"`
	Conflicting *Interval `json:"conflicting_interval,omitempty"`
	Day         string    `json:"day,omitempty"`
	TotalHours  float64   `json:"total_hours,omitempty"`
}

// ValidationResult aggregates every violation found in one validation call
type ValidationResult struct {
	Accepted   bool        `json:"accepted"`
	Violations []Violation `json:"violations"`
}

// CheckInput is the request body for the stateless check endpoints
type CheckInput struct {
	Snapshot  WorkerScheduleSnapshot `json:"snapshot"`
	Candidate Candidate              `json:"candidate"`
}

// SubmitInput is the request body for submitting a candidate interval
type SubmitInput struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

// ScheduleResponse lists a worker's recorded intervals
type ScheduleResponse struct {
	WorkerID string     `json:"worker_id"`
	Rest     []Interval `json:"rest_intervals"`
	Work     []Interval `json:"work_intervals"`
}
