package rules

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shiftbreak/restguard-api/pkg/models"
)

// DefaultBudgetHours is the daily rest budget used when none is configured
const DefaultBudgetHours = 2.0

// DayStartFunc maps an instant to the start of the calendar day containing it.
// The engine itself is timezone-agnostic; the caller picks the reference frame.
type DayStartFunc func(t time.Time) time.Time

// MidnightIn returns a DayStartFunc for local midnight in the given location
func MidnightIn(loc *time.Location) DayStartFunc {
	return func(t time.Time) time.Time {
		y, m, d := t.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// Validator decides whether a candidate interval is admissible for a worker
type Validator struct {
	// BudgetHours is the maximum total rest attributable to one calendar day
	BudgetHours float64
	// DayStart buckets instants into calendar days
	DayStart DayStartFunc
	// RejectRestOverlap additionally rejects rest candidates that overlap
	// existing rest intervals. Off by default.
	RejectRestOverlap bool
}

// NewValidator creates a validator with the given daily budget and day function
func NewValidator(budgetHours float64, dayStart DayStartFunc) *Validator {
	if budgetHours <= 0 {
		budgetHours = DefaultBudgetHours
	}
	if dayStart == nil {
		dayStart = MidnightIn(time.UTC)
	}
	return &Validator{
		BudgetHours: budgetHours,
		DayStart:    dayStart,
	}
}

// NewValidatorFromEnv builds a validator from environment configuration:
// DAILY_REST_BUDGET_HOURS (default 2.0), SCHEDULE_TZ (default UTC) and
// REJECT_REST_OVERLAP (default off).
func NewValidatorFromEnv() *Validator {
	budget := DefaultBudgetHours
	if raw := os.Getenv("DAILY_REST_BUDGET_HOURS"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			log.Fatalf("invalid DAILY_REST_BUDGET_HOURS: %q", raw)
		}
		budget = parsed
	}

	loc := time.UTC
	if tz := os.Getenv("SCHEDULE_TZ"); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			log.Fatalf("invalid SCHEDULE_TZ: %q", tz)
		}
		loc = parsed
	}

	v := NewValidator(budget, MidnightIn(loc))
	if raw := os.Getenv("REJECT_REST_OVERLAP"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err == nil {
			v.RejectRestOverlap = enabled
		}
	}
	return v
}

// Overlaps checks if two half-open intervals [Start, End) intersect.
// Back-to-back intervals sharing a boundary instant do not overlap.
func Overlaps(a, b models.Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// DailyRestHours sums the rest time falling inside [dayStart, dayEnd), in
// hours. Each interval is clipped to the day, so an interval crossing
// midnight contributes to every day it touches and nothing to the others.
// The candidate, if non-nil, is counted; a record whose ID equals excludeID
// is skipped so an edited record never counts against itself.
func DailyRestHours(dayStart, dayEnd time.Time, rest []models.Interval, candidate *models.Interval, excludeID string) float64 {
	var total float64
	for _, iv := range rest {
		if excludeID != "" && iv.ID == excludeID {
			continue
		}
		total += clippedHours(iv, dayStart, dayEnd)
	}
	if candidate != nil {
		total += clippedHours(*candidate, dayStart, dayEnd)
	}
	return total
}

// clippedHours returns the portion of iv inside [dayStart, dayEnd) in hours
func clippedHours(iv models.Interval, dayStart, dayEnd time.Time) float64 {
	start := iv.Start
	if start.Before(dayStart) {
		start = dayStart
	}
	end := iv.End
	if end.After(dayEnd) {
		end = dayEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}

// nextDayStart steps from one day's start to the next. The 26h probe lands
// inside the following day for any legal day length (23-25h under DST).
func (v *Validator) nextDayStart(dayStart time.Time) time.Time {
	return v.DayStart(dayStart.Add(26 * time.Hour))
}

// ValidateRest checks a rest candidate against the worker's schedule: no
// overlap with that worker's work intervals, and the daily rest budget holds
// for every day the candidate touches. All checks run; every violation found
// is reported.
func (v *Validator) ValidateRest(snapshot models.WorkerScheduleSnapshot, candidate models.Candidate) models.ValidationResult {
	if !candidate.Interval.Valid() {
		return invalidIntervalResult()
	}

	var violations []models.Violation

	for _, w := range snapshot.Work {
		if Overlaps(candidate.Interval, w) {
			conflict := w
			violations = append(violations, models.Violation{
				Code:        models.ViolationOverlap,
				Reason:      fmt.Sprintf("rest interval overlaps a work interval for worker %s", snapshot.WorkerID),
				Conflicting: &conflict,
			})
		}
	}

	if v.RejectRestOverlap {
		for _, r := range snapshot.Rest {
			if candidate.ExcludeID != "" && r.ID == candidate.ExcludeID {
				continue
			}
			if Overlaps(candidate.Interval, r) {
				conflict := r
				violations = append(violations, models.Violation{
					Code:        models.ViolationOverlap,
					Reason:      fmt.Sprintf("rest interval overlaps another rest interval for worker %s", snapshot.WorkerID),
					Conflicting: &conflict,
				})
			}
		}
	}

	// Check the budget on every day the candidate touches, start day
	// through end day inclusive.
	for day := v.DayStart(candidate.Interval.Start); day.Before(candidate.Interval.End); day = v.nextDayStart(day) {
		dayEnd := v.nextDayStart(day)
		total := DailyRestHours(day, dayEnd, snapshot.Rest, &candidate.Interval, candidate.ExcludeID)
		if total > v.BudgetHours {
			violations = append(violations, models.Violation{
				Code:       models.ViolationDailyBudgetExceeded,
				Reason:     fmt.Sprintf("daily rest budget of %.1fh exceeded", v.BudgetHours),
				Day:        day.Format("2006-01-02"),
				TotalHours: total,
			})
		}
	}

	return models.ValidationResult{
		Accepted:   len(violations) == 0,
		Violations: violations,
	}
}

// ValidateWork checks a work candidate: it must not overlap any of the
// worker's recorded rest intervals. No daily budget applies to work.
func (v *Validator) ValidateWork(snapshot models.WorkerScheduleSnapshot, candidate models.Candidate) models.ValidationResult {
	if !candidate.Interval.Valid() {
		return invalidIntervalResult()
	}

	var violations []models.Violation
	for _, r := range snapshot.Rest {
		if Overlaps(candidate.Interval, r) {
			conflict := r
			violations = append(violations, models.Violation{
				Code:        models.ViolationOverlap,
				Reason:      fmt.Sprintf("work interval overlaps a rest interval for worker %s", snapshot.WorkerID),
				Conflicting: &conflict,
			})
		}
	}

	return models.ValidationResult{
		Accepted:   len(violations) == 0,
		Violations: violations,
	}
}

func invalidIntervalResult() models.ValidationResult {
	return models.ValidationResult{
		Accepted: false,
		Violations: []models.Violation{{
			Code:   models.ViolationInvalidInterval,
			Reason: "interval end must be strictly after start",
		}},
	}
}
