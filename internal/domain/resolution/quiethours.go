package resolution

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseClock parses an "HH:MM" wall-clock string into minutes since
// midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time: %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in clock time: %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in clock time: %q", s)
	}
	return h*60 + m, nil
}

// InWindow reports whether the given instant falls inside the quiet-hours
// window, evaluated on the wall clock of the window's timezone. The window
// is [start, end); when it crosses midnight the two halves are tested
// separately, and start == end means always quiet.
func (q QuietHours) InWindow(at time.Time) (bool, error) {
	if !q.Enabled {
		return false, nil
	}

	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return false, fmt.Errorf("loading quiet-hours timezone %q: %w", q.Timezone, err)
	}

	start, err := parseClock(q.StartTime)
	if err != nil {
		return false, err
	}
	end, err := parseClock(q.EndTime)
	if err != nil {
		return false, err
	}

	local := at.In(loc)
	now := local.Hour()*60 + local.Minute()

	switch {
	case start == end:
		return true, nil
	case start < end:
		return now >= start && now < end, nil
	default:
		// Window crosses midnight, e.g. 22:00 → 08:00.
		return now >= start || now < end, nil
	}
}

// QuietHoursEvaluator answers whether a user is currently inside their
// do-not-disturb window for a module.
type QuietHoursEvaluator struct {
	prefs PreferenceStore
	now   func() time.Time
}

// NewQuietHoursEvaluator creates a new quiet-hours evaluator.
func NewQuietHoursEvaluator(prefs PreferenceStore) *QuietHoursEvaluator {
	return &QuietHoursEvaluator{prefs: prefs, now: time.Now}
}

// IsInQuietHours loads the user's preference and tests the current wall
// clock against their window. Users without a record (or with quiet hours
// disabled) are never in quiet hours.
func (e *QuietHoursEvaluator) IsInQuietHours(ctx context.Context, userID, dealerID, module string) (bool, error) {
	pref, err := e.prefs.Get(ctx, userID, dealerID, module)
	if err != nil {
		return false, fmt.Errorf("fetching preference for quiet hours: %w", err)
	}
	return e.Evaluate(pref)
}

// Evaluate tests an already-loaded preference against the current clock.
// Callers that fetched the record for other gating reuse it here instead of
// hitting the store twice.
func (e *QuietHoursEvaluator) Evaluate(pref *NotificationPreference) (bool, error) {
	if pref == nil {
		return false, nil
	}
	return pref.QuietHours.InWindow(e.now())
}
