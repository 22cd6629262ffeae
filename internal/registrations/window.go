package registrations

import (
	"time"

	"github.com/groeigesprek/backend/internal/models"
)

// WithinCutoff reports whether a registration may still be cancelled at now:
// true iff now is strictly before session start minus cutoffHours. Date and
// start time are wall-clock values in loc. Unparsable input yields false.
func WithinCutoff(now time.Time, sessionDate, sessionStartTime string, cutoffHours int, loc *time.Location) bool {
	start, err := models.ParseWallClock(sessionDate, sessionStartTime, loc)
	if err != nil {
		return false
	}
	if cutoffHours < 0 {
		cutoffHours = 0
	}
	deadline := start.Add(-time.Duration(cutoffHours) * time.Hour)
	return now.Before(deadline)
}
