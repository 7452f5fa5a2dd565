package signature

import (
	"math"
	"strconv"
	"time"
)

// replayTolerance is how far a delivery timestamp may drift from the
// current time in either direction. Fixed; senders outside the window
// must re-deliver with a fresh timestamp.
const replayTolerance = 5 * time.Minute

// checkTimestamp validates the webhook-timestamp header value against now.
// The value must be finite numeric Unix seconds; fractional seconds are
// accepted and compared at millisecond precision.
func checkTimestamp(value string, now time.Time) *VerificationError {
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return newErrorf(ReasonMalformedTimestamp, "%q is not a numeric timestamp", value)
	}

	ts := int64(seconds * 1000)
	tolerance := replayTolerance.Milliseconds()
	current := now.UnixMilli()

	if ts < current-tolerance {
		return newErrorf(ReasonTimestampTooOld, "timestamp %d is more than %s behind", ts, replayTolerance)
	}
	if ts > current+tolerance {
		return newErrorf(ReasonTimestampTooNew, "timestamp %d is more than %s ahead", ts, replayTolerance)
	}
	return nil
}
