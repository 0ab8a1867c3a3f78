package quantity

import (
	"fmt"
	"time"
)

// TimeUnit is one of the rate denominators a RateLimiter config may be
// expressed in (spec §6, RateLimiter.timeUnit).
type TimeUnit string

// Supported time units for rate configuration.
const (
	UnitDay    TimeUnit = "day"
	UnitHour   TimeUnit = "hour"
	UnitMinute TimeUnit = "minute"
	UnitSecond TimeUnit = "second"
	UnitMsec   TimeUnit = "msec"
)

// perUnitSeconds maps each TimeUnit to the number of seconds it spans.
var perUnitSeconds = map[TimeUnit]float64{
	UnitDay:    24 * 60 * 60,
	UnitHour:   60 * 60,
	UnitMinute: 60,
	UnitSecond: 1,
	UnitMsec:   0.001,
}

// PerSecond converts a quantity expressed per the given TimeUnit into an
// equivalent per-second rate, as required by TokenBucket's internal
// representation (spec §4.1, "Numeric semantics").
func PerSecond(quantity float64, unit TimeUnit) (float64, error) {
	seconds, ok := perUnitSeconds[unit]
	if !ok {
		return 0, fmt.Errorf("quantity: unknown time unit %q", unit)
	}

	return quantity / seconds, nil
}

// Moment is a point in time measured on a monotonic clock with at least
// millisecond resolution, as required by spec §4.1.
type Moment = time.Time

// Now returns the current Moment.
func Now() Moment {
	return time.Now()
}
