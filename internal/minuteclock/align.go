package minuteclock

import "time"

// Period is the distance between two minute boundaries.
const Period = time.Minute

// earlyFireSlack bounds how far before its boundary a fire is still treated
// as that boundary's tick.
const earlyFireSlack = time.Second

// MillisecondsUntilNextMinute returns ((60 - seconds) * 1000) - milliseconds
// for t. The result is in (0, 60000]; on an exact boundary it is 60000.
func MillisecondsUntilNextMinute(t time.Time) int64 {
	sec := int64(t.Second())
	ms := int64(t.Nanosecond()) / int64(time.Millisecond)
	return (60-sec)*1000 - ms
}

// UntilNextMinute is MillisecondsUntilNextMinute as a time.Duration.
func UntilNextMinute(t time.Time) time.Duration {
	return time.Duration(MillisecondsUntilNextMinute(t)) * time.Millisecond
}

// NextBoundary returns the boundary UntilNextMinute(t) points at.
func NextBoundary(t time.Time) time.Time {
	subMilli := time.Duration(t.Nanosecond()) % time.Millisecond
	return t.Add(UntilNextMinute(t) - subMilli)
}

// selfCorrectingNext recomputes the next boundary from the live clock. due
// is the boundary the fire was armed for; a fire that lands just before it
// must not schedule that same boundary again.
func selfCorrectingNext(now, due time.Time) time.Time {
	if !due.IsZero() && now.Before(due) && due.Sub(now) < earlyFireSlack {
		return due.Add(Period)
	}
	return NextBoundary(now)
}

// fixedPeriodNext returns the first nominal tick after now on the grid
// prev + k*Period.
func fixedPeriodNext(now, prev time.Time) time.Time {
	next := prev.Add(Period)
	for !next.After(now) {
		next = next.Add(Period)
	}
	return next
}
