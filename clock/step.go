package clock

import "time"

// Step returns floor(unix_seconds / windowSeconds). Times before the epoch are floored rather than
// truncated toward zero so that every window is exactly windowSeconds wide.
func Step(t time.Time, windowSeconds int64) int64 {
	secs := t.Unix()
	step := secs / windowSeconds
	if secs%windowSeconds != 0 && secs < 0 {
		step--
	}
	return step
}

// StepStart returns the first instant of the given step.
func StepStart(step, windowSeconds int64) time.Time {
	return time.Unix(step*windowSeconds, 0)
}

// StepEnd returns the first instant after the given step, i.e. the start of step+1.
func StepEnd(step, windowSeconds int64) time.Time {
	return time.Unix((step+1)*windowSeconds, 0)
}
