package gatepass

import "time"

const (
	// DefaultWindowSeconds is the width of one time step.
	DefaultWindowSeconds int64 = 30
	// DefaultToleranceSteps is how many steps either side of the validator's step are accepted.
	DefaultToleranceSteps int64 = 1

	// Separator sits between the user id and the digest. The decoder never searches for it: it
	// takes the fixed-width digest from the end, so user ids may contain it.
	Separator = ':'

	// DigestHexLen is the length of the lowercase hex HMAC-SHA256 digest in a payload.
	DigestHexLen = 64
	// MaxUserIDLen bounds a user id in bytes.
	MaxUserIDLen = 128
	// MaxPayloadLen bounds the encoded payload accepted by the decoder.
	MaxPayloadLen = 512
)

// Params are the protocol constants shared by generator and validator.
type Params struct {
	WindowSeconds  int64
	ToleranceSteps int64
}

// DefaultParams returns a 30 second window with a tolerance of one step.
func DefaultParams() Params {
	return Params{
		WindowSeconds:  DefaultWindowSeconds,
		ToleranceSteps: DefaultToleranceSteps,
	}
}

func (p Params) normalized() Params {
	if p.WindowSeconds <= 0 {
		p.WindowSeconds = DefaultWindowSeconds
	}
	if p.ToleranceSteps <= 0 {
		p.ToleranceSteps = DefaultToleranceSteps
	}
	return p
}

// Window returns the step width as a duration.
func (p Params) Window() time.Duration {
	return time.Duration(p.normalized().WindowSeconds) * time.Second
}

// Expiry is the instant after which a payload for step can no longer validate anywhere, and so
// the instant its admission record may be forgotten: (step + tolerance + 1) * window.
func (p Params) Expiry(step int64) time.Time {
	p = p.normalized()
	return time.Unix((step+p.ToleranceSteps+1)*p.WindowSeconds, 0)
}

// candidateSteps lists the steps within tolerance of current, nearest first:
// current, current-1, current+1, current-2, ...
func (p Params) candidateSteps(current int64) []int64 {
	p = p.normalized()
	steps := make([]int64, 0, 2*p.ToleranceSteps+1)
	steps = append(steps, current)
	for i := int64(1); i <= p.ToleranceSteps; i++ {
		steps = append(steps, current-i, current+i)
	}
	return steps
}
