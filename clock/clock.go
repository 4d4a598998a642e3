package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time. Generators and validators read time only through a Clock so
// tests can pin it to an exact second.
type Clock interface {
	Now() time.Time
}

// System is the production Clock backed by time.Now.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Func adapts a plain function (such as time.Now) to the Clock interface.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}

// Fake is a settable Clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock positioned at the given Unix second.
func NewFake(unixSeconds int64) *Fake {
	return &Fake{now: time.Unix(unixSeconds, 0)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to an absolute Unix second.
func (f *Fake) Set(unixSeconds int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = time.Unix(unixSeconds, 0)
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
