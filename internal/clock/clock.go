// Package clock provides a 32-bit millisecond counter that wraps the same
// way a microcontroller millis() counter does.
package clock

import (
	"sync"
	"time"
)

// Clock returns elapsed milliseconds truncated to 32 bits.
type Clock interface {
	Millis() uint32
}

type monotonic struct {
	start  time.Time
	offset uint32
}

// New returns a clock counting milliseconds from now.
func New() Clock {
	return NewWithOffset(0)
}

// NewWithOffset returns a clock whose first reading is offset. Starting close
// to math.MaxUint32 exercises the wraparound within seconds.
func NewWithOffset(offset uint32) Clock {
	return &monotonic{start: time.Now(), offset: offset}
}

func (m *monotonic) Millis() uint32 {
	return m.offset + uint32(time.Since(m.start).Milliseconds())
}

// Fake is a manually driven clock for tests.
type Fake struct {
	mu  sync.Mutex
	now uint32
}

// NewFake returns a Fake reading start.
func NewFake(start uint32) *Fake {
	return &Fake{now: start}
}

// Millis returns the current fake reading.
func (f *Fake) Millis() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set jumps the clock to ms.
func (f *Fake) Set(ms uint32) {
	f.mu.Lock()
	f.now = ms
	f.mu.Unlock()
}

// Advance moves the clock forward by d, wrapping past math.MaxUint32.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now += uint32(d.Milliseconds())
	f.mu.Unlock()
}
