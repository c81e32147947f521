package pca9685

import "sync"

// DummyOutput stands in for the controller when no hardware is attached.
// It remembers the last pulse per channel.
type DummyOutput struct {
	mu     sync.Mutex
	pulses map[int]int
}

func Dummy() *DummyOutput {
	return &DummyOutput{pulses: make(map[int]int)}
}

func (d *DummyOutput) SetPulse(channel, ticks int) error {
	d.mu.Lock()
	d.pulses[channel] = ticks
	d.mu.Unlock()
	return nil
}

func (d *DummyOutput) Pulse(channel int) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.pulses[channel]
	return v, ok
}

func (d *DummyOutput) Close() error {
	return nil
}
