package pwm

import (
	"errors"
	"fmt"
	"time"
)

// ServoOutput drives one sysfs PWM channel per servo. Pulses are in
// microseconds.
type ServoOutput struct {
	chip     string
	period   time.Duration
	inversed bool
	channels map[int]*PWM
}

func NewServoOutput(chip string, period time.Duration, inversed bool) *ServoOutput {
	return &ServoOutput{
		chip:     chip,
		period:   period,
		inversed: inversed,
		channels: make(map[int]*PWM),
	}
}

// SetPulse exports the channel on first use.
func (s *ServoOutput) SetPulse(channel, pulseUs int) error {
	p, ok := s.channels[channel]
	if !ok {
		var err error
		p, err = New(s.chip, channel, s.period)
		if err != nil {
			return err
		}
		if s.inversed {
			if err := p.SetInversed(true); err != nil {
				p.Close()
				return fmt.Errorf("failed to set polarity on channel %d: %w", channel, err)
			}
		}
		s.channels[channel] = p
	}
	return p.SetPulseWidth(time.Duration(pulseUs) * time.Microsecond)
}

func (s *ServoOutput) Close() error {
	var errs []error
	for ch, p := range s.channels {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}
