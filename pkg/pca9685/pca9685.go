// Package pca9685 drives the 16-channel, 12-bit PCA9685 PWM controller used
// on most I2C servo boards. Pulses are expressed in ticks of the 4096-step
// period, so 150..600 covers a typical servo at 50Hz.
package pca9685

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	i2c "github.com/d2r2/go-i2c"
)

const (
	DefaultAddr = 0x40

	Channels = 16
	MaxTicks = 4095

	oscillatorHz = 25_000_000

	regMode1    = 0x00
	regMode2    = 0x01
	regLED0OnL  = 0x06
	regPreScale = 0xFE

	mode1Restart = 0x80
	mode1AI      = 0x20
	mode1Sleep   = 0x10
	mode1AllCall = 0x01

	mode2OutDrv = 0x04

	ledFull = 0x10
)

var ErrChannelRange = errors.New("pca9685 channel out of range")

// oscillator settle time after leaving sleep
var wakeDelay = 500 * time.Microsecond

// writer is the part of *i2c.I2C the driver needs.
type writer interface {
	WriteBytes(buf []byte) (int, error)
	Close() error
}

type PCA9685 struct {
	mu  sync.Mutex
	dev writer
}

// New opens the controller at addr on /dev/i2c-<bus>.
func New(bus int, addr uint8) (*PCA9685, error) {
	dev, err := i2c.NewI2C(addr, bus)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %d addr %#x: %w", bus, addr, err)
	}
	return &PCA9685{dev: dev}, nil
}

// Prescale returns the PRE_SCALE register value for freqHz.
func Prescale(freqHz float64) byte {
	if freqHz <= 0 {
		return 255
	}
	v := math.Round(oscillatorHz/(4096*freqHz)) - 1
	if v < 3 {
		v = 3
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

// Configure sets the output frequency and enables register auto-increment.
func (p *PCA9685) Configure(freqHz float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Prescale can only be written while asleep.
	steps := [][2]byte{
		{regMode1, mode1Sleep | mode1AllCall},
		{regPreScale, Prescale(freqHz)},
		{regMode2, mode2OutDrv},
		{regMode1, mode1AI | mode1AllCall},
	}
	for _, s := range steps {
		if err := p.writeReg(s[0], s[1]); err != nil {
			return fmt.Errorf("pca9685 configure: %w", err)
		}
	}

	time.Sleep(wakeDelay)

	if err := p.writeReg(regMode1, mode1Restart|mode1AI|mode1AllCall); err != nil {
		return fmt.Errorf("pca9685 restart: %w", err)
	}
	return nil
}

// SetPulse switches channel on at tick 0 and off at ticks, clamped to
// [0, MaxTicks].
func (p *PCA9685) SetPulse(channel, ticks int) error {
	if channel < 0 || channel >= Channels {
		return fmt.Errorf("%w: %d", ErrChannelRange, channel)
	}
	if ticks < 0 {
		ticks = 0
	}
	if ticks > MaxTicks {
		ticks = MaxTicks
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeLED(channel, 0, uint16(ticks))
}

// Off holds the channel low so the servo stops driving.
func (p *PCA9685) Off(channel int) error {
	if channel < 0 || channel >= Channels {
		return fmt.Errorf("%w: %d", ErrChannelRange, channel)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeLED(channel, 0, ledFull<<8)
}

func (p *PCA9685) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dev.Close()
}

func (p *PCA9685) writeReg(reg, value byte) error {
	_, err := p.dev.WriteBytes([]byte{reg, value})
	return err
}

// writeLED relies on auto-increment to fill ON_L, ON_H, OFF_L, OFF_H.
func (p *PCA9685) writeLED(channel int, on, off uint16) error {
	reg := byte(regLED0OnL + 4*channel)
	_, err := p.dev.WriteBytes([]byte{reg, byte(on), byte(on >> 8), byte(off), byte(off >> 8)})
	if err != nil {
		return fmt.Errorf("pca9685 channel %d: %w", channel, err)
	}
	return nil
}
