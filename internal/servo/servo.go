package servo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kolobock/servo-logic-go/internal/animation"
	"github.com/kolobock/servo-logic-go/internal/clock"
	"github.com/kolobock/servo-logic-go/internal/config"
	"github.com/kolobock/servo-logic-go/internal/logger"
	"github.com/kolobock/servo-logic-go/pkg/servomath"
)

var (
	ErrUnknownAnimation = errors.New("unknown animation")
	ErrJointMismatch    = errors.New("animation does not match joints")
)

// Output writes a pulse to one servo channel. Units are driver specific.
type Output interface {
	SetPulse(channel, pulse int) error
}

type Controller struct {
	joints []config.JointConfig
	tickMs uint32
	out    Output
	clk    clock.Clock
	lib    *animation.Library

	mu        sync.Mutex
	current   *animation.Animation
	startedAt uint32
	lastTick  uint32
	ticked    bool
	pulses    []int
	written   []bool
}

func New(cfg *config.Config, out Output, clk clock.Clock, lib *animation.Library) (*Controller, error) {
	if len(cfg.Joints) == 0 {
		return nil, config.ErrNoJoints
	}

	for _, name := range lib.Names() {
		a, _ := lib.Get(name)
		if a.Joints() != len(cfg.Joints) {
			return nil, fmt.Errorf("%w: %q has %d angles for %d joints",
				ErrJointMismatch, name, a.Joints(), len(cfg.Joints))
		}
	}

	return &Controller{
		joints:  cfg.Joints,
		tickMs:  cfg.Motion.TickMs,
		out:     out,
		clk:     clk,
		lib:     lib,
		pulses:  make([]int, len(cfg.Joints)),
		written: make([]bool, len(cfg.Joints)),
	}, nil
}

// Play starts name from its first keyframe on the next tick.
func (c *Controller) Play(name string) error {
	a, ok := c.lib.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAnimation, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = a
	c.startedAt = c.clk.Millis()
	c.ticked = false
	logger.Infof("Playing animation %s (%dms, loop=%v)", a.Name, a.DurationMs, a.Loop)
	return nil
}

// Stop leaves the servos at their last pulse.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		logger.Infof("Stopped animation %s", c.current.Name)
	}
	c.current = nil
}

func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.Name
}

// Tick writes the active animation's pose if a tickMs slot has started
// since the last update. Slots are counted from the animation start, so a
// late call does not push later ones back. It is safe to call more often
// than tickMs.
func (c *Controller) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}

	now := c.clk.Millis()
	if !c.ticked {
		c.lastTick = c.startedAt
	} else if !servomath.IsIntervalElapsed(now, c.lastTick, c.tickMs) {
		return nil
	}
	c.ticked = true
	if c.tickMs > 0 {
		c.lastTick += (now - c.lastTick) / c.tickMs * c.tickMs
	} else {
		c.lastTick = now
	}

	return c.step(now)
}

// step writes the pose at now without any pacing. Callers hold c.mu.
func (c *Controller) step(now uint32) error {
	angles, done := c.current.Sample(now - c.startedAt)
	if err := c.apply(angles); err != nil {
		return err
	}

	if done {
		logger.Infof("Animation %s finished", c.current.Name)
		c.current = nil
	}
	return nil
}

func (c *Controller) tickNow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	now := c.clk.Millis()
	c.lastTick = now
	c.ticked = true
	return c.step(now)
}

// apply maps angles to pulses and writes the ones that changed.
func (c *Controller) apply(angles []int) error {
	for i, joint := range c.joints {
		pulse := servomath.AngleToPulse(angles[i], joint.MinPulse, joint.MaxPulse)
		if c.written[i] && c.pulses[i] == pulse {
			continue
		}
		if err := c.out.SetPulse(joint.Channel, pulse); err != nil {
			return fmt.Errorf("joint %s: %w", joint.Name, err)
		}
		c.pulses[i] = pulse
		c.written[i] = true
	}
	return nil
}

// Pulses returns the last pulse written per joint name.
func (c *Controller) Pulses() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int, len(c.joints))
	for i, joint := range c.joints {
		if c.written[i] {
			out[joint.Name] = c.pulses[i]
		}
	}
	return out
}

// Run ticks until ctx is done. Each trigger event switches to the next
// animation in the library.
func (c *Controller) Run(ctx context.Context, events <-chan struct{}) error {
	period := time.Duration(c.tickMs) * time.Millisecond
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-events:
			next := c.lib.Next(c.Current())
			if next == "" {
				continue
			}
			if err := c.Play(next); err != nil {
				logger.Errorf("Trigger play error: %v", err)
			}
		case <-ticker.C:
			// the ticker already paces updates
			if err := c.tickNow(); err != nil {
				logger.Errorf("Servo update error: %v", err)
			}
		}
	}
}
