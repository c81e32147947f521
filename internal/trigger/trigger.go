package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kolobock/servo-logic-go/internal/clock"
	"github.com/kolobock/servo-logic-go/internal/config"
	"github.com/kolobock/servo-logic-go/internal/logger"
	"github.com/kolobock/servo-logic-go/pkg/servomath"
	"github.com/warthog618/go-gpiocdev"
)

// Controller turns falling edges on a GPIO line into debounced trigger
// events.
type Controller struct {
	line       *gpiocdev.Line
	clk        clock.Clock
	debounceMs uint32
	edges      chan struct{}
	events     chan struct{}

	mu       sync.Mutex
	last     uint32
	accepted bool
}

// New requests the configured line. A missing or unusable line yields a
// disabled controller rather than an error, so the servos still run.
func New(cfg *config.Config, clk clock.Clock) (*Controller, error) {
	ctrl := newController(clk, cfg.Trigger.DebounceMs)

	line := cfg.Trigger.Line
	if line == "" {
		logger.Infof("Trigger disabled - no line configured")
		return ctrl, nil
	}

	chip := cfg.Trigger.Chip
	if chip == "" {
		chip = "gpiochip0"
	}

	var chipNum int
	if _, err := fmt.Sscanf(chip, "%d", &chipNum); err == nil {
		chip = "gpiochip" + chip
	}

	if !strings.HasPrefix(chip, "/dev/") {
		chip = "/dev/" + chip
	}

	lineNum := 0
	if _, err := fmt.Sscanf(line, "%d", &lineNum); err != nil {
		logger.Errorf("Invalid trigger line number: %s", line)
		return ctrl, nil
	}

	l, err := gpiocdev.RequestLine(chip, lineNum,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type != gpiocdev.LineEventFallingEdge {
				return
			}
			select {
			case ctrl.edges <- struct{}{}:
			default:
			}
		}))
	if err != nil {
		logger.Errorf("Failed to request trigger line %s/%d: %v", chip, lineNum, err)
		return ctrl, nil
	}

	ctrl.line = l
	logger.Infof("Trigger enabled on %s line %d", chip, lineNum)
	return ctrl, nil
}

func newController(clk clock.Clock, debounceMs uint32) *Controller {
	return &Controller{
		clk:        clk,
		debounceMs: debounceMs,
		edges:      make(chan struct{}, 10),
		events:     make(chan struct{}, 1),
	}
}

// Run forwards accepted edges to Events until ctx is done. A disabled
// controller never sees an edge and just waits.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.edges:
			if !c.accept(c.clk.Millis()) {
				continue
			}
			select {
			case c.events <- struct{}{}:
				logger.Infof("Trigger fired")
			default:
				// previous event not consumed yet
			}
		}
	}
}

// accept reports whether an edge at nowMs is outside the debounce window of
// the last accepted one. The window survives the 32-bit clock wrapping.
func (c *Controller) accept(nowMs uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accepted && !servomath.IsIntervalElapsed(nowMs, c.last, c.debounceMs) {
		return false
	}
	c.last = nowMs
	c.accepted = true
	return true
}

func (c *Controller) Enabled() bool {
	return c.line != nil
}

// Events returns the channel that receives trigger events
func (c *Controller) Events() <-chan struct{} {
	return c.events
}

func (c *Controller) Close() error {
	if c.line != nil {
		return c.line.Close()
	}
	return nil
}
