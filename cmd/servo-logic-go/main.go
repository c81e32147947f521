package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kolobock/servo-logic-go/internal/animation"
	"github.com/kolobock/servo-logic-go/internal/clock"
	"github.com/kolobock/servo-logic-go/internal/config"
	"github.com/kolobock/servo-logic-go/internal/logger"
	"github.com/kolobock/servo-logic-go/internal/servo"
	"github.com/kolobock/servo-logic-go/internal/trigger"
	"github.com/kolobock/servo-logic-go/pkg/pca9685"
	"github.com/kolobock/servo-logic-go/pkg/pwm"
)

type output interface {
	servo.Output
	Close() error
}

func main() {
	path := config.DefaultPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// Load configuration
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.SetVerbose(cfg.Motion.Verbose)

	lib, err := cfg.Library()
	if err != nil {
		logger.Fatalf("Failed to build animation library: %v", err)
	}

	out, err := newOutput(cfg)
	if err != nil {
		logger.Fatalf("Failed to create %s output: %v", cfg.Driver.Type, err)
	}
	defer out.Close()

	clk := clock.New()

	servoCtrl, err := servo.New(cfg, out, clk, lib)
	if err != nil {
		logger.Fatalf("Failed to create servo controller: %v", err)
	}

	trigCtrl, err := trigger.New(cfg, clk)
	if err != nil {
		logger.Fatalf("Failed to create trigger: %v", err)
	}
	defer trigCtrl.Close()

	if name := startAnimation(cfg, lib); name != "" {
		if err := servoCtrl.Play(name); err != nil {
			logger.Errorf("Failed to start animation: %v", err)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		trigCtrl.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := servoCtrl.Run(ctx, trigCtrl.Events()); err != nil {
			logger.Errorf("Servo controller error: %v", err)
		}
	}()

	// Wait for signal
	<-sigCh
	logger.Infoln("Shutting down...")
	cancel()

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Infoln("Shutdown complete")
	case <-time.After(5 * time.Second):
		logger.Errorf("Shutdown timeout")
	}
}

// newOutput opens the servo driver selected in the config.
func newOutput(cfg *config.Config) (output, error) {
	switch cfg.Driver.Type {
	case config.DriverPCA9685:
		dev, err := pca9685.New(cfg.Driver.I2CBus, cfg.Driver.I2CAddress)
		if err != nil {
			return nil, err
		}
		if err := dev.Configure(cfg.Driver.Frequency); err != nil {
			dev.Close()
			return nil, err
		}
		return dev, nil
	case config.DriverSysfs:
		return pwm.NewServoOutput(cfg.Driver.PWMChip, cfg.Driver.Period(), cfg.Driver.Polarity == "inversed"), nil
	case config.DriverDummy:
		return pca9685.Dummy(), nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver.Type)
}

// startAnimation picks the animation to play at boot, or "" to stay idle.
func startAnimation(cfg *config.Config, lib *animation.Library) string {
	if !cfg.Motion.Autostart || lib.Len() == 0 {
		return ""
	}
	if _, ok := lib.Get(cfg.Motion.DefaultAnimation); ok {
		return cfg.Motion.DefaultAnimation
	}
	if cfg.Motion.DefaultAnimation != "" {
		logger.Errorf("Default animation %q not found, using %q", cfg.Motion.DefaultAnimation, lib.Names()[0])
	}
	return lib.Names()[0]
}
