package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kolobock/servo-logic-go/internal/animation"
	"gopkg.in/ini.v1"
)

const DefaultPath = "/etc/servo-logic.conf"

const (
	DriverPCA9685 = "pca9685"
	DriverSysfs   = "sysfs"
	DriverDummy   = "dummy"
)

var (
	ErrNoJoints      = errors.New("no joint sections configured")
	ErrUnknownDriver = errors.New("unknown driver type")
)

type Config struct {
	Driver     DriverConfig
	Motion     MotionConfig
	Trigger    TriggerConfig
	Joints     []JointConfig
	Animations []*animation.Animation
}

type DriverConfig struct {
	Type       string
	I2CBus     int
	I2CAddress uint8
	Frequency  float64 // Hz
	PWMChip    string
	Polarity   string
}

type MotionConfig struct {
	TickMs           uint32
	DefaultAnimation string
	Autostart        bool
	Verbose          bool
}

type TriggerConfig struct {
	Chip       string
	Line       string
	DebounceMs uint32
}

// JointConfig maps one servo joint to an output channel. MinPulse is the
// pulse at 0 degrees and MaxPulse at 180; MaxPulse may be the smaller one.
// Units are driver ticks for pca9685 and microseconds for sysfs.
type JointConfig struct {
	Name     string
	Channel  int
	MinPulse int
	MaxPulse int
}

// Period returns the PWM period implied by the configured frequency.
func (d DriverConfig) Period() time.Duration {
	if d.Frequency <= 0 {
		return 20 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / d.Frequency)
}

func Load(path string) (*Config, error) {
	cfg := &Config{}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Load driver configuration
	drvSec := iniFile.Section("driver")
	cfg.Driver.Type = drvSec.Key("type").MustString(DriverPCA9685)
	cfg.Driver.I2CBus = drvSec.Key("i2c_bus").MustInt(1)
	cfg.Driver.Frequency = drvSec.Key("frequency").MustFloat64(50)
	cfg.Driver.PWMChip = drvSec.Key("pwm_chip").MustString("pwmchip0")
	cfg.Driver.Polarity = drvSec.Key("polarity").MustString("normal")

	addr, err := parseAddress(drvSec.Key("i2c_address").MustString("0x40"))
	if err != nil {
		return nil, err
	}
	cfg.Driver.I2CAddress = addr

	// Load motion configuration
	motionSec := iniFile.Section("motion")
	cfg.Motion.TickMs = uint32(motionSec.Key("tick_ms").MustUint(20))
	cfg.Motion.DefaultAnimation = motionSec.Key("default_animation").String()
	cfg.Motion.Autostart = motionSec.Key("autostart").MustBool(true)
	cfg.Motion.Verbose = motionSec.Key("verbose").MustBool(false)

	// Load trigger configuration
	trigSec := iniFile.Section("trigger")
	cfg.Trigger.Chip = trigSec.Key("chip").MustString("gpiochip0")
	cfg.Trigger.Line = trigSec.Key("line").String()
	cfg.Trigger.DebounceMs = uint32(trigSec.Key("debounce_ms").MustUint(200))

	// Joints and animations keep file order
	for _, sec := range iniFile.Sections() {
		switch {
		case strings.HasPrefix(sec.Name(), "joint."):
			cfg.Joints = append(cfg.Joints, JointConfig{
				Name:     strings.TrimPrefix(sec.Name(), "joint."),
				Channel:  sec.Key("channel").MustInt(len(cfg.Joints)),
				MinPulse: sec.Key("min_pulse").MustInt(150),
				MaxPulse: sec.Key("max_pulse").MustInt(600),
			})
		case strings.HasPrefix(sec.Name(), "animation."):
			a, err := animation.Parse(
				strings.TrimPrefix(sec.Name(), "animation."),
				sec.Key("keyframes").String(),
				uint32(sec.Key("duration_ms").MustUint(1000)),
				sec.Key("loop").MustBool(false),
			)
			if err != nil {
				return nil, fmt.Errorf("section %q: %w", sec.Name(), err)
			}
			cfg.Animations = append(cfg.Animations, a)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-section consistency. Pulse ranges are left to the
// caller: a reversed or empty range is a valid mapping.
func (c *Config) Validate() error {
	switch c.Driver.Type {
	case DriverPCA9685, DriverSysfs, DriverDummy:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver.Type)
	}

	if len(c.Joints) == 0 {
		return ErrNoJoints
	}

	for _, a := range c.Animations {
		if a.Joints() != len(c.Joints) {
			return fmt.Errorf("animation %q: %w: has %d angles, %d joints configured",
				a.Name, animation.ErrJointCount, a.Joints(), len(c.Joints))
		}
	}
	return nil
}

// Library collects the configured animations in file order.
func (c *Config) Library() (*animation.Library, error) {
	lib := animation.NewLibrary()
	for _, a := range c.Animations {
		if err := lib.Add(a); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// applyEnv lets the service unit override hardware wiring.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVO_DRIVER"); v != "" {
		cfg.Driver.Type = v
	}
	if v := os.Getenv("PWM_CHIP"); v != "" {
		cfg.Driver.PWMChip = v
	}
	if bus, err := strconv.Atoi(os.Getenv("I2C_BUS")); err == nil {
		cfg.Driver.I2CBus = bus
	}
	if v := os.Getenv("POLARITY"); v != "" {
		cfg.Driver.Polarity = v
	}
	if v := os.Getenv("TRIGGER_CHIP"); v != "" {
		cfg.Trigger.Chip = v
	}
	if v := os.Getenv("TRIGGER_LINE"); v != "" {
		cfg.Trigger.Line = v
	}
	if os.Getenv("VERBOSE") == "1" {
		cfg.Motion.Verbose = true
	}
}

func parseAddress(s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid i2c_address %q: %w", s, err)
	}
	return uint8(v), nil
}
