package pwm

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SysfsRoot is where the kernel exposes PWM chips.
var SysfsRoot = "/sys/class/pwm"

type PWM struct {
	chip     string
	channel  int
	basePath string
	period   time.Duration
	inversed bool
}

// DefaultPeriod is the 50Hz frame hobby servos expect.
const DefaultPeriod = 20 * time.Millisecond

func New(chip string, channel int, period time.Duration) (*PWM, error) {
	if period <= 0 {
		period = DefaultPeriod
	}
	p := &PWM{
		chip:     chip,
		channel:  channel,
		basePath: filepath.Join(SysfsRoot, chip, fmt.Sprintf("pwm%d", channel)),
		period:   period,
	}

	if _, err := os.Stat(p.basePath); os.IsNotExist(err) {
		exportPath := filepath.Join(SysfsRoot, chip, "export")
		if err := os.WriteFile(exportPath, []byte(strconv.Itoa(channel)), 0644); err != nil {
			if !strings.Contains(err.Error(), "device or resource busy") {
				return nil, fmt.Errorf("failed to export PWM %s/%d: %w", chip, channel, err)
			}
		}
	}

	if err := p.writeSysfs("period", strconv.FormatInt(p.period.Nanoseconds(), 10)); err != nil {
		return nil, err
	}

	if err := p.writeSysfs("enable", "1"); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *PWM) Period() time.Duration {
	return p.period
}

func (p *PWM) SetInversed(inversed bool) error {
	p.inversed = inversed
	polarity := "normal"
	if inversed {
		polarity = "inversed"
	}
	return p.writeSysfs("polarity", polarity)
}

// SetPulseWidth sets the high time of each period, clamped to [0, period].
func (p *PWM) SetPulseWidth(width time.Duration) error {
	if width < 0 {
		width = 0
	}
	if width > p.period {
		width = p.period
	}
	return p.writeSysfs("duty_cycle", strconv.FormatInt(width.Nanoseconds(), 10))
}

func (p *PWM) SetDutyCycle(dutyCycle float64) error {
	return p.SetPulseWidth(time.Duration(float64(p.period) * dutyCycle))
}

// Close stops the pulse train and disables the channel.
func (p *PWM) Close() error {
	if err := p.SetPulseWidth(0); err != nil {
		return err
	}
	return p.writeSysfs("enable", "0")
}

func (p *PWM) writeSysfs(filename, value string) error {
	path := filepath.Join(p.basePath, filename)
	return os.WriteFile(path, []byte(value), 0644)
}
