// Package animation holds keyframe animations for a set of servo joints and
// samples them at arbitrary points in time.
package animation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kolobock/servo-logic-go/pkg/servomath"
)

var (
	ErrNoKeyframes    = errors.New("animation has no keyframes")
	ErrJointCount     = errors.New("keyframe joint count mismatch")
	ErrKeyframeOrder  = errors.New("keyframe times must be strictly increasing")
	ErrDuplicateName  = errors.New("duplicate animation name")
	ErrMalformedFrame = errors.New("malformed keyframe")
)

// Keyframe pins every joint to an angle at TimeMs from the animation start.
type Keyframe struct {
	TimeMs uint32
	Angles []int
}

type Animation struct {
	Name       string
	DurationMs uint32
	Loop       bool
	Keyframes  []Keyframe
}

// Parse builds an animation from the config representation
// "time:a1 a2 ...|time:a1 a2 ...". Angles may also be comma separated.
func Parse(name, keyframes string, durationMs uint32, loop bool) (*Animation, error) {
	a := &Animation{Name: name, DurationMs: durationMs, Loop: loop}

	keyframes = strings.TrimSpace(keyframes)
	if keyframes == "" {
		return nil, fmt.Errorf("animation %q: %w", name, ErrNoKeyframes)
	}

	for _, frame := range strings.Split(keyframes, "|") {
		timePart, anglePart, ok := strings.Cut(strings.TrimSpace(frame), ":")
		if !ok {
			return nil, fmt.Errorf("animation %q: %w: %q", name, ErrMalformedFrame, frame)
		}

		ms, err := strconv.ParseUint(strings.TrimSpace(timePart), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("animation %q: %w: bad time %q: %v", name, ErrMalformedFrame, timePart, err)
		}

		fields := strings.Fields(strings.ReplaceAll(anglePart, ",", " "))
		angles := make([]int, 0, len(fields))
		for _, f := range fields {
			angle, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("animation %q: %w: bad angle %q: %v", name, ErrMalformedFrame, f, err)
			}
			angles = append(angles, angle)
		}

		a.Keyframes = append(a.Keyframes, Keyframe{TimeMs: uint32(ms), Angles: angles})
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks that keyframes exist, agree on joint count and are ordered.
func (a *Animation) Validate() error {
	if len(a.Keyframes) == 0 {
		return fmt.Errorf("animation %q: %w", a.Name, ErrNoKeyframes)
	}

	joints := len(a.Keyframes[0].Angles)
	if joints == 0 {
		return fmt.Errorf("animation %q: %w: keyframe 0 has no angles", a.Name, ErrJointCount)
	}

	for i, kf := range a.Keyframes {
		if len(kf.Angles) != joints {
			return fmt.Errorf("animation %q: %w: keyframe %d has %d angles, want %d",
				a.Name, ErrJointCount, i, len(kf.Angles), joints)
		}
		if i > 0 && kf.TimeMs <= a.Keyframes[i-1].TimeMs {
			return fmt.Errorf("animation %q: %w: keyframe %d at %dms", a.Name, ErrKeyframeOrder, i, kf.TimeMs)
		}
	}
	return nil
}

func (a *Animation) Joints() int {
	if len(a.Keyframes) == 0 {
		return 0
	}
	return len(a.Keyframes[0].Angles)
}

// Sample returns the joint angles at elapsedMs. Looping animations wrap at
// DurationMs; others report done once DurationMs has passed and from then on
// return the last keyframe, even if DurationMs cuts a segment short. Angles
// are not clamped here.
func (a *Animation) Sample(elapsedMs uint32) (angles []int, done bool) {
	if len(a.Keyframes) == 0 {
		return nil, true
	}

	t := elapsedMs
	if a.Loop {
		if a.DurationMs == 0 {
			t = 0
		} else {
			t = elapsedMs % a.DurationMs
		}
	} else if elapsedMs >= a.DurationMs {
		return copyAngles(a.Keyframes[len(a.Keyframes)-1].Angles), true
	}

	first := a.Keyframes[0]
	if t <= first.TimeMs {
		return copyAngles(first.Angles), done
	}

	for i := 0; i < len(a.Keyframes)-1; i++ {
		from, to := a.Keyframes[i], a.Keyframes[i+1]
		if t >= to.TimeMs {
			continue
		}

		progress := float32(t-from.TimeMs) / float32(to.TimeMs-from.TimeMs)
		angles = make([]int, len(from.Angles))
		for j := range angles {
			angles[j] = servomath.InterpolatePosition(from.Angles[j], to.Angles[j], progress)
		}
		return angles, done
	}

	return copyAngles(a.Keyframes[len(a.Keyframes)-1].Angles), done
}

func copyAngles(src []int) []int {
	dst := make([]int, len(src))
	copy(dst, src)
	return dst
}
