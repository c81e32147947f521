// Package servomath converts logical servo angles into pulse values and
// provides the timing helpers a control loop needs. Every function is pure
// and total: out-of-range inputs are clamped, never rejected.
package servomath

// Logical servo travel in degrees.
const (
	MinAngle = 0
	MaxAngle = 180
)

// Tick is a fixed-width unsigned millisecond counter. Pick the width that
// matches the clock's wraparound boundary: uint32 for a millis() style
// counter.
type Tick interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// ClampAngle returns the nearest angle within [MinAngle, MaxAngle].
func ClampAngle(angle int) int {
	if angle < MinAngle {
		return MinAngle
	}
	if angle > MaxAngle {
		return MaxAngle
	}
	return angle
}

// AngleToPulse clamps angle and maps it linearly onto [minPulse, maxPulse],
// where minPulse corresponds to 0 degrees and maxPulse to 180 degrees.
// maxPulse may be lower than minPulse for servos mounted in reverse.
//
// Example: AngleToPulse(90, 150, 600) = 375.
func AngleToPulse(angle, minPulse, maxPulse int) int {
	clamped := ClampAngle(angle)
	// Multiply before dividing, otherwise the fractional part is lost.
	return minPulse + (clamped*(maxPulse-minPulse))/MaxAngle
}

// InterpolatePosition returns the position at progress between startPos and
// endPos. Progress is clamped to [0, 1] and the result is truncated toward
// zero, not rounded. NaN progress is treated as 0.
func InterpolatePosition(startPos, endPos int, progress float32) int {
	if !(progress >= 0) {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return startPos + int(float32(endPos-startPos)*progress)
}

// IsIntervalElapsed reports whether at least interval milliseconds have
// passed between lastTime and currentTime. The subtraction wraps in the width
// of T, so it stays correct when the counter overflows back to zero. Using a
// wider type than the clock breaks this.
func IsIntervalElapsed[T Tick](currentTime, lastTime, interval T) bool {
	return currentTime-lastTime >= interval
}
