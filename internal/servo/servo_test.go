package servo

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kolobock/servo-logic-go/internal/animation"
	"github.com/kolobock/servo-logic-go/internal/clock"
	"github.com/kolobock/servo-logic-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	channel, pulse int
}

type recordingOutput struct {
	mu     sync.Mutex
	writes []write
	err    error
}

func (r *recordingOutput) SetPulse(channel, pulse int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, write{channel, pulse})
	return nil
}

func (r *recordingOutput) reset() []write {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.writes
	r.writes = nil
	return w
}

func testConfig() *config.Config {
	return &config.Config{
		Motion: config.MotionConfig{TickMs: 20},
		Joints: []config.JointConfig{
			{Name: "shoulder", Channel: 14, MinPulse: 150, MaxPulse: 600},
			{Name: "elbow", Channel: 15, MinPulse: 530, MaxPulse: 350},
		},
	}
}

func testLibrary(t *testing.T) *animation.Library {
	t.Helper()
	lib := animation.NewLibrary()
	for _, a := range []struct {
		name, keyframes string
		duration        uint32
		loop            bool
	}{
		{"zero", "0:0 0", 1000, true},
		{"sweep", "0:0 0|1000:180 180", 1000, false},
		{"wild", "0:-30 200", 1000, true},
	} {
		anim, err := animation.Parse(a.name, a.keyframes, a.duration, a.loop)
		require.NoError(t, err)
		require.NoError(t, lib.Add(anim))
	}
	return lib
}

func newTestController(t *testing.T, start uint32) (*Controller, *recordingOutput, *clock.Fake) {
	t.Helper()
	out := &recordingOutput{}
	clk := clock.NewFake(start)
	ctrl, err := New(testConfig(), out, clk, testLibrary(t))
	require.NoError(t, err)
	return ctrl, out, clk
}

func TestNewRejectsMismatchedAnimation(t *testing.T) {
	lib := animation.NewLibrary()
	anim, err := animation.Parse("single", "0:90", 100, true)
	require.NoError(t, err)
	require.NoError(t, lib.Add(anim))

	_, err = New(testConfig(), &recordingOutput{}, clock.NewFake(0), lib)
	assert.ErrorIs(t, err, ErrJointMismatch)

	_, err = New(&config.Config{}, &recordingOutput{}, clock.NewFake(0), lib)
	assert.ErrorIs(t, err, config.ErrNoJoints)
}

func TestPlayUnknown(t *testing.T) {
	ctrl, _, _ := newTestController(t, 0)

	assert.ErrorIs(t, ctrl.Play("missing"), ErrUnknownAnimation)
	assert.Equal(t, "", ctrl.Current())
}

func TestTickIdleWritesNothing(t *testing.T) {
	ctrl, out, _ := newTestController(t, 0)

	require.NoError(t, ctrl.Tick())
	assert.Empty(t, out.reset())
}

func TestTickSweep(t *testing.T) {
	ctrl, out, clk := newTestController(t, 1000)
	require.NoError(t, ctrl.Play("sweep"))

	require.NoError(t, ctrl.Tick())
	assert.Equal(t, []write{{14, 150}, {15, 530}}, out.reset())

	clk.Advance(500 * time.Millisecond)
	require.NoError(t, ctrl.Tick())
	assert.Equal(t, []write{{14, 375}, {15, 440}}, out.reset())
	assert.Equal(t, map[string]int{"shoulder": 375, "elbow": 440}, ctrl.Pulses())

	clk.Advance(500 * time.Millisecond)
	require.NoError(t, ctrl.Tick())
	assert.Equal(t, []write{{14, 600}, {15, 350}}, out.reset())
	assert.Equal(t, "", ctrl.Current(), "one-shot animation stops after its last frame")
}

func TestTickRespectsInterval(t *testing.T) {
	ctrl, out, clk := newTestController(t, 0)
	require.NoError(t, ctrl.Play("sweep"))

	require.NoError(t, ctrl.Tick())
	out.reset()

	clk.Advance(10 * time.Millisecond)
	require.NoError(t, ctrl.Tick())
	assert.Empty(t, out.reset(), "tick inside interval is skipped")

	clk.Advance(10 * time.Millisecond)
	require.NoError(t, ctrl.Tick())
	assert.Equal(t, []write{{14, 157}, {15, 527}}, out.reset())
}

func TestTickLateTickKeepsSchedule(t *testing.T) {
	ctrl, out, clk := newTestController(t, 1000)
	require.NoError(t, ctrl.Play("sweep"))

	require.NoError(t, ctrl.Tick())
	out.reset()

	// 3ms late for the 1020 slot
	clk.Set(1023)
	require.NoError(t, ctrl.Tick())
	assert.Equal(t, []write{{14, 160}, {15, 526}}, out.reset())

	// the 1040 slot still fires
	clk.Set(1040)
	require.NoError(t, ctrl.Tick())
	assert.Equal(t, []write{{14, 167}, {15, 523}}, out.reset())

	clk.Set(1059)
	require.NoError(t, ctrl.Tick())
	assert.Empty(t, out.reset())
}

func TestTickNowIgnoresInterval(t *testing.T) {
	ctrl, out, clk := newTestController(t, 983)
	require.NoError(t, ctrl.Play("sweep"))

	for _, now := range []uint32{983, 1003, 1020} {
		clk.Set(now)
		require.NoError(t, ctrl.tickNow())
		assert.NotEmpty(t, out.reset(), "tick at %d", now)
	}
}

func TestTickSkipsUnchangedPulses(t *testing.T) {
	ctrl, out, clk := newTestController(t, 0)
	require.NoError(t, ctrl.Play("zero"))

	require.NoError(t, ctrl.Tick())
	assert.Len(t, out.reset(), 2)

	clk.Advance(100 * time.Millisecond)
	require.NoError(t, ctrl.Tick())
	assert.Empty(t, out.reset())
	assert.Equal(t, "zero", ctrl.Current())
}

func TestTickClampsAngles(t *testing.T) {
	ctrl, out, _ := newTestController(t, 0)
	require.NoError(t, ctrl.Play("wild"))

	require.NoError(t, ctrl.Tick())
	assert.Equal(t, []write{{14, 150}, {15, 350}}, out.reset())
}

func TestTickAcrossClockWrap(t *testing.T) {
	ctrl, out, clk := newTestController(t, math.MaxUint32-249)
	require.NoError(t, ctrl.Play("sweep"))
	require.NoError(t, ctrl.Tick())
	out.reset()

	// 500ms later the counter has wrapped to 250
	clk.Advance(500 * time.Millisecond)
	require.Equal(t, uint32(250), clk.Millis())
	require.NoError(t, ctrl.Tick())
	assert.Equal(t, []write{{14, 375}, {15, 440}}, out.reset())
}

func TestTickOutputError(t *testing.T) {
	ctrl, out, _ := newTestController(t, 0)
	out.err = errors.New("bus error")
	require.NoError(t, ctrl.Play("zero"))

	err := ctrl.Tick()
	assert.ErrorIs(t, err, out.err)
	assert.Contains(t, err.Error(), "shoulder")
}

func TestStop(t *testing.T) {
	ctrl, out, clk := newTestController(t, 0)
	require.NoError(t, ctrl.Play("sweep"))
	require.NoError(t, ctrl.Tick())
	out.reset()

	ctrl.Stop()
	clk.Advance(time.Second)
	require.NoError(t, ctrl.Tick())
	assert.Empty(t, out.reset())
	assert.Equal(t, "", ctrl.Current())
}

func TestRunAdvancesOnTrigger(t *testing.T) {
	ctrl, _, _ := newTestController(t, 0)
	ctrl.tickMs = 1

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx, events) }()

	events <- struct{}{}
	assert.Eventually(t, func() bool { return ctrl.Current() == "zero" }, time.Second, time.Millisecond)

	events <- struct{}{}
	assert.Eventually(t, func() bool { return ctrl.Current() == "sweep" }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
