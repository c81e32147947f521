package pca9685

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	writes [][]byte
	err    error
	closed bool
}

func (r *recordingBus) WriteBytes(buf []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.writes = append(r.writes, append([]byte(nil), buf...))
	return len(buf), nil
}

func (r *recordingBus) Close() error {
	r.closed = true
	return nil
}

func newTestDevice() (*PCA9685, *recordingBus) {
	bus := &recordingBus{}
	wakeDelay = 0
	return &PCA9685{dev: bus}, bus
}

func TestPrescale(t *testing.T) {
	tests := []struct {
		freq float64
		want byte
	}{
		{50, 0x79},
		{60, 101},
		{1000, 5},
		{1, 255},
		{5000, 3},
		{0, 255},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Prescale(tt.freq), "Prescale(%v)", tt.freq)
	}
}

func TestConfigure(t *testing.T) {
	dev, bus := newTestDevice()

	require.NoError(t, dev.Configure(50))

	assert.Equal(t, [][]byte{
		{regMode1, 0x11},
		{regPreScale, 0x79},
		{regMode2, 0x04},
		{regMode1, 0x21},
		{regMode1, 0xA1},
	}, bus.writes)
}

func TestSetPulse(t *testing.T) {
	dev, bus := newTestDevice()

	require.NoError(t, dev.SetPulse(0, 375))
	require.NoError(t, dev.SetPulse(15, 600))

	assert.Equal(t, []byte{0x06, 0, 0, 0x77, 0x01}, bus.writes[0])
	assert.Equal(t, []byte{0x42, 0, 0, 0x58, 0x02}, bus.writes[1])
}

func TestSetPulseClampsTicks(t *testing.T) {
	dev, bus := newTestDevice()

	require.NoError(t, dev.SetPulse(1, -20))
	require.NoError(t, dev.SetPulse(1, 9000))

	assert.Equal(t, []byte{0x0A, 0, 0, 0, 0}, bus.writes[0])
	assert.Equal(t, []byte{0x0A, 0, 0, 0xFF, 0x0F}, bus.writes[1])
}

func TestChannelRange(t *testing.T) {
	dev, bus := newTestDevice()

	assert.ErrorIs(t, dev.SetPulse(-1, 300), ErrChannelRange)
	assert.ErrorIs(t, dev.SetPulse(16, 300), ErrChannelRange)
	assert.ErrorIs(t, dev.Off(16), ErrChannelRange)
	assert.Empty(t, bus.writes)
}

func TestOff(t *testing.T) {
	dev, bus := newTestDevice()

	require.NoError(t, dev.Off(2))
	assert.Equal(t, []byte{0x0E, 0, 0, 0, 0x10}, bus.writes[0])
}

func TestWriteError(t *testing.T) {
	dev, bus := newTestDevice()
	bus.err = errors.New("remote I/O error")

	err := dev.SetPulse(3, 300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel 3")
	assert.ErrorIs(t, dev.Configure(50), bus.err)
}

func TestClose(t *testing.T) {
	dev, bus := newTestDevice()

	require.NoError(t, dev.Close())
	assert.True(t, bus.closed)
}

func TestDummy(t *testing.T) {
	d := Dummy()

	_, ok := d.Pulse(4)
	assert.False(t, ok)

	require.NoError(t, d.SetPulse(4, 512))
	got, ok := d.Pulse(4)
	assert.True(t, ok)
	assert.Equal(t, 512, got)
	assert.NoError(t, d.Close())
}
