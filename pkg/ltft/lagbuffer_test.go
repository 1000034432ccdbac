package ltft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/secu3-ltft/pkg/models"
)

// addBlock feeds four identical samples, producing one block.
func addBlock(b *LagBuffer, rpm, load int16) {
	for i := 0; i < blockSamples; i++ {
		b.Add(models.OperatingPoint{RPM: rpm, Load: load})
	}
}

func uniformLag(v uint8) [models.GridSize]uint8 {
	var t [models.GridSize]uint8
	for i := range t {
		t[i] = v
	}
	return t
}

func TestLagBufferAveragesBlocks(t *testing.T) {
	var b LagBuffer
	_, load := axes()
	for _, rpm := range []int16{1000, 1010, 1020, 1030} {
		b.Add(models.OperatingPoint{RPM: rpm, Load: 3200})
	}
	for i := 0; i < mapAvgBlocks-1; i++ {
		addBlock(&b, 2000, 3200)
	}

	p, ok := b.Lagged(load, uniformLag(mapAvgBlocks-1))
	require.True(t, ok)
	assert.Equal(t, models.OperatingPoint{RPM: 1015, Load: 3200}, p)
}

func TestLagBufferNeedsHistory(t *testing.T) {
	var b LagBuffer
	_, load := axes()

	_, ok := b.Lagged(load, uniformLag(3))
	assert.False(t, ok, "empty")

	for i := 0; i < 3; i++ {
		addBlock(&b, 1500, 3200)
	}
	_, ok = b.Lagged(load, uniformLag(3))
	assert.False(t, ok, "fewer blocks than the MAP window")

	b.Add(models.OperatingPoint{RPM: 1500, Load: 3200})
	_, ok = b.Lagged(load, uniformLag(3))
	assert.False(t, ok, "partial block does not count")
}

func TestLagBufferReturnsDelayedPoint(t *testing.T) {
	var b LagBuffer
	_, load := axes()
	for k := 0; k < LagCapacity; k++ {
		addBlock(&b, int16(1000+k*10), 3200)
	}
	p, ok := b.Lagged(load, uniformLag(3))
	require.True(t, ok)
	assert.Equal(t, int16(1120), p.RPM)

	p, ok = b.Lagged(load, uniformLag(0))
	require.True(t, ok)
	assert.Equal(t, int16(1150), p.RPM)
}

func TestLagBufferWraps(t *testing.T) {
	var b LagBuffer
	_, load := axes()
	for k := 0; k < LagCapacity+4; k++ {
		addBlock(&b, int16(1000+k*10), 3200)
	}
	p, ok := b.Lagged(load, uniformLag(3))
	require.True(t, ok)
	assert.Equal(t, int16(1160), p.RPM)

	p, ok = b.Lagged(load, uniformLag(200))
	require.True(t, ok, "lag is capped to the ring")
	assert.Equal(t, int16(1040), p.RPM)
}

func TestLagBufferLagFollowsLoadBucket(t *testing.T) {
	var b LagBuffer
	_, load := axes()
	var lag [models.GridSize]uint8
	lag[3] = 1 // 3200
	lag[15] = 5

	for k := 0; k < LagCapacity; k++ {
		addBlock(&b, int16(1000+k*10), 3200)
	}
	p, ok := b.Lagged(load, lag)
	require.True(t, ok)
	assert.Equal(t, int16(1140), p.RPM)

	for k := 0; k < LagCapacity; k++ {
		addBlock(&b, int16(2000+k*10), 20000)
	}
	p, ok = b.Lagged(load, lag)
	require.True(t, ok, "MAP above the grid uses the top bucket")
	assert.Equal(t, int16(2100), p.RPM)
}

func TestLagBufferReset(t *testing.T) {
	var b LagBuffer
	_, load := axes()
	for k := 0; k < LagCapacity; k++ {
		addBlock(&b, 1500, 3200)
	}
	b.Reset()
	_, ok := b.Lagged(load, uniformLag(0))
	assert.False(t, ok)
}
