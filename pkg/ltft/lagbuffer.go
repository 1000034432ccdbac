package ltft

import (
	"sync"

	"github.com/tosih/secu3-ltft/pkg/models"
)

const (
	// LagCapacity is the number of block averages kept.
	LagCapacity = 16

	blockShift   = 2 // 4 stroke samples per block
	blockSamples = 1 << blockShift
	mapAvgShift  = 3 // MAP is averaged over the 8 newest blocks
	mapAvgBlocks = 1 << mapAvgShift
)

// LagBuffer is a ring of (RPM, MAP) block averages. Each block is the mean
// of four stroke samples. It delays the operating point by the transport
// time between a fuel event and its lambda reading.
type LagBuffer struct {
	mu sync.Mutex

	rpm  [LagCapacity]int16
	load [LagCapacity]int16
	pos  int // next slot to write
	fill int // blocks stored, saturates at LagCapacity

	accRPM  int32
	accLoad int32
	samples int
}

// Add accumulates one stroke sample. It does no division and no loops.
func (b *LagBuffer) Add(p models.OperatingPoint) {
	b.mu.Lock()
	b.accRPM += int32(p.RPM)
	b.accLoad += int32(p.Load)
	b.samples++
	if b.samples == blockSamples {
		b.rpm[b.pos] = int16(b.accRPM >> blockShift)
		b.load[b.pos] = int16(b.accLoad >> blockShift)
		b.pos++
		if b.pos == LagCapacity {
			b.pos = 0
		}
		if b.fill < LagCapacity {
			b.fill++
		}
		b.accRPM, b.accLoad, b.samples = 0, 0, 0
	}
	b.mu.Unlock()
}

// at returns the block stored back slots before the newest one.
func (b *LagBuffer) at(back int) (int16, int16) {
	i := (b.pos - 1 - back) % LagCapacity
	if i < 0 {
		i += LagCapacity
	}
	return b.rpm[i], b.load[i]
}

// Lagged returns the operating point delayed by the lag configured for the
// current load bucket. lagTable holds ring slots per load grid node. It
// reports false until enough blocks are stored to serve the lag.
func (b *LagBuffer) Lagged(loadAxis models.Grid, lagTable [models.GridSize]uint8) (models.OperatingPoint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fill == 0 {
		return models.OperatingPoint{}, false
	}

	var sum int32
	for k := 0; k < mapAvgBlocks; k++ {
		_, l := b.at(k)
		sum += int32(l)
	}
	avg := int16(sum >> mapAvgShift)
	if avg > loadAxis.Last() {
		avg = loadAxis.Last()
	}

	bucket := models.GridSize - 1
	for i := 0; i < models.GridSize; i++ {
		if loadAxis.Points[i] >= avg {
			bucket = i
			break
		}
	}

	lag := int(lagTable[bucket])
	if lag > LagCapacity-1 {
		lag = LagCapacity - 1
	}
	if lag >= b.fill || b.fill < mapAvgBlocks {
		return models.OperatingPoint{}, false
	}

	rpm, load := b.at(lag)
	return models.OperatingPoint{RPM: rpm, Load: load}, true
}

// Reset clears the ring and the running block.
func (b *LagBuffer) Reset() {
	b.mu.Lock()
	b.rpm = [LagCapacity]int16{}
	b.load = [LagCapacity]int16{}
	b.pos, b.fill = 0, 0
	b.accRPM, b.accLoad, b.samples = 0, 0, 0
	b.mu.Unlock()
}
