package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tosih/secu3-ltft/pkg/config"
	"github.com/tosih/secu3-ltft/pkg/editor"
	"github.com/tosih/secu3-ltft/pkg/ltft"
	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/reader"
)

func tickUntil(t *testing.T, s *EEPROM, want ltft.Opcode, max int) int {
	t.Helper()
	for i := 1; i <= max; i++ {
		op, err := s.Tick()
		require.NoError(t, err)
		if op == want {
			return i
		}
	}
	t.Fatalf("%s did not complete in %d ticks", want, max)
	return 0
}

func TestPendingUntilLatencyElapses(t *testing.T) {
	var trim models.TrimTable
	s := New(Config{Trim: [ltft.Channels]*models.TrimTable{&trim}, Latency: 3, Logger: zaptest.NewLogger(t)})
	assert.Equal(t, ltft.OpcodeNone, s.PendingOpcode())

	s.RequestSave()
	assert.Equal(t, ltft.OpcodeSaveLTFT, s.PendingOpcode())
	assert.Equal(t, 3, tickUntil(t, s, ltft.OpcodeSaveLTFT, 10))
	assert.Equal(t, ltft.OpcodeNone, s.PendingOpcode())
	assert.Equal(t, 1, s.Saves())
}

func TestRequestsQueueInOrderWithoutDuplicates(t *testing.T) {
	var trim models.TrimTable
	s := New(Config{Trim: [ltft.Channels]*models.TrimTable{&trim}, Latency: 1})

	s.RequestReset()
	s.RequestSave()
	s.RequestReset()

	op, err := s.Tick()
	require.NoError(t, err)
	assert.Equal(t, ltft.OpcodeResetLTFT, op)
	assert.Equal(t, ltft.OpcodeSaveLTFT, s.PendingOpcode())

	op, err = s.Tick()
	require.NoError(t, err)
	assert.Equal(t, ltft.OpcodeSaveLTFT, op)

	op, err = s.Tick()
	require.NoError(t, err)
	assert.Equal(t, ltft.OpcodeNone, op)
}

func TestResetClearsTables(t *testing.T) {
	var t1, t2 models.TrimTable
	t1.Set(3, 3, 40)
	t2.Set(4, 4, -40)
	s := New(Config{Trim: [ltft.Channels]*models.TrimTable{&t1, &t2}, Latency: 1})

	s.RequestReset()
	tickUntil(t, s, ltft.OpcodeResetLTFT, 1)
	assert.Equal(t, models.TrimTable{}, t1)
	assert.Equal(t, models.TrimTable{}, t2)
}

func TestSaveWritesImage(t *testing.T) {
	cal := config.DefaultCalibration()
	path := filepath.Join(t.TempDir(), "calib.bin")
	require.NoError(t, os.WriteFile(path, editor.EncodeImage(&reader.Image{RPM: cal.RPMAxis(), Load: cal.LoadAxis()}), 0644))

	var trim models.TrimTable
	trim.Set(2, 7, 33)
	cal.Kf = 40
	s := New(Config{Image: path, Trim: [ltft.Channels]*models.TrimTable{&trim}, Params: &cal, Latency: 2})

	s.RequestSave()
	s.RequestSaveParams()
	tickUntil(t, s, ltft.OpcodeSaveLTFT, 2)
	tickUntil(t, s, ltft.OpcodeSaveParams, 2)

	img, err := reader.ReadImage(path)
	require.NoError(t, err)
	assert.Equal(t, int16(33), img.Trim[0].At(2, 7))

	params, err := reader.ReadConfigParams(path)
	require.NoError(t, err)
	loaded := config.DefaultCalibration()
	loaded.ApplyImageParams(params.Values)
	assert.Equal(t, int16(40), loaded.Kf)
	assert.Equal(t, cal.TrimMin, loaded.TrimMin)
}

func TestSaveFailureStillDequeues(t *testing.T) {
	var trim models.TrimTable
	s := New(Config{
		Image:   filepath.Join(t.TempDir(), "missing.bin"),
		Trim:    [ltft.Channels]*models.TrimTable{&trim},
		Latency: 1,
	})
	s.RequestSave()
	op, err := s.Tick()
	assert.Equal(t, ltft.OpcodeSaveLTFT, op)
	assert.Error(t, err)
	assert.Equal(t, ltft.OpcodeNone, s.PendingOpcode())
	assert.Equal(t, 0, s.Saves())
}
