package reader

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/secu3-ltft/pkg/models"
)

func testImage(t *testing.T) []byte {
	t.Helper()
	data := make([]byte, models.ImageSize)
	for i := 0; i < models.GridSize; i++ {
		binary.LittleEndian.PutUint16(data[models.RPMGridOffset+int64(2*i):], uint16(1000+200*i))
		binary.LittleEndian.PutUint16(data[models.LoadGridOffset+int64(2*i):], uint16(1280+640*i))
	}
	for c := 0; c < models.GridSize*models.GridSize; c++ {
		binary.LittleEndian.PutUint16(data[models.VEMapOffset+int64(2*c):], 2048)
	}
	// LTFT 1 [0][1] = -20, LTFT 2 [2][3] = 51
	binary.LittleEndian.PutUint16(data[models.LTFT1Offset+2:], uint16(0xFFEC))
	binary.LittleEndian.PutUint16(data[models.LTFT2Offset+int64(2*(2*models.GridSize+3)):], 51)

	binary.LittleEndian.PutUint16(data[models.ParamsOffset:], 13)
	binary.LittleEndian.PutUint16(data[models.ParamsOffset+2:], uint16(0xFFB8)) // -72
	data[models.ParamsOffset+10] = 4
	return data
}

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calib.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestParseImage(t *testing.T) {
	img, err := ParseImage(testImage(t))
	require.NoError(t, err)

	assert.Equal(t, int16(1000), img.RPM.First())
	assert.Equal(t, int16(4000), img.RPM.Last())
	assert.Equal(t, int16(200), img.RPM.Spans[15])
	assert.Equal(t, int16(640), img.Load.Spans[0])
	assert.True(t, img.Load.Increasing())

	assert.Equal(t, uint16(2048), img.VE.At(7, 9))
	assert.Equal(t, int16(-20), img.Trim[0].At(0, 1))
	assert.Equal(t, int16(51), img.Trim[1].At(2, 3))
	assert.Equal(t, int16(0), img.Trim[1].At(0, 1))
}

func TestParseImageTooShort(t *testing.T) {
	_, err := ParseImage(make([]byte, models.ImageSize-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortImage))
}

func TestReadImageMissingFile(t *testing.T) {
	_, err := ReadImage(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestReadMapScalesToPercent(t *testing.T) {
	path := writeImage(t, testImage(t))

	ve, err := ReadMap(path, models.MapConfigs[models.MapVE])
	require.NoError(t, err)
	assert.InDelta(t, 100.0, ve.Data[3][4], 1e-9)

	trim, err := ReadMap(path, models.TrimMapConfig(0))
	require.NoError(t, err)
	assert.InDelta(t, -20*100.0/512, trim.Data[0][1], 1e-9)

	min, max := FindMinMax(trim.Data)
	assert.InDelta(t, -20*100.0/512, min, 1e-9)
	assert.InDelta(t, 0, max, 1e-9)
}

func TestReadConfigParams(t *testing.T) {
	path := writeImage(t, testImage(t))

	cfg, err := ReadConfigParams(path)
	require.NoError(t, err)
	assert.Equal(t, 13.0, cfg.Values[models.ParamKf])
	assert.Equal(t, -72.0, cfg.Values[models.ParamTrimMin])
	assert.Equal(t, 4.0, cfg.Values[models.ParamSigSwtNum])
	assert.Len(t, cfg.Values, len(models.ConfigParams))

	v, err := ReadConfigParam(path, models.ConfigParams[0])
	require.NoError(t, err)
	assert.Equal(t, 13.0, v)
}
