package editor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/secu3-ltft/pkg/config"
	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/reader"
)

func stockImage() *reader.Image {
	cal := config.DefaultCalibration()
	img := &reader.Image{RPM: cal.RPMAxis(), Load: cal.LoadAxis()}
	img.VE.Fill(1900)
	img.Trim[0].Set(4, 5, -33)
	img.Trim[1].Set(15, 15, 77)
	return img
}

func writeStock(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calib.bin")
	require.NoError(t, os.WriteFile(path, EncodeImage(stockImage()), 0644))
	return path
}

func TestEncodeImageRoundTrips(t *testing.T) {
	want := stockImage()
	got, err := reader.ParseImage(EncodeImage(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteTrimsKeepsOtherRegions(t *testing.T) {
	path := writeStock(t)
	require.NoError(t, WriteConfigParam(path, models.ConfigParams[0], 20))

	var learned models.TrimTable
	learned.Set(0, 0, 12)
	require.NoError(t, WriteTrims(path, [2]*models.TrimTable{&learned, nil}))

	img, err := reader.ReadImage(path)
	require.NoError(t, err)
	assert.Equal(t, learned, img.Trim[0])
	assert.Equal(t, int16(77), img.Trim[1].At(15, 15), "nil table leaves channel untouched")
	assert.Equal(t, uint16(1900), img.VE.At(0, 0))

	v, err := reader.ReadConfigParam(path, models.ConfigParams[0])
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
}

func TestWriteTrimsShortImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 16), 0644))
	err := WriteTrims(path, [2]*models.TrimTable{{}, nil})
	assert.ErrorIs(t, err, reader.ErrShortImage)
}

func TestWriteConfigParamRejectsOutOfRange(t *testing.T) {
	path := writeStock(t)
	err := WriteConfigParam(path, models.ConfigParams[0], 65)
	assert.Error(t, err)
}

func TestWriteConfigParamSigned(t *testing.T) {
	path := writeStock(t)
	var trimMin models.ConfigParam
	for _, p := range models.ConfigParams {
		if p.Name == models.ParamTrimMin {
			trimMin = p
		}
	}
	require.NoError(t, WriteConfigParam(path, trimMin, -100))
	v, err := reader.ReadConfigParam(path, trimMin)
	require.NoError(t, err)
	assert.Equal(t, -100.0, v)
}

func TestEditMapCellDirect(t *testing.T) {
	path := writeStock(t)
	cfg := models.TrimMapConfig(1)

	require.NoError(t, EditMapCellDirect(path, cfg, 2, 3, -5.0))
	img, err := reader.ReadImage(path)
	require.NoError(t, err)
	assert.Equal(t, int16(-26), img.Trim[1].At(2, 3)) // -5 % of 512, rounded

	assert.Error(t, EditMapCellDirect(path, cfg, 16, 0, 1))
}

func TestCreateBackup(t *testing.T) {
	path := writeStock(t)
	backup, err := CreateBackup(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(backup, path+".backup_"))

	orig, _ := os.ReadFile(path)
	copied, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, orig, copied)
}
