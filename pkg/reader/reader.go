package reader

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/tosih/secu3-ltft/pkg/models"
)

// ErrShortImage is returned when an image ends before a table does.
var ErrShortImage = errors.New("calibration image too short")

// Image is the fuelling part of a calibration image.
type Image struct {
	RPM  models.Grid
	Load models.Grid
	VE   models.VETable
	Trim [2]models.TrimTable
}

// ReadImage loads grids and tables from a calibration image file
func ReadImage(filename string) (*Image, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "read image %s", filename)
	}
	return ParseImage(data)
}

// ParseImage decodes grids and tables from raw image bytes
func ParseImage(data []byte) (*Image, error) {
	if len(data) < models.ImageSize {
		return nil, errors.Wrapf(ErrShortImage, "%d bytes, need %d", len(data), models.ImageSize)
	}
	r := bytes.NewReader(data)
	img := &Image{}

	var rpm, load [models.GridSize]int16
	if err := readAt(r, models.RPMGridOffset, &rpm); err != nil {
		return nil, errors.Wrap(err, "rpm grid")
	}
	if err := readAt(r, models.LoadGridOffset, &load); err != nil {
		return nil, errors.Wrap(err, "load grid")
	}
	img.RPM = models.NewGrid(rpm)
	img.Load = models.NewGrid(load)

	if err := readAt(r, models.VEMapOffset, &img.VE); err != nil {
		return nil, errors.Wrap(err, "VE map")
	}
	for ch := range img.Trim {
		if err := readAt(r, models.TrimMapConfig(ch).Offset, &img.Trim[ch]); err != nil {
			return nil, errors.Wrapf(err, "LTFT map %d", ch+1)
		}
	}
	return img, nil
}

func readAt(r io.ReadSeeker, offset int64, v any) error {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	return binary.Read(r, binary.LittleEndian, v)
}

// ReadMap reads a map from the binary file at the specified configuration
func ReadMap(filename string, cfg models.MapConfig) (*models.ECUMap, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	_, err = f.Seek(cfg.Offset, io.SeekStart)
	if err != nil {
		return nil, err
	}

	data := make([][]float64, cfg.Rows)
	for i := 0; i < cfg.Rows; i++ {
		data[i] = make([]float64, cfg.Cols)
		for j := 0; j < cfg.Cols; j++ {
			raw, err := readRaw(f, cfg.DataType)
			if err != nil {
				return nil, errors.Wrapf(err, "%s [%d,%d]", cfg.Name, i, j)
			}
			data[i][j] = raw*cfg.Scale + cfg.Offset2
		}
	}

	return &models.ECUMap{
		Config: cfg,
		Data:   data,
	}, nil
}

// readRaw reads one value of the given data type
func readRaw(r io.Reader, dataType string) (float64, error) {
	switch dataType {
	case "uint8":
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return float64(v), err
	case "int8":
		var v int8
		err := binary.Read(r, binary.LittleEndian, &v)
		return float64(v), err
	case "uint16":
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return float64(v), err
	case "int16":
		var v int16
		err := binary.Read(r, binary.LittleEndian, &v)
		return float64(v), err
	}
	return 0, errors.Errorf("unsupported data type: %s", dataType)
}

// FindMinMax finds the minimum and maximum values in map data
func FindMinMax(data [][]float64) (float64, float64) {
	min := data[0][0]
	max := data[0][0]

	for _, row := range data {
		for _, val := range row {
			if val < min {
				min = val
			}
			if val > max {
				max = val
			}
		}
	}

	return min, max
}

// ReadConfigParam reads a configuration parameter value from the image file
func ReadConfigParam(filename string, param models.ConfigParam) (float64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	_, err = f.Seek(param.Offset, io.SeekStart)
	if err != nil {
		return 0, err
	}

	raw, err := readRaw(f, param.DataType)
	if err != nil {
		return 0, errors.Wrap(err, param.Name)
	}
	return raw*param.Scale + param.Offset2, nil
}
