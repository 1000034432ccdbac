package reader

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/tosih/secu3-ltft/pkg/models"
)

// ReadConfigParams reads all LTFT calibration parameters from the image file
func ReadConfigParams(filename string) (*models.ECUConfig, error) {
	config := &models.ECUConfig{
		Params: models.ConfigParams,
		Values: make(map[string]float64),
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open image %s", filename)
	}
	defer f.Close()

	for _, param := range models.ConfigParams {
		value, err := readConfigValue(f, param)
		if err != nil {
			continue // Skip if error reading
		}
		config.Values[param.Name] = value
	}

	return config, nil
}

func readConfigValue(f io.ReadSeeker, param models.ConfigParam) (float64, error) {
	_, err := f.Seek(param.Offset, io.SeekStart)
	if err != nil {
		return 0, err
	}

	raw, err := readRaw(f, param.DataType)
	if err != nil {
		return 0, err
	}

	// Apply scale and offset
	return raw*param.Scale + param.Offset2, nil
}
