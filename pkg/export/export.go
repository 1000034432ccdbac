package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"github.com/tosih/secu3-ltft/pkg/editor"
	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/reader"
	"github.com/tosih/secu3-ltft/pkg/renderer"
)

// ErrBadCSV is returned when a CSV file is not a map export.
var ErrBadCSV = errors.New("invalid CSV format")

const dataHeader = "Load\\RPM"

// ExportMapsToCSV exports selected maps of an image to CSV files
func ExportMapsToCSV(filename, exportPath, mapType string) error {
	// Create export directory if it doesn't exist
	if err := os.MkdirAll(exportPath, 0755); err != nil {
		return errors.Wrap(err, "create export directory")
	}

	selectedConfigs, ok := renderer.SelectMaps(mapType)
	if !ok {
		return errors.Errorf("unknown map type: %s", mapType)
	}

	img, err := reader.ReadImage(filename)
	if err != nil {
		return err
	}
	axes := renderer.Axes{RPM: img.RPM, Load: img.Load}

	spinner, _ := pterm.DefaultSpinner.Start("Exporting maps to CSV...")

	for _, cfg := range selectedConfigs {
		ecuMap, err := reader.ReadMap(filename, cfg)
		if err != nil {
			spinner.Warning(fmt.Sprintf("Failed to read %s", cfg.Name))
			continue
		}

		if err := ExportMap(ecuMap, axes, CSVName(exportPath, cfg)); err != nil {
			spinner.Warning(fmt.Sprintf("Failed to export %s", cfg.Name))
			continue
		}
	}

	spinner.Success(fmt.Sprintf("Maps exported to %s", exportPath))
	return nil
}

// CSVName returns the export file name of a map
func CSVName(dir string, cfg models.MapConfig) string {
	return filepath.Join(dir, strings.ReplaceAll(strings.ToLower(cfg.Name), " ", "_")+".csv")
}

// ExportMap writes one map to a CSV file
func ExportMap(m *models.ECUMap, axes renderer.Axes, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write metadata as comments
	writer.Write([]string{fmt.Sprintf("# %s", m.Config.Name)})
	writer.Write([]string{fmt.Sprintf("# Offset: 0x%04X", m.Config.Offset)})
	writer.Write([]string{fmt.Sprintf("# Size: %dx%d", m.Config.Rows, m.Config.Cols)})
	writer.Write([]string{fmt.Sprintf("# Unit: %s", m.Config.Unit)})
	writer.Write([]string{""})

	header := []string{dataHeader}
	for j := 0; j < m.Config.Cols; j++ {
		header = append(header, strconv.Itoa(int(axes.RPM.Points[j])))
	}
	writer.Write(header)

	for i := 0; i < m.Config.Rows; i++ {
		row := []string{fmt.Sprintf("%dkPa", renderer.LoadKPa(axes.Load.Points[i]))}
		for j := 0; j < m.Config.Cols; j++ {
			row = append(row, fmt.Sprintf("%.2f", m.Data[i][j]))
		}
		writer.Write(row)
	}

	writer.Flush()
	return writer.Error()
}

// ParseCSV reads a map exported by ExportMap
func ParseCSV(csvFilename string) (*models.ECUMap, error) {
	file, err := os.Open(csvFilename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read CSV")
	}

	// Identify the map by its name comment and find the data start
	var cfg *models.MapConfig
	dataStart := 0
	for i, record := range records {
		if len(record) == 0 {
			continue
		}
		if cfg == nil && strings.HasPrefix(record[0], "# ") {
			name := strings.TrimPrefix(record[0], "# ")
			for k := range models.MapConfigs {
				if models.MapConfigs[k].Name == name {
					cfg = &models.MapConfigs[k]
				}
			}
		}
		if record[0] == dataHeader {
			dataStart = i + 1
			break
		}
	}
	if cfg == nil {
		return nil, errors.Wrap(ErrBadCSV, "unknown map")
	}
	if dataStart == 0 {
		return nil, errors.Wrap(ErrBadCSV, "couldn't find data header")
	}
	if len(records)-dataStart < cfg.Rows {
		return nil, errors.Wrapf(ErrBadCSV, "%d data rows, want %d", len(records)-dataStart, cfg.Rows)
	}

	data := make([][]float64, cfg.Rows)
	for i := 0; i < cfg.Rows; i++ {
		record := records[dataStart+i]
		if len(record) != cfg.Cols+1 {
			return nil, errors.Wrapf(ErrBadCSV, "row %d has %d columns", i, len(record)-1)
		}
		data[i] = make([]float64, cfg.Cols)
		for j := 0; j < cfg.Cols; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[j+1]), 64)
			if err != nil {
				return nil, errors.Wrapf(ErrBadCSV, "row %d column %d: %v", i, j, err)
			}
			data[i][j] = v
		}
	}
	return &models.ECUMap{Config: *cfg, Data: data}, nil
}

// ImportMapFromCSV imports a map from a CSV file into the image file
func ImportMapFromCSV(ecuFilename, csvFilename string, dryRun bool) error {
	pterm.Info.Printf("Importing map from %s\n", csvFilename)

	m, err := ParseCSV(csvFilename)
	if err != nil {
		return err
	}
	pterm.Info.Printf("Found %s (%dx%d)\n", m.Config.Name, m.Config.Rows, m.Config.Cols)

	if dryRun {
		pterm.Warning.Println("DRY RUN - No changes made")
		return nil
	}

	backup, err := editor.CreateBackup(ecuFilename)
	if err != nil {
		return errors.Wrap(err, "backup")
	}
	pterm.Success.Printf("Backup created: %s\n", backup)

	if err := editor.WriteMap(ecuFilename, m.Config, m.Data); err != nil {
		return err
	}
	pterm.Success.Printf("%s imported\n", m.Config.Name)
	return nil
}
