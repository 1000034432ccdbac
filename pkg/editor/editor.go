package editor

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/reader"
)

// CreateBackup creates a timestamped backup of the file
func CreateBackup(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102_150405")
	backupName := filename + ".backup_" + timestamp
	err = os.WriteFile(backupName, data, 0644)
	if err != nil {
		return "", err
	}

	return backupName, nil
}

// EncodeImage lays out grids and tables in a fresh image. The parameter
// block is left zeroed.
func EncodeImage(img *reader.Image) []byte {
	data := make([]byte, models.ImageSize)
	PutImage(data, img)
	return data
}

// PutImage overwrites the grid and table regions of data with img
func PutImage(data []byte, img *reader.Image) {
	for i := 0; i < models.GridSize; i++ {
		binary.LittleEndian.PutUint16(data[models.RPMGridOffset+int64(i*2):], uint16(img.RPM.Points[i]))
		binary.LittleEndian.PutUint16(data[models.LoadGridOffset+int64(i*2):], uint16(img.Load.Points[i]))
	}
	for l := 0; l < models.GridSize; l++ {
		for r := 0; r < models.GridSize; r++ {
			binary.LittleEndian.PutUint16(data[cellOffset(models.MapConfigs[models.MapVE], l, r):], img.VE.At(l, r))
		}
	}
	for ch := range img.Trim {
		PutTrim(data, ch, &img.Trim[ch])
	}
}

// PutTrim overwrites one channel's trim table in data
func PutTrim(data []byte, channel int, t *models.TrimTable) {
	cfg := models.TrimMapConfig(channel)
	for l := 0; l < models.GridSize; l++ {
		for r := 0; r < models.GridSize; r++ {
			binary.LittleEndian.PutUint16(data[cellOffset(cfg, l, r):], uint16(t.At(l, r)))
		}
	}
}

// WriteTrims stores the trim tables into an existing image file
func WriteTrims(filename string, trims [2]*models.TrimTable) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "read image %s", filename)
	}
	if len(data) < models.ImageSize {
		return errors.Wrapf(reader.ErrShortImage, "%s", filename)
	}
	for ch, t := range trims {
		if t != nil {
			PutTrim(data, ch, t)
		}
	}
	return errors.Wrapf(os.WriteFile(filename, data, 0644), "write image %s", filename)
}

// WriteConfigParam writes a configuration parameter value to the image file
func WriteConfigParam(filename string, param models.ConfigParam, value float64) error {
	// Convert real value to raw
	raw := math.Round((value - param.Offset2) / param.Scale)
	if raw < param.MinValue || raw > param.MaxValue {
		return errors.Errorf("%s: %g outside %g..%g", param.Name, raw, param.MinValue, param.MaxValue)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	// Check bounds
	if int(param.Offset)+size(param.DataType) > len(data) {
		return errors.Errorf("offset 0x%X out of bounds", param.Offset)
	}

	if err := putRaw(data[param.Offset:], param.DataType, raw); err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// EditMapCellDirect edits a specific map cell without prompts
func EditMapCellDirect(filename string, cfg models.MapConfig, row, col int, newValue float64) error {
	if row < 0 || row >= cfg.Rows || col < 0 || col >= cfg.Cols {
		return errors.Errorf("invalid cell coordinates: [%d,%d]", row, col)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	off := cellOffset(cfg, row, col)
	if int(off)+size(cfg.DataType) > len(data) {
		return errors.New("cell offset out of bounds")
	}

	raw := math.Round((newValue - cfg.Offset2) / cfg.Scale)
	if err := putRaw(data[off:], cfg.DataType, raw); err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// WriteMap stores a whole map, given in display units, into the image file
func WriteMap(filename string, cfg models.MapConfig, values [][]float64) error {
	if len(values) != cfg.Rows {
		return errors.Errorf("%s: %d rows, want %d", cfg.Name, len(values), cfg.Rows)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if int(cellOffset(cfg, cfg.Rows, 0)) > len(data) {
		return errors.Wrapf(reader.ErrShortImage, "%s", filename)
	}

	for i, row := range values {
		if len(row) != cfg.Cols {
			return errors.Errorf("%s row %d: %d columns, want %d", cfg.Name, i, len(row), cfg.Cols)
		}
		for j, v := range row {
			raw := math.Round((v - cfg.Offset2) / cfg.Scale)
			if err := putRaw(data[cellOffset(cfg, i, j):], cfg.DataType, raw); err != nil {
				return err
			}
		}
	}
	return os.WriteFile(filename, data, 0644)
}

// InteractiveEdit provides a menu for editing or clearing learned trims
func InteractiveEdit(filename string, dryRun bool) {
	pterm.DefaultHeader.WithFullWidth().
		WithBackgroundStyle(pterm.NewStyle(pterm.BgRed)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("LTFT EDIT MODE")

	pterm.Warning.Println("Learned trims are rewritten by the engine on the next learning cycle.")

	options := []string{
		"Edit LTFT 1 Cell",
		"Edit LTFT 2 Cell",
		"Reset LTFT 1",
		"Reset LTFT 2",
		"Exit",
	}

	selectedOption, _ := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		Show("Select what to edit:")

	switch selectedOption {
	case "Edit LTFT 1 Cell":
		editMapCell(filename, models.TrimMapConfig(0), dryRun)
	case "Edit LTFT 2 Cell":
		editMapCell(filename, models.TrimMapConfig(1), dryRun)
	case "Reset LTFT 1":
		resetTrim(filename, 0, dryRun)
	case "Reset LTFT 2":
		resetTrim(filename, 1, dryRun)
	case "Exit":
		pterm.Info.Println("Exiting edit mode.")
	}
}

func editMapCell(filename string, cfg models.MapConfig, dryRun bool) {
	pterm.Info.Printf("Editing %s (%dx%d)\n", cfg.Name, cfg.Rows, cfg.Cols)

	rowStr, _ := pterm.DefaultInteractiveTextInput.Show(fmt.Sprintf("Enter load row (0-%d)", cfg.Rows-1))
	colStr, _ := pterm.DefaultInteractiveTextInput.Show(fmt.Sprintf("Enter RPM column (0-%d)", cfg.Cols-1))
	row, _ := strconv.Atoi(rowStr)
	col, _ := strconv.Atoi(colStr)

	current, err := reader.ReadMap(filename, cfg)
	if err != nil {
		pterm.Error.Printf("Failed to read map: %v\n", err)
		return
	}
	if row < 0 || row >= cfg.Rows || col < 0 || col >= cfg.Cols {
		pterm.Error.Println("Invalid cell coordinates")
		return
	}
	pterm.Info.Printf("Current value at [%d,%d]: %.2f %s\n", row, col, current.Data[row][col], cfg.Unit)

	newValueStr, _ := pterm.DefaultInteractiveTextInput.Show("Enter new value")
	newValue, err := strconv.ParseFloat(newValueStr, 64)
	if err != nil {
		pterm.Error.Printf("Invalid value: %v\n", err)
		return
	}
	if dryRun {
		pterm.Warning.Println("DRY RUN - No changes made")
		return
	}

	if !confirmWithBackup(filename, "Write this change?") {
		return
	}
	if err := EditMapCellDirect(filename, cfg, row, col, newValue); err != nil {
		pterm.Error.Printf("Failed to write: %v\n", err)
		return
	}
	pterm.Success.Println("Cell updated successfully!")
}

func resetTrim(filename string, channel int, dryRun bool) {
	if dryRun {
		pterm.Warning.Printf("DRY RUN - Would clear %s\n", models.TrimMapConfig(channel).Name)
		return
	}
	if !confirmWithBackup(filename, "Clear every learned cell?") {
		return
	}
	var trims [2]*models.TrimTable
	trims[channel] = &models.TrimTable{}
	if err := WriteTrims(filename, trims); err != nil {
		pterm.Error.Printf("Failed to write: %v\n", err)
		return
	}
	pterm.Success.Println("Trim map cleared!")
}

func confirmWithBackup(filename, question string) bool {
	result, _ := pterm.DefaultInteractiveConfirm.Show(question)
	if !result {
		pterm.Info.Println("Cancelled.")
		return false
	}
	backup, err := CreateBackup(filename)
	if err != nil {
		pterm.Error.Printf("Failed to create backup: %v\n", err)
		return false
	}
	pterm.Success.Printf("Backup created: %s\n", backup)
	return true
}

func cellOffset(cfg models.MapConfig, row, col int) int64 {
	return cfg.Offset + int64((row*cfg.Cols+col)*size(cfg.DataType))
}

func size(dataType string) int {
	switch dataType {
	case "uint16", "int16":
		return 2
	}
	return 1
}

func putRaw(b []byte, dataType string, raw float64) error {
	switch dataType {
	case "uint8":
		b[0] = uint8(raw)
	case "int8":
		b[0] = byte(int8(raw))
	case "uint16":
		binary.LittleEndian.PutUint16(b, uint16(raw))
	case "int16":
		binary.LittleEndian.PutUint16(b, uint16(int16(raw)))
	default:
		return errors.Errorf("unsupported data type: %s", dataType)
	}
	return nil
}
