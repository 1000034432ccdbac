package renderer

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/tosih/secu3-ltft/pkg/ltft"
	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/reader"
)

// Axes labels map columns with RPM and rows with load
type Axes struct {
	RPM  models.Grid
	Load models.Grid
}

// RenderMap displays a map with optional verbose output and display mode
func RenderMap(m *models.ECUMap, axes Axes, verbose bool, displayMode string, min, max float64) {
	title := fmt.Sprintf("%s | Offset: 0x%04X | %dx%d | Range: %.2f-%.2f %s",
		m.Config.Name, m.Config.Offset, m.Config.Rows, m.Config.Cols, min, max, m.Config.Unit)

	if verbose {
		pterm.Info.Println(m.Config.Description)
	}
	pterm.DefaultBox.WithTitle(title).WithTitleTopLeft().Println(BuildMapString(m, axes, displayMode, min, max))
}

// BuildMapString creates a formatted string representation of the map
func BuildMapString(m *models.ECUMap, axes Axes, displayMode string, min, max float64) string {
	var result strings.Builder

	// Header
	result.WriteString("    RPM → |")
	for j := 0; j < m.Config.Cols; j++ {
		rpm := axes.RPM.Points[j]
		if displayMode == "values" {
			result.WriteString(fmt.Sprintf("%6d", rpm))
		} else {
			result.WriteString(fmt.Sprintf("%-4d", rpm/100))
		}
	}
	result.WriteString("\n")

	// Separator
	sep := 6
	if displayMode != "values" {
		sep = 4
	}
	result.WriteString("  kPa    |" + strings.Repeat("-", m.Config.Cols*sep) + "\n")

	// Data rows
	for i := 0; i < m.Config.Rows; i++ {
		result.WriteString(fmt.Sprintf("   %3d ↓ |", LoadKPa(axes.Load.Points[i])))
		for j := 0; j < m.Config.Cols; j++ {
			value := m.Data[i][j]
			if displayMode == "values" {
				color := getColorStyle(value, min, max)
				result.WriteString(color.Sprintf("%6.2f", value))
			} else if displayMode == "heatmap" {
				result.WriteString(getHeatmapBlock(value, min, max))
			} else {
				symbol := getSymbolForValue(value, min, max)
				result.WriteString(symbol + symbol + symbol + symbol)
			}
		}
		result.WriteString("\n")
	}

	// Legend
	if displayMode == "heatmap" {
		result.WriteString("\n" + getHeatmapLegend())
	} else if displayMode == "symbols" {
		result.WriteString("\nLegend: ")
		result.WriteString(pterm.FgCyan.Sprint("░") + " Low  ")
		result.WriteString(pterm.FgGreen.Sprint("▒") + " Med  ")
		result.WriteString(pterm.FgYellow.Sprint("▓") + " High  ")
		result.WriteString(pterm.FgRed.Sprint("█") + " Max")
	}

	return result.String()
}

// LoadKPa converts a load grid value (kPa x64) to whole kPa
func LoadKPa(v int16) int {
	return int(v) / 64
}

func getHeatmapBlock(value, min, max float64) string {
	if max == min {
		return pterm.BgGray.Sprint("  ")
	}

	normalized := (value - min) / (max - min)

	switch {
	case normalized < 0.2:
		return pterm.NewStyle(pterm.BgBlue, pterm.FgWhite).Sprint("▄▄")
	case normalized < 0.4:
		return pterm.NewStyle(pterm.BgCyan, pterm.FgBlack).Sprint("▄▄")
	case normalized < 0.6:
		return pterm.NewStyle(pterm.BgGreen, pterm.FgBlack).Sprint("▄▄")
	case normalized < 0.8:
		return pterm.NewStyle(pterm.BgYellow, pterm.FgBlack).Sprint("▄▄")
	default:
		return pterm.NewStyle(pterm.BgRed, pterm.FgWhite).Sprint("▄▄")
	}
}

func getHeatmapLegend() string {
	var result strings.Builder
	result.WriteString("Heatmap: ")
	result.WriteString(pterm.NewStyle(pterm.BgBlue, pterm.FgWhite).Sprint("▄▄") + " Very Lean  ")
	result.WriteString(pterm.NewStyle(pterm.BgCyan, pterm.FgBlack).Sprint("▄▄") + " Lean  ")
	result.WriteString(pterm.NewStyle(pterm.BgGreen, pterm.FgBlack).Sprint("▄▄") + " Neutral  ")
	result.WriteString(pterm.NewStyle(pterm.BgYellow, pterm.FgBlack).Sprint("▄▄") + " Rich  ")
	result.WriteString(pterm.NewStyle(pterm.BgRed, pterm.FgWhite).Sprint("▄▄") + " Very Rich")
	return result.String()
}

func getSymbolForValue(value, min, max float64) string {
	if max == min {
		return pterm.FgGray.Sprint("·")
	}

	normalized := (value - min) / (max - min)

	switch {
	case normalized < 0.25:
		return pterm.FgCyan.Sprint("░")
	case normalized < 0.5:
		return pterm.FgGreen.Sprint("▒")
	case normalized < 0.75:
		return pterm.FgYellow.Sprint("▓")
	default:
		return pterm.FgRed.Sprint("█")
	}
}

func getColorStyle(value, min, max float64) *pterm.Style {
	if max == min {
		return pterm.NewStyle(pterm.FgGray)
	}

	normalized := (value - min) / (max - min)

	switch {
	case normalized < 0.25:
		return pterm.NewStyle(pterm.FgCyan)
	case normalized < 0.5:
		return pterm.NewStyle(pterm.FgGreen)
	case normalized < 0.75:
		return pterm.NewStyle(pterm.FgYellow)
	default:
		return pterm.NewStyle(pterm.FgRed)
	}
}

// ListAvailableMaps displays all maps of the calibration image in a table
func ListAvailableMaps() {
	pterm.DefaultHeader.WithFullWidth().Println("Available Maps")

	data := [][]string{
		{"Name", "Offset", "Size", "Unit", "Description"},
	}

	for _, cfg := range models.MapConfigs {
		data = append(data, []string{
			cfg.Name,
			fmt.Sprintf("0x%04X", cfg.Offset),
			fmt.Sprintf("%dx%d", cfg.Rows, cfg.Cols),
			cfg.Unit,
			cfg.Description,
		})
	}

	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// SelectMaps returns the map configurations named by mapType
func SelectMaps(mapType string) ([]models.MapConfig, bool) {
	switch mapType {
	case "ve":
		return []models.MapConfig{models.MapConfigs[models.MapVE]}, true
	case "ltft", "ltft1":
		return []models.MapConfig{models.TrimMapConfig(0)}, true
	case "ltft2":
		return []models.MapConfig{models.TrimMapConfig(1)}, true
	case "all":
		return models.MapConfigs, true
	}
	return nil, false
}

// DisplayMaps reads and displays the selected maps of an image
func DisplayMaps(filename, mapType string, verbose bool, displayMode string) {
	selectedConfigs, ok := SelectMaps(mapType)
	if !ok {
		pterm.Error.Printf("Unknown map type: %s\n", mapType)
		return
	}

	img, err := reader.ReadImage(filename)
	if err != nil {
		pterm.Error.Printf("Error reading %s: %v\n", filename, err)
		return
	}
	axes := Axes{RPM: img.RPM, Load: img.Load}

	pterm.DefaultHeader.WithFullWidth().
		WithBackgroundStyle(pterm.NewStyle(pterm.BgDarkGray)).
		WithTextStyle(pterm.NewStyle(pterm.FgLightWhite)).
		Println("SECU-3 LTFT Reader")

	pterm.Println()

	for i, cfg := range selectedConfigs {
		if i > 0 {
			pterm.Println()
		}
		ecuMap, err := reader.ReadMap(filename, cfg)
		if err != nil {
			pterm.Error.Printf("Error reading %s: %v\n", cfg.Name, err)
			continue
		}

		min, max := reader.FindMinMax(ecuMap.Data)
		RenderMap(ecuMap, axes, verbose, displayMode, min, max)
	}
}

// RenderStatus prints an engine status snapshot
func RenderStatus(s ltft.Status) {
	pterm.DefaultSection.Println("Learning status")
	pterm.Info.Printf("Active: %t | Suspended: %s | Corrections: %d\n", s.Active, s.Suspended, s.Corrections)

	data := [][]string{{"Channel", "State", "Strokes", "Cell"}}
	for ch, c := range s.Channels {
		data = append(data, []string{
			fmt.Sprintf("%d", ch+1),
			c.State.String(),
			fmt.Sprintf("%d", c.Strokes),
			fmt.Sprintf("%d/%d", c.LoadIndex, c.RPMIndex),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
