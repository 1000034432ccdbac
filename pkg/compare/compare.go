package compare

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/reader"
	"github.com/tosih/secu3-ltft/pkg/renderer"
)

// Stats summarizes the difference between two maps
type Stats struct {
	Changed     int
	Cells       int
	Average     float64
	MaxIncrease float64
	MaxDecrease float64
}

// CompareFiles compares maps between two image files, typically a stock
// image and one the engine has learned into
func CompareFiles(file1, file2, mapType string) error {
	pterm.DefaultHeader.WithFullWidth().Println("Image Comparison")

	selectedConfigs, ok := renderer.SelectMaps(mapType)
	if !ok {
		return errors.Errorf("unknown map type: %s", mapType)
	}
	img, err := reader.ReadImage(file1)
	if err != nil {
		return err
	}
	axes := renderer.Axes{RPM: img.RPM, Load: img.Load}

	for _, cfg := range selectedConfigs {
		pterm.Println()
		pterm.DefaultSection.Printf("Comparing: %s\n", cfg.Name)

		map1, err1 := reader.ReadMap(file1, cfg)
		map2, err2 := reader.ReadMap(file2, cfg)

		if err1 != nil || err2 != nil {
			pterm.Error.Println("Failed to read one or both maps")
			continue
		}

		// Calculate differences
		differences := Diff(map1.Data, map2.Data)
		displayComparison(differences, cfg, axes)
	}
	return nil
}

// Diff returns data2 - data1 cell by cell
func Diff(data1, data2 [][]float64) [][]float64 {
	rows := len(data1)
	cols := len(data1[0])
	diff := make([][]float64, rows)

	for i := 0; i < rows; i++ {
		diff[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			diff[i][j] = data2[i][j] - data1[i][j]
		}
	}

	return diff
}

// Summarize computes change statistics of a difference map
func Summarize(diff [][]float64) Stats {
	var s Stats
	var total float64
	for _, row := range diff {
		for _, d := range row {
			s.Cells++
			if d == 0 {
				continue
			}
			s.Changed++
			total += d
			if d > s.MaxIncrease {
				s.MaxIncrease = d
			}
			if d < s.MaxDecrease {
				s.MaxDecrease = d
			}
		}
	}
	if s.Changed > 0 {
		s.Average = total / float64(s.Changed)
	}
	return s
}

func displayComparison(diff [][]float64, cfg models.MapConfig, axes renderer.Axes) {
	s := Summarize(diff)

	pterm.Info.Printf("Changed cells: %d / %d (%.1f%%)\n",
		s.Changed, s.Cells, float64(s.Changed)/float64(s.Cells)*100)
	pterm.Info.Printf("Average change: %.2f %s\n", s.Average, cfg.Unit)
	pterm.Info.Printf("Max increase: %.2f %s\n", s.MaxIncrease, cfg.Unit)
	pterm.Info.Printf("Max decrease: %.2f %s\n", s.MaxDecrease, cfg.Unit)

	// Visualize differences
	pterm.Println("\nDifference Map (File2 - File1):")
	pterm.DefaultBox.Println(visualizeDifferences(diff, cfg, axes))
}

func visualizeDifferences(diff [][]float64, cfg models.MapConfig, axes renderer.Axes) string {
	var result strings.Builder

	// Find max absolute difference for scaling
	maxAbs := 0.0
	for i := 0; i < cfg.Rows; i++ {
		for j := 0; j < cfg.Cols; j++ {
			abs := diff[i][j]
			if abs < 0 {
				abs = -abs
			}
			if abs > maxAbs {
				maxAbs = abs
			}
		}
	}

	// RPM header
	result.WriteString("    RPM → |")
	for j := 0; j < cfg.Cols; j++ {
		result.WriteString(fmt.Sprintf("%-3d", axes.RPM.Points[j]/100))
	}
	result.WriteString("\n")
	result.WriteString("  kPa    |" + strings.Repeat("-", cfg.Cols*3) + "\n")

	// Data rows
	for i := 0; i < cfg.Rows; i++ {
		result.WriteString(fmt.Sprintf("   %3d ↓ |", renderer.LoadKPa(axes.Load.Points[i])))
		for j := 0; j < cfg.Cols; j++ {
			result.WriteString(getDiffSymbol(diff[i][j], maxAbs))
		}
		result.WriteString("\n")
	}

	// Legend
	result.WriteString("\nLegend: ")
	result.WriteString(pterm.FgBlue.Sprint("▼▼") + " Large Decrease  ")
	result.WriteString(pterm.FgCyan.Sprint("▼ ") + " Small Decrease  ")
	result.WriteString(pterm.FgGray.Sprint("··") + " No Change  ")
	result.WriteString(pterm.FgYellow.Sprint("▲ ") + " Small Increase  ")
	result.WriteString(pterm.FgRed.Sprint("▲▲") + " Large Increase")

	return result.String()
}

func getDiffSymbol(val, maxAbs float64) string {
	if val == 0 {
		return pterm.FgGray.Sprint("·· ")
	}

	normalized := val / maxAbs

	if normalized < -0.5 {
		return pterm.FgBlue.Sprint("▼▼ ")
	} else if normalized < -0.1 {
		return pterm.FgCyan.Sprint("▼  ")
	} else if normalized > 0.5 {
		return pterm.FgRed.Sprint("▲▲ ")
	} else if normalized > 0.1 {
		return pterm.FgYellow.Sprint("▲  ")
	}

	return pterm.FgGray.Sprint("·  ")
}
