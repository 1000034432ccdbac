package scanner

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/tosih/secu3-ltft/pkg/config"
	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/reader"
)

// ScanResult summarizes the learned trims of one lambda channel
type ScanResult struct {
	Channel    int
	Learned    int // cells holding a non-zero trim
	AtMin      int // learned cells pinned at the lower clamp
	AtMax      int // learned cells pinned at the upper clamp
	Min        float64
	Max        float64
	Variance   float64
	Worst      [2]int // load and RPM index of the largest magnitude
	WorstValue float64
}

// Saturated reports whether any cell sits on a clamp limit. Learning can
// no longer follow the engine there; the base VE table needs fixing.
func (r ScanResult) Saturated() bool {
	return r.AtMin > 0 || r.AtMax > 0
}

// ScanImage reads an image and scans both trim tables against the clamp
// limits stored in it
func ScanImage(filename string) ([]ScanResult, error) {
	img, err := reader.ReadImage(filename)
	if err != nil {
		return nil, err
	}
	params, err := reader.ReadConfigParams(filename)
	if err != nil {
		return nil, err
	}
	cal := config.DefaultCalibration()
	cal.ApplyImageParams(params.Values)

	results := make([]ScanResult, 0, len(img.Trim))
	for ch := range img.Trim {
		results = append(results, ScanTrim(ch, &img.Trim[ch], cal.TrimMin, cal.TrimMax))
	}
	return results, nil
}

// ScanTrim computes the statistics of one trim table, in percent
func ScanTrim(channel int, t *models.TrimTable, min, max int16) ScanResult {
	cfg := models.TrimMapConfig(channel)
	res := ScanResult{Channel: channel}
	values := make([]float64, 0, models.GridSize*models.GridSize)

	for l := 0; l < models.GridSize; l++ {
		for r := 0; r < models.GridSize; r++ {
			raw := t.At(l, r)
			v := float64(raw)*cfg.Scale + cfg.Offset2
			values = append(values, v)
			if raw == 0 {
				continue
			}
			res.Learned++
			if raw <= min {
				res.AtMin++
			}
			if raw >= max {
				res.AtMax++
			}
			if abs(v) > abs(res.WorstValue) {
				res.WorstValue = v
				res.Worst = [2]int{l, r}
			}
		}
	}

	res.Min, res.Max, res.Variance = calculateStats(values)
	return res
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func calculateStats(values []float64) (float64, float64, float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	min := values[0]
	max := values[0]
	sum := 0.0

	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	avg := sum / float64(len(values))

	// Calculate variance
	variance := 0.0
	for _, v := range values {
		diff := v - avg
		variance += diff * diff
	}
	variance /= float64(len(values))

	return min, max, variance
}

// ScanForSaturation scans an image and prints a table of the results
func ScanForSaturation(filename string) {
	spinner, _ := pterm.DefaultSpinner.Start("Scanning learned trims...")

	results, err := ScanImage(filename)
	if err != nil {
		spinner.Fail("Error reading image")
		pterm.Error.Printf("Error: %v\n", err)
		return
	}
	spinner.Success(fmt.Sprintf("Scanned %d trim tables", len(results)))

	pterm.Println()
	displayResults(results)
}

func displayResults(results []ScanResult) {
	tableData := pterm.TableData{
		{"Channel", "Learned", "At Min", "At Max", "Min %", "Max %", "Variance", "Worst Cell"},
	}

	saturated := 0
	for _, result := range results {
		if result.Saturated() {
			saturated++
		}
		tableData = append(tableData, []string{
			fmt.Sprintf("%d", result.Channel+1),
			fmt.Sprintf("%d", result.Learned),
			fmt.Sprintf("%d", result.AtMin),
			fmt.Sprintf("%d", result.AtMax),
			fmt.Sprintf("%.2f", result.Min),
			fmt.Sprintf("%.2f", result.Max),
			fmt.Sprintf("%.2f", result.Variance),
			fmt.Sprintf("%d/%d (%.2f%%)", result.Worst[0], result.Worst[1], result.WorstValue),
		})
	}

	pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	if saturated > 0 {
		pterm.Warning.Printf("%d channel(s) have cells at a clamp limit, check the base VE map\n", saturated)
	}
}
