package ltft

import (
	fp "github.com/tosih/secu3-ltft/pkg/fixedpoint"
	"github.com/tosih/secu3-ltft/pkg/models"
)

// ApplyTrim adds the clamped deltas of c to the table. Corners with zero
// weight are skipped so a point on a grid line never disturbs the cells it
// does not touch. It returns the number of corners written.
func ApplyTrim(t *models.TrimTable, c *Correction, min, max int16) int {
	written := 0
	for i := 0; i < 4; i++ {
		if c.Quad.Weights[i] == 0 {
			continue
		}
		l, r := c.Quad.Cell(i)
		cur := int32(t.At(l, r))
		next := fp.Clamp(cur+c.TrimDelta[i], int32(min), int32(max))
		t.Set(l, r, int16(next))
		written++
	}
	return written
}
