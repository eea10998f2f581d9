package mission

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"tacsim.ai/internal/sim/core"
)

// generateCity lays out the occluder grid: solid building cells carved by a
// street lattice, density shaped by noise so districts cluster naturally.
// The layout is a pure function of the seed; restores regenerate it instead
// of persisting every cell.
func generateCity(seed int64, cols, rows int, cellSize float64) *core.OccluderGrid {
	grid := core.NewOccluderGrid(core.Vec2{}, cellSize, cols, rows)
	noise := opensimplex.NewNormalized(seed)

	const (
		blockPitch = 6 // cells between street centerlines
		freq       = 0.11
	)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			// Streets stay open.
			if x%blockPitch == 0 || y%blockPitch == 0 {
				continue
			}
			d := noise.Eval2(float64(x)*freq, float64(y)*freq)
			if d > 0.45 {
				grid.SetSolid(x, y, true)
				continue
			}
			// Sparse clutter (kiosks, parked trucks) off the main lattice.
			if core.Hash2(seed, x, y)%1000 < 12 {
				grid.SetSolid(x, y, true)
			}
		}
	}

	// Keep the map border open so spawn points at the edge can path inward.
	for x := 0; x < cols; x++ {
		grid.SetSolid(x, 0, false)
		grid.SetSolid(x, rows-1, false)
	}
	for y := 0; y < rows; y++ {
		grid.SetSolid(0, y, false)
		grid.SetSolid(cols-1, y, false)
	}
	return grid
}
