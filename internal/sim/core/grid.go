package core

import "math"

// OccluderGrid is a uniform grid of solid cells used for line-of-sight
// checks. Cell (cx, cy) covers [cx*CellSize, (cx+1)*CellSize) on each axis
// starting from Origin.
type OccluderGrid struct {
	Origin   Vec2
	CellSize float64
	Cols     int
	Rows     int
	Solid    []bool // len Cols*Rows, row-major
}

func NewOccluderGrid(origin Vec2, cellSize float64, cols, rows int) *OccluderGrid {
	return &OccluderGrid{
		Origin:   origin,
		CellSize: cellSize,
		Cols:     cols,
		Rows:     rows,
		Solid:    make([]bool, cols*rows),
	}
}

func (g *OccluderGrid) cellAt(p Vec2) (int, int) {
	cx := int(math.Floor((p.X - g.Origin.X) / g.CellSize))
	cy := int(math.Floor((p.Y - g.Origin.Y) / g.CellSize))
	return cx, cy
}

// SolidAt reports whether the cell containing p is solid. Points outside the
// grid are open.
func (g *OccluderGrid) SolidAt(p Vec2) bool {
	cx, cy := g.cellAt(p)
	return g.solidCell(cx, cy)
}

func (g *OccluderGrid) solidCell(cx, cy int) bool {
	if cx < 0 || cx >= g.Cols || cy < 0 || cy >= g.Rows {
		return false
	}
	return g.Solid[cy*g.Cols+cx]
}

func (g *OccluderGrid) SetSolid(cx, cy int, solid bool) {
	if cx < 0 || cx >= g.Cols || cy < 0 || cy >= g.Rows {
		return
	}
	g.Solid[cy*g.Cols+cx] = solid
}

// LineClear reports whether the open segment from a to b crosses no solid
// cell. The endpoints' own cells are skipped so an agent standing flush
// against a wall can still see out of it.
func (g *OccluderGrid) LineClear(a, b Vec2) bool {
	if g == nil {
		return true
	}
	ax, ay := g.cellAt(a)
	bx, by := g.cellAt(b)

	// Amanatides & Woo voxel traversal.
	dir := b.Sub(a)
	dist := dir.Len()
	if dist < 1e-9 {
		return true
	}
	dir = dir.Scale(1 / dist)

	stepX, stepY := 1, 1
	if dir.X < 0 {
		stepX = -1
	}
	if dir.Y < 0 {
		stepY = -1
	}

	next := func(p, o float64, c int, step int) float64 {
		var edge float64
		if step > 0 {
			edge = o + float64(c+1)*g.CellSize
		} else {
			edge = o + float64(c)*g.CellSize
		}
		return edge - p
	}

	tMaxX, tMaxY := math.Inf(1), math.Inf(1)
	tDeltaX, tDeltaY := math.Inf(1), math.Inf(1)
	if dir.X != 0 {
		tMaxX = next(a.X, g.Origin.X, ax, stepX) / dir.X
		tDeltaX = g.CellSize / math.Abs(dir.X)
	}
	if dir.Y != 0 {
		tMaxY = next(a.Y, g.Origin.Y, ay, stepY) / dir.Y
		tDeltaY = g.CellSize / math.Abs(dir.Y)
	}

	cx, cy := ax, ay
	for cx != bx || cy != by {
		if tMaxX < tMaxY {
			cx += stepX
			tMaxX += tDeltaX
		} else {
			cy += stepY
			tMaxY += tDeltaY
		}
		if cx == bx && cy == by {
			break
		}
		if g.solidCell(cx, cy) {
			return false
		}
	}
	return true
}
