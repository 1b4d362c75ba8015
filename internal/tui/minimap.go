package tui

import (
	"math"

	"github.com/jmylchreest/winsync/internal/model"
)

// renderMinimap draws every window as a labelled box, scaled so the
// bounding box of all windows fills cols x rows cells. Later entries are
// drawn over earlier ones.
func renderMinimap(entries []model.WindowEntry, cols, rows int) []string {
	if len(entries) == 0 || cols < 3 || rows < 3 {
		return nil
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, e := range entries {
		minX = math.Min(minX, e.Shape.X)
		minY = math.Min(minY, e.Shape.Y)
		maxX = math.Max(maxX, e.Shape.X+e.Shape.W)
		maxY = math.Max(maxY, e.Shape.Y+e.Shape.H)
	}
	spanX := math.Max(maxX-minX, 1)
	spanY := math.Max(maxY-minY, 1)

	grid := make([][]rune, rows)
	for y := range grid {
		grid[y] = make([]rune, cols)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	for i, e := range entries {
		x0 := scale(e.Shape.X, minX, spanX, cols)
		x1 := scale(e.Shape.X+e.Shape.W, minX, spanX, cols)
		y0 := scale(e.Shape.Y, minY, spanY, rows)
		y1 := scale(e.Shape.Y+e.Shape.H, minY, spanY, rows)
		drawBox(grid, x0, y0, x1, y1, mapLabel(i))
	}

	lines := make([]string, rows)
	for y := range grid {
		lines[y] = string(grid[y])
	}
	return lines
}

func scale(v, origin, span float64, n int) int {
	c := int(math.Round((v - origin) / span * float64(n-1)))
	return max(0, min(c, n-1))
}

func drawBox(grid [][]rune, x0, y0, x1, y1 int, label rune) {
	for x := x0; x <= x1; x++ {
		grid[y0][x] = '-'
		grid[y1][x] = '-'
	}
	for y := y0; y <= y1; y++ {
		grid[y][x0] = '|'
		grid[y][x1] = '|'
	}
	grid[y0][x0], grid[y0][x1] = '+', '+'
	grid[y1][x0], grid[y1][x1] = '+', '+'

	if x0+1 < x1 && y0+1 < y1 {
		grid[y0+1][x0+1] = label
	} else {
		grid[y0][x0] = label
	}
}

// mapLabel returns the label of the i-th window (0-based): 1-9, then a-z.
func mapLabel(i int) rune {
	switch {
	case i < 9:
		return rune('1' + i)
	case i < 9+26:
		return rune('a' + i - 9)
	default:
		return '#'
	}
}
