package viz

import (
	"strings"
)

// Braille patterns pack 2x4 dots per character cell:
// 1 4
// 2 5
// 3 6
// 7 8
// Unicode offset 0x2800.
var dotBits = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille dot-matrix. Drawing coordinates are sub-pixels:
// (Width*2) x (Height*4).
type Canvas struct {
	Width, Height int
	grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, grid: make([][]rune, h)}
	for i := range c.grid {
		c.grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set turns on the dot at sub-pixel (x, y). Out-of-range dots are
// clipped silently.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.grid[row][col] |= rune(dotBits[y%4][x%2])
}

// Clear blanks the whole canvas.
func (c *Canvas) Clear() {
	for i := range c.grid {
		for j := range c.grid[i] {
			c.grid[i][j] = 0x2800
		}
	}
}

// Line draws from (x0, y0) to (x1, y1) with Bresenham stepping.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Marker draws a filled square of the given half-width around (x, y),
// used for link bodies.
func (c *Canvas) Marker(x, y, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c.Set(x+dx, y+dy)
		}
	}
}

// Circle draws an outline of the given radius around (x, y).
func (c *Canvas) Circle(x, y, r int) {
	if r <= 0 {
		c.Set(x, y)
		return
	}
	cx, cy, d := r, 0, 1-r
	for cx >= cy {
		c.Set(x+cx, y+cy)
		c.Set(x-cx, y+cy)
		c.Set(x+cx, y-cy)
		c.Set(x-cx, y-cy)
		c.Set(x+cy, y+cx)
		c.Set(x-cy, y+cx)
		c.Set(x+cy, y-cx)
		c.Set(x-cy, y-cx)
		cy++
		if d < 0 {
			d += 2*cy + 1
		} else {
			cx--
			d += 2*(cy-cx) + 1
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
