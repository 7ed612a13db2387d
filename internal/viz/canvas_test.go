package viz

import (
	"strings"
	"testing"
)

func TestSetAndRender(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)

	out := c.String()
	if !strings.ContainsRune(out, '⠁') {
		t.Errorf("expected top-left dot, got %q", out)
	}
}

func TestSetOutOfRangeClipped(t *testing.T) {
	c := NewCanvas(2, 2)
	c.Set(-1, 0)
	c.Set(0, -5)
	c.Set(100, 100)

	for _, r := range c.String() {
		if r != 0x2800 && r != '\n' {
			t.Errorf("expected empty canvas, found %q", r)
		}
	}
}

func TestClear(t *testing.T) {
	c := NewCanvas(2, 2)
	c.Marker(1, 1, 2)
	c.Clear()
	for _, r := range c.String() {
		if r != 0x2800 && r != '\n' {
			t.Errorf("expected cleared canvas, found %q", r)
		}
	}
}

func TestLineEndpoints(t *testing.T) {
	c := NewCanvas(10, 10)
	c.Line(0, 0, 19, 39)

	// both endpoints must be lit
	if c.grid[0][0] == 0x2800 {
		t.Error("line start not drawn")
	}
	if c.grid[9][9] == 0x2800 {
		t.Error("line end not drawn")
	}
}

func TestMarkerCluster(t *testing.T) {
	c := NewCanvas(10, 10)
	c.Marker(10, 20, 1)

	lit := 0
	for _, row := range c.grid {
		for _, r := range row {
			if r != 0x2800 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("marker drew nothing")
	}
}
