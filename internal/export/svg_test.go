package export

import (
	"strings"
	"testing"
)

func TestTrajectorySVG(t *testing.T) {
	points := []Point{{0, 0}, {1, 1}, {2, 0}}
	out := TrajectorySVG(points, 400, 200, "#00ff00")

	if !strings.Contains(out, "<svg") || !strings.Contains(out, "</svg>") {
		t.Error("missing svg envelope")
	}
	if !strings.Contains(out, `stroke="#00ff00"`) {
		t.Error("stroke color not applied")
	}
	if !strings.Contains(out, `width="400"`) {
		t.Error("viewport width not applied")
	}
}

func TestTrajectorySVGTooFewPoints(t *testing.T) {
	if out := TrajectorySVG([]Point{{0, 0}}, 100, 100, "#fff"); out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestTrajectorySVGFlatLine(t *testing.T) {
	// zero Y range must not divide by zero
	points := []Point{{0, 1}, {1, 1}, {2, 1}}
	out := TrajectorySVG(points, 100, 100, "#fff")
	if !strings.Contains(out, "<path") {
		t.Error("flat trajectory not rendered")
	}
	if strings.Contains(out, "NaN") {
		t.Error("NaN leaked into output")
	}
}
