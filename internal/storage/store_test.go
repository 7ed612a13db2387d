package storage

import (
	"math"
	"strings"
	"testing"

	"github.com/rigsim/rigsim/internal/metrics"
)

func sampleRecorder() *metrics.Recorder {
	rec := metrics.NewRecorder(3)
	rec.Observe([]float64{0.1}, []float64{1.0}, 0.0)
	rec.Observe([]float64{0.2}, []float64{0.9}, 0.1)
	rec.Observe([]float64{0.3}, []float64{0.8}, 0.2)
	return rec
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runID, err := st.Save("pendulum", "rk4", 0.001, []string{"pivot"},
		sampleRecorder(), map[string]float64{"peak_velocity": 1.0})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(runID, "pendulum_") {
		t.Errorf("expected world-prefixed run id, got %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if meta.World != "pendulum" || meta.Integrator != "rk4" {
		t.Errorf("metadata mismatch: %+v", meta)
	}
	if math.Abs(meta.Duration-0.2) > 1e-9 {
		t.Errorf("expected duration 0.2, got %f", meta.Duration)
	}
	if len(meta.Joints) != 1 || meta.Joints[0] != "pivot" {
		t.Errorf("joints not persisted: %v", meta.Joints)
	}

	states, times, err := st.LoadStates(runID)
	if err != nil {
		t.Fatalf("load states: %v", err)
	}
	if len(states) != 3 || len(times) != 3 {
		t.Fatalf("expected 3 samples, got %d/%d", len(states), len(times))
	}
	// row = q columns then u columns
	if math.Abs(states[1][0]-0.2) > 1e-6 || math.Abs(states[1][1]-0.9) > 1e-6 {
		t.Errorf("unexpected row: %v", states[1])
	}
}

func TestList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty store, got %d runs", len(runs))
	}

	if _, err := st.Save("a", "rk4", 0.001, nil, sampleRecorder(), nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := st.Save("b", "euler", 0.01, nil, sampleRecorder(), nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestListMissingDir(t *testing.T) {
	st := New(t.TempDir() + "/never-created")
	runs, err := st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestDistinctRunIDs(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	a, _ := st.Save("w", "rk4", 0.001, nil, sampleRecorder(), nil)
	b, _ := st.Save("w", "rk4", 0.001, nil, sampleRecorder(), nil)
	if a == b {
		t.Errorf("expected unique run ids, both %q", a)
	}
}
