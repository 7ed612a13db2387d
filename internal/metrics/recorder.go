package metrics

// Recorder captures the full state trajectory of a run for later
// persistence or plotting.
type Recorder struct {
	Times  []float64
	Coords [][]float64
	Vels   [][]float64
}

// NewRecorder returns an empty recorder, optionally preallocated for
// the expected sample count.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{
		Times:  make([]float64, 0, capacity),
		Coords: make([][]float64, 0, capacity),
		Vels:   make([][]float64, 0, capacity),
	}
}

// Observe appends one sample. The slices are copied; the caller may
// reuse its buffers.
func (r *Recorder) Observe(q, u []float64, t float64) {
	qc := make([]float64, len(q))
	copy(qc, q)
	uc := make([]float64, len(u))
	copy(uc, u)
	r.Times = append(r.Times, t)
	r.Coords = append(r.Coords, qc)
	r.Vels = append(r.Vels, uc)
}

// Len returns the recorded sample count.
func (r *Recorder) Len() int { return len(r.Times) }

// Reset drops all recorded samples, keeping capacity.
func (r *Recorder) Reset() {
	r.Times = r.Times[:0]
	r.Coords = r.Coords[:0]
	r.Vels = r.Vels[:0]
}
