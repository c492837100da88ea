package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Run is the record of one finished minimization.
type Run struct {
	ID             string     `json:"id"`
	Solver         string     `json:"solver"`
	Objective      string     `json:"objective"`
	X0             []float64  `json:"x0"`
	Status         string     `json:"status"`
	Converged      bool       `json:"converged"`
	X              []float64  `json:"x"`
	Value          float64    `json:"value"`
	Gradient       []float64  `json:"gradient,omitempty"`
	Iterations     int        `json:"iterations"`
	DegradedSteps  int        `json:"degraded_steps"`
	SkippedUpdates int        `json:"skipped_updates"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	DurationMS     float64    `json:"duration_ms"`
}

func (r *Run) finish(res *optimization.Result, end time.Time) {
	r.Status = res.Status.String()
	r.Converged = res.Status.Converged()
	r.X = res.X
	r.Value = res.State.Value()
	r.Gradient = res.State.Gradient()
	r.Iterations = res.Iterations
	r.DegradedSteps = res.DegradedSteps
	r.SkippedUpdates = res.SkippedUpdates
	r.EndTime = &end
	r.DurationMS = float64(end.Sub(r.StartTime).Microseconds()) / 1000.0
}

// RunStore keeps finished runs in memory, oldest evicted first once the
// capacity is reached.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	order    []string
	capacity int
}

// NewRunStore creates a store holding at most capacity runs; capacity < 1
// means unbounded.
func NewRunStore(capacity int) *RunStore {
	return &RunStore{
		runs:     make(map[string]*Run),
		capacity: capacity,
	}
}

// Create registers a new run and returns it with a fresh ID.
func (s *RunStore) Create(solver, objective string, x0 []float64) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &Run{
		ID:        uuid.New().String(),
		Solver:    solver,
		Objective: objective,
		X0:        append([]float64(nil), x0...),
		Status:    "running",
		StartTime: time.Now(),
	}
	if s.capacity > 0 && len(s.order) >= s.capacity {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	return run
}

// Update applies fn to the run with the given ID under the write lock.
func (s *RunStore) Update(id string, fn func(*Run)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return false
	}
	fn(run)
	return true
}

// Get returns a copy of the run with the given ID.
func (s *RunStore) Get(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// Delete removes a run and reports whether it existed.
func (s *RunStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return false
	}
	delete(s.runs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns copies of all runs, oldest first.
func (s *RunStore) List() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, id := range s.order {
		runs = append(runs, *s.runs[id])
	}
	return runs
}

// Len returns the number of stored runs.
func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
