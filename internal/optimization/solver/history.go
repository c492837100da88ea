package solver

import (
	"gonum.org/v1/gonum/floats"
)

// History is a fixed-capacity FIFO of curvature pairs (s, y) used by the
// limited-memory strategies. Once full, pushing a pair evicts the oldest.
type History struct {
	s, y  [][]float64
	rho   []float64
	head  int // index of the oldest pair
	count int
	dim   int
}

// NewHistory allocates room for capacity pairs of dimension dim.
func NewHistory(capacity, dim int) *History {
	if capacity < 1 {
		capacity = 1
	}
	h := &History{
		s:   make([][]float64, capacity),
		y:   make([][]float64, capacity),
		rho: make([]float64, capacity),
		dim: dim,
	}
	for i := range h.s {
		h.s[i] = make([]float64, dim)
		h.y[i] = make([]float64, dim)
	}
	return h
}

// Cap returns the capacity m.
func (h *History) Cap() int { return len(h.s) }

// Len returns the number of stored pairs, never more than Cap.
func (h *History) Len() int { return h.count }

// Reset drops every pair.
func (h *History) Reset() {
	h.head, h.count = 0, 0
}

// slot maps the i-th oldest pair to its ring index.
func (h *History) slot(i int) int {
	return (h.head + i) % len(h.s)
}

// Push stores the pair s, y. Pairs with non-positive curvature s·y are
// rejected and Push reports false.
func (h *History) Push(s, y []float64) bool {
	sy := floats.Dot(s, y)
	if !(sy > 0) {
		return false
	}
	var idx int
	if h.count < len(h.s) {
		idx = h.slot(h.count)
		h.count++
	} else {
		idx = h.head
		h.head = (h.head + 1) % len(h.s)
	}
	copy(h.s[idx], s)
	copy(h.y[idx], y)
	h.rho[idx] = 1 / sy
	return true
}

// Pair returns the i-th oldest stored pair. The slices must not be modified.
func (h *History) Pair(i int) (s, y []float64) {
	if i < 0 || i >= h.count {
		panic("solver: history index out of range")
	}
	idx := h.slot(i)
	return h.s[idx], h.y[idx]
}

// ApplyInverse stores H·g in dst, where H is the limited-memory inverse
// Hessian approximation, using the two-loop recursion. When free is non-nil
// only coordinates with free[i] take part: every inner product is restricted
// to them, pairs with no positive curvature on them are skipped, and dst is
// zero elsewhere. It reports whether any pair contributed.
func (h *History) ApplyInverse(dst, g []float64, free []bool) bool {
	m := h.count
	copy(dst, g)
	if free != nil {
		mask(dst, free)
	}
	if m == 0 {
		return false
	}

	alpha := make([]float64, m)
	rho := make([]float64, m)
	used := false
	for i := m - 1; i >= 0; i-- {
		idx := h.slot(i)
		rho[i] = h.rho[idx]
		if free != nil {
			sy := maskedDot(h.s[idx], h.y[idx], free)
			if !(sy > 0) {
				rho[i] = 0
				continue
			}
			rho[i] = 1 / sy
		}
		used = true
		alpha[i] = rho[i] * maskedDot(h.s[idx], dst, free)
		floats.AddScaled(dst, -alpha[i], h.y[idx])
		if free != nil {
			mask(dst, free)
		}
	}
	if !used {
		return false
	}

	// Scale by γ = s·y / y·y of the newest usable pair.
	for i := m - 1; i >= 0; i-- {
		if rho[i] == 0 {
			continue
		}
		idx := h.slot(i)
		yy := maskedDot(h.y[idx], h.y[idx], free)
		if yy > 0 {
			floats.Scale(1/(rho[i]*yy), dst)
		}
		break
	}

	for i := 0; i < m; i++ {
		if rho[i] == 0 {
			continue
		}
		idx := h.slot(i)
		beta := rho[i] * maskedDot(h.y[idx], dst, free)
		floats.AddScaled(dst, alpha[i]-beta, h.s[idx])
		if free != nil {
			mask(dst, free)
		}
	}
	return true
}

func maskedDot(a, b []float64, free []bool) float64 {
	if free == nil {
		return floats.Dot(a, b)
	}
	var sum float64
	for i, ok := range free {
		if ok {
			sum += a[i] * b[i]
		}
	}
	return sum
}

func mask(v []float64, free []bool) {
	for i, ok := range free {
		if !ok {
			v[i] = 0
		}
	}
}
