package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// PhaseStats summarizes recent dwell times for one turn phase.
type PhaseStats struct {
	Phase       string  `json:"phase"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

// PhaseSnapshot is the full latency view served by the perf endpoint.
type PhaseSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Phases      []PhaseStats `json:"phases"`
}

type phaseWindow struct {
	mu         sync.RWMutex
	maxSamples int
	phases     map[string]*phaseBuffer
}

type phaseBuffer struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func newPhaseWindow(maxSamples int) *phaseWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &phaseWindow{
		maxSamples: maxSamples,
		phases:     make(map[string]*phaseBuffer),
	}
}

func (w *phaseWindow) Observe(phase string, ms float64) {
	if phase == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.phases[phase]
	if !ok {
		buf = &phaseBuffer{values: make([]float64, w.maxSamples)}
		w.phases[phase] = buf
	}
	buf.values[buf.next] = ms
	buf.last = ms
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

func (w *phaseWindow) Snapshot() PhaseSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.phases))
	for phase := range w.phases {
		keys = append(keys, phase)
	}
	sort.Strings(keys)

	phases := make([]PhaseStats, 0, len(keys))
	for _, phase := range keys {
		buf := w.phases[phase]
		n := buf.next
		if buf.filled {
			n = len(buf.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, buf.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}

		phases = append(phases, PhaseStats{
			Phase:       phase,
			Samples:     n,
			LastMS:      round2(buf.last),
			AvgMS:       round2(sum / float64(n)),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			P99MS:       round2(quantile(samples, 0.99)),
			TargetP95MS: phaseTargetP95MS(phase),
		})
	}

	return PhaseSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Phases:      phases,
	}
}

// ObservePhase records how long the turn machine dwelled in one phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.phases.Observe(phase, float64(d.Milliseconds()))
}

// SnapshotPhases serves the perf endpoint.
func (m *Metrics) SnapshotPhases() PhaseSnapshot {
	return m.phases.Snapshot()
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// phaseTargetP95MS returns the p95 latency target for machine-bound phases.
// Student-paced phases (listening, retry) have no target.
func phaseTargetP95MS(phase string) float64 {
	switch phase {
	case "prompting":
		return 1500
	case "classifying":
		return 50
	case "grading":
		return 800
	case "help_response":
		return 2500
	case "feedback":
		return 1500
	default:
		return 0
	}
}
