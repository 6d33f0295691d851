package protocol

import (
	"time"

	"github.com/google/uuid"
)

// DefaultWindowSize is the default number of RTT samples a
// RoundtripEstimator retains.
const DefaultWindowSize = 5

// RoundtripEstimator emits echo probes and folds returning echoes into a
// rolling window of observed round-trip times: Tick emits a probe and
// records its send time, HandleEcho resolves it against that record.
type RoundtripEstimator struct {
	windowSize int
	samples    []time.Duration
	next       int
	filled     int
	pending    map[uuid.UUID]time.Time
}

// NewRoundtripEstimator returns an estimator retaining at most windowSize
// samples.
func NewRoundtripEstimator(windowSize int) *RoundtripEstimator {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &RoundtripEstimator{
		windowSize: windowSize,
		samples:    make([]time.Duration, windowSize),
		pending:    make(map[uuid.UUID]time.Time),
	}
}

// Probe is the outcome of Tick: the fresh probe id to send in an Echo
// packet targeting ourselves.
type Probe struct {
	UUID uuid.UUID
}

// Tick generates a fresh probe id, records its send time against now, and
// returns it for the caller to wrap in an outgoing Echo packet.
func (e *RoundtripEstimator) Tick(now time.Time) Probe {
	id := uuid.New()
	e.pending[id] = now
	return Probe{UUID: id}
}

// HandleEcho resolves a returning echo probe. If id is recognized, the
// elapsed time since Tick generated it is folded into the rolling window
// and the entry is removed; unknown ids are ignored.
func (e *RoundtripEstimator) HandleEcho(id uuid.UUID, now time.Time) {
	sentAt, ok := e.pending[id]
	if !ok {
		return
	}
	delete(e.pending, id)
	e.record(now.Sub(sentAt))
}

func (e *RoundtripEstimator) record(d time.Duration) {
	e.samples[e.next] = d
	e.next = (e.next + 1) % e.windowSize
	if e.filled < e.windowSize {
		e.filled++
	}
}

// Estimate returns the mean of the current window, or 0 if no samples have
// been recorded yet.
func (e *RoundtripEstimator) Estimate() time.Duration {
	if e.filled == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < e.filled; i++ {
		sum += e.samples[i]
	}
	return sum / time.Duration(e.filled)
}
