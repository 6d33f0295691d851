package protocol

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRoundtripEstimatorBasic(t *testing.T) {
	e := NewRoundtripEstimator(5)
	start := time.Now()

	p := e.Tick(start)
	e.HandleEcho(p.UUID, start.Add(50*time.Millisecond))

	if got := e.Estimate(); got != 50*time.Millisecond {
		t.Fatalf("Estimate() = %v, want 50ms", got)
	}
}

func TestRoundtripEstimatorIgnoresUnknownUUID(t *testing.T) {
	e := NewRoundtripEstimator(5)
	e.HandleEcho(uuid.New(), time.Now())
	if got := e.Estimate(); got != 0 {
		t.Fatalf("Estimate() = %v, want 0", got)
	}
}

func TestRoundtripEstimatorWindowRolls(t *testing.T) {
	e := NewRoundtripEstimator(2)
	start := time.Now()

	p1 := e.Tick(start)
	e.HandleEcho(p1.UUID, start.Add(10*time.Millisecond))
	p2 := e.Tick(start)
	e.HandleEcho(p2.UUID, start.Add(20*time.Millisecond))
	p3 := e.Tick(start)
	e.HandleEcho(p3.UUID, start.Add(30*time.Millisecond))

	// Window size 2: only the last two samples (20ms, 30ms) should count.
	if got, want := e.Estimate(), 25*time.Millisecond; got != want {
		t.Fatalf("Estimate() = %v, want %v", got, want)
	}
}
