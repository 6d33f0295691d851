package protocol

import "testing"

func TestAckManagerDuplicateSubmitCollapses(t *testing.T) {
	m := NewAckManager()
	m.SubmitData(1, 10)
	m.SubmitData(1, 10)
	m.SubmitData(1, 10)

	acks := m.IterNeedsAck()
	if len(acks) != 1 {
		t.Fatalf("got %d pending acks, want 1", len(acks))
	}
	if acks[0].Channel != 1 || acks[0].SequenceNumber != 10 {
		t.Fatalf("unexpected ack %+v", acks[0])
	}
}

func TestAckManagerIterClearsPending(t *testing.T) {
	m := NewAckManager()
	m.SubmitData(1, 1)
	m.SubmitData(2, 2)

	first := m.IterNeedsAck()
	if len(first) != 2 {
		t.Fatalf("got %d acks, want 2", len(first))
	}

	second := m.IterNeedsAck()
	if len(second) != 0 {
		t.Fatalf("got %d acks on second call, want 0", len(second))
	}
}

func TestAckManagerSubmitAckMarksDelivered(t *testing.T) {
	m := NewAckManager()
	m.MarkSent(1, 5)

	if !m.SubmitAck(1, 5) {
		t.Fatalf("SubmitAck(1, 5) = false, want true")
	}
	if m.SubmitAck(1, 5) {
		t.Fatalf("SubmitAck(1, 5) second call = true, want false")
	}
}

func TestAckManagerSubmitAckUnknownIsNoop(t *testing.T) {
	m := NewAckManager()
	if m.SubmitAck(9, 9) {
		t.Fatalf("SubmitAck on unknown entry = true, want false")
	}
}
