package protocol

// channelSeq identifies one (channel, sequence_number) pair, the unit the
// ack manager tracks in both directions.
type channelSeq struct {
	channel uint16
	seq     uint64
}

// AckManager tracks, for one connection, which reliable Data packets we've
// received and still owe an Ack for, and which reliable Data packets we've
// sent and are still waiting to see Acked. Keying both sets by
// (channel, sequence_number) makes resubmission of the same pair a no-op.
type AckManager struct {
	pendingAcks  map[channelSeq]struct{}
	outstanding  map[channelSeq]struct{}
}

// NewAckManager returns an AckManager with empty pending/outstanding sets.
func NewAckManager() *AckManager {
	return &AckManager{
		pendingAcks: make(map[channelSeq]struct{}),
		outstanding: make(map[channelSeq]struct{}),
	}
}

// SubmitData records that a reliable Data packet (channel, seq) was
// received and now needs an outgoing Ack. Submitting the same pair twice is
// a no-op: duplicates do not cause duplicate enqueues.
func (m *AckManager) SubmitData(channel uint16, seq uint64) {
	m.pendingAcks[channelSeq{channel, seq}] = struct{}{}
}

// MarkSent records that we sent a reliable Data packet (channel, seq) and
// are now waiting on its Ack.
func (m *AckManager) MarkSent(channel uint16, seq uint64) {
	m.outstanding[channelSeq{channel, seq}] = struct{}{}
}

// SubmitAck removes (channel, seq) from the outstanding-sent set, marking
// that reliable Data as delivered. Reports whether an outstanding entry was
// actually found.
func (m *AckManager) SubmitAck(channel uint16, seq uint64) bool {
	key := channelSeq{channel, seq}
	if _, ok := m.outstanding[key]; !ok {
		return false
	}
	delete(m.outstanding, key)
	return true
}

// IterNeedsAck returns every pending Ack exactly once and clears the
// pending set. Ordering is unspecified.
func (m *AckManager) IterNeedsAck() []Ack {
	if len(m.pendingAcks) == 0 {
		return nil
	}
	out := make([]Ack, 0, len(m.pendingAcks))
	for k := range m.pendingAcks {
		out = append(out, Ack{Channel: k.channel, SequenceNumber: k.seq})
		delete(m.pendingAcks, k)
	}
	return out
}

// Ack is the (channel, sequence_number) pair an AckManager emits from
// IterNeedsAck, kept distinct from wire.Ack so this package has no
// dependency on the codec.
type Ack struct {
	Channel        uint16
	SequenceNumber uint64
}
