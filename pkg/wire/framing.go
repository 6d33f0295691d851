package wire

import (
	"fmt"
	"hash/crc32"
)

var castagnociTable = crc32.MakeTable(crc32.Castagnoli)

// ErrTooShort is returned by Unwrap when a datagram is too short to even
// hold a checksum prefix.
var ErrTooShort = fmt.Errorf("%w: datagram shorter than checksum prefix", ErrInvalid)

// ErrChecksumMismatch is returned by Unwrap when the recomputed checksum
// disagrees with the prefix carried on the wire.
var ErrChecksumMismatch = fmt.Errorf("wire: checksum mismatch")

// Checksum computes the CRC32-Castagnoli checksum of b.
func Checksum(b []byte) uint32 {
	return crc32.Checksum(b, castagnociTable)
}

// Wrap prepends a CRC32-Castagnoli checksum to packet, returning a new
// datagram ready to send. packet must already be at most
// MaxEncodedPacketSize bytes.
func Wrap(packet []byte) ([]byte, error) {
	if len(packet) > MaxEncodedPacketSize {
		return nil, fmt.Errorf("%w: encoded packet of %d bytes exceeds %d-byte budget", ErrOverflow, len(packet), MaxEncodedPacketSize)
	}
	out := make([]byte, 0, ChecksumSize+len(packet))
	w := Writer{buf: out, cap: ChecksumSize + len(packet)}
	if err := w.WriteU32(Checksum(packet)); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(packet); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unwrap validates the checksum prefix of a received datagram and returns
// the packet bytes that follow it. A datagram shorter than the checksum
// prefix is dropped (ErrTooShort) and a recomputed checksum that disagrees
// with the prefix is dropped (ErrChecksumMismatch) — in both cases the
// caller must not let any connection state advance.
func Unwrap(datagram []byte) ([]byte, error) {
	if len(datagram) < ChecksumSize {
		return nil, ErrTooShort
	}
	r := NewReader(datagram)
	want, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	tail := r.ReadRemaining()
	if got := Checksum(tail); got != want {
		return nil, ErrChecksumMismatch
	}
	return tail, nil
}
