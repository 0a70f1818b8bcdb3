package transport

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// HeaderSize is the length of the big-endian frameId/totalChunks/chunkIndex
// header that prefixes every datagram.
const HeaderSize = 8

// MaxChunks is the largest chunk count the header can carry
const MaxChunks = 1<<16 - 1

var (
	ErrShortPacket = xerrors.New("datagram shorter than header")
	ErrBadChunk    = xerrors.New("chunk index out of range")
)

type Packet struct {
	FrameID     uint32
	TotalChunks uint16
	ChunkIndex  uint16
	Payload     []byte
}

// AppendTo appends the wire form of p to dst.
func (p Packet) AppendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, p.FrameID)
	dst = binary.BigEndian.AppendUint16(dst, p.TotalChunks)
	dst = binary.BigEndian.AppendUint16(dst, p.ChunkIndex)
	return append(dst, p.Payload...)
}

// DecodePacket parses a datagram. The returned payload aliases b.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrShortPacket
	}

	p := Packet{
		FrameID:     binary.BigEndian.Uint32(b[0:4]),
		TotalChunks: binary.BigEndian.Uint16(b[4:6]),
		ChunkIndex:  binary.BigEndian.Uint16(b[6:8]),
		Payload:     b[HeaderSize:],
	}
	if p.TotalChunks == 0 || p.ChunkIndex >= p.TotalChunks {
		return Packet{}, ErrBadChunk
	}
	return p, nil
}

// ChunkCount is the number of datagrams needed for a payload of n bytes.
// An empty payload still takes one datagram.
func ChunkCount(n, chunkSize int) int {
	if n == 0 {
		return 1
	}
	return (n + chunkSize - 1) / chunkSize
}
