package transport

import (
	"bytes"
	"errors"
	"testing"
)

func TestPacketWireFormat(t *testing.T) {
	got := Packet{FrameID: 0x01020304, TotalChunks: 3, ChunkIndex: 1, Payload: []byte("ab")}.AppendTo(nil)
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x00, 0x03, 0x00, 0x01, 'a', 'b'}
	if !bytes.Equal(got, want) {
		t.Fatalf("wire bytes: got %v, want %v", got, want)
	}

	p, err := DecodePacket(got)
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if p.FrameID != 0x01020304 || p.TotalChunks != 3 || p.ChunkIndex != 1 || string(p.Payload) != "ab" {
		t.Errorf("decoded: got %+v", p)
	}
}

func TestDecodePacketRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortPacket},
		{"seven bytes", []byte{0, 0, 0, 1, 0, 1, 0}, ErrShortPacket},
		{"zero total", Packet{FrameID: 1, TotalChunks: 0, ChunkIndex: 0}.AppendTo(nil), ErrBadChunk},
		{"index past total", Packet{FrameID: 1, TotalChunks: 2, ChunkIndex: 2}.AppendTo(nil), ErrBadChunk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePacket(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct{ n, size, want int }{
		{0, 1200, 1},
		{1, 1200, 1},
		{1200, 1200, 1},
		{1201, 1200, 2},
		{3000, 1200, 3},
	}
	for _, tt := range tests {
		if got := ChunkCount(tt.n, tt.size); got != tt.want {
			t.Errorf("ChunkCount(%d, %d) = %d, want %d", tt.n, tt.size, got, tt.want)
		}
	}
}
