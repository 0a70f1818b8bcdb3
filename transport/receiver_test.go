package transport

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"
)

func chunks(id uint32, payload []byte, size int) [][]byte {
	total := ChunkCount(len(payload), size)
	var out [][]byte
	for i := 0; i < total; i++ {
		start := i * size
		end := min(start+size, len(payload))
		out = append(out, Packet{
			FrameID:     id,
			TotalChunks: uint16(total),
			ChunkIndex:  uint16(i),
			Payload:     payload[start:end],
		}.AppendTo(nil))
	}
	return out
}

type collector struct {
	frames [][]byte
}

func (c *collector) consume(payload []byte) {
	c.frames = append(c.frames, payload)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func newTestReceiver(ttl time.Duration, maxPending int) (*Receiver, *collector, *fakeClock) {
	c := &collector{}
	clk := &fakeClock{t: time.Unix(1000, 0)}
	r := NewReceiver(ttl, maxPending, c.consume)
	r.now = clk.now
	return r, c, clk
}

func TestReassembleAnyOrder(t *testing.T) {
	r, c, _ := newTestReceiver(time.Second, 8)
	payload := []byte("the quick brown fox jumps over the lazy dog")
	pkts := chunks(7, payload, 10)

	for _, i := range []int{3, 0, 4, 2, 1} {
		r.Handle(pkts[i])
	}

	if len(c.frames) != 1 || !bytes.Equal(c.frames[0], payload) {
		t.Fatalf("frames: got %q", c.frames)
	}
	if r.Stats().Pending != 0 {
		t.Errorf("completed frame should leave no pending entry")
	}
}

func TestStrictSubsetNeverDelivers(t *testing.T) {
	r, c, _ := newTestReceiver(time.Second, 8)
	pkts := chunks(1, make([]byte, 50), 10)

	for _, p := range pkts[:len(pkts)-1] {
		r.Handle(p)
	}
	// Duplicate chunk does not complete the frame
	r.Handle(pkts[0])

	if len(c.frames) != 0 {
		t.Fatalf("incomplete frame delivered")
	}
	if r.Stats().Pending != 1 {
		t.Errorf("pending: got %d, want 1", r.Stats().Pending)
	}
}

func TestInterleavedFrames(t *testing.T) {
	r, c, _ := newTestReceiver(time.Second, 8)
	a := chunks(1, bytes.Repeat([]byte("a"), 25), 10)
	b := chunks(2, bytes.Repeat([]byte("b"), 25), 10)

	r.Handle(a[0])
	r.Handle(b[2])
	r.Handle(a[1])
	r.Handle(b[0])
	r.Handle(b[1])
	r.Handle(a[2])

	if len(c.frames) != 2 {
		t.Fatalf("frames: got %d, want 2", len(c.frames))
	}
	if !bytes.Equal(c.frames[0], bytes.Repeat([]byte("b"), 25)) || !bytes.Equal(c.frames[1], bytes.Repeat([]byte("a"), 25)) {
		t.Errorf("frames mixed up: %q", c.frames)
	}
}

func TestMalformedDropped(t *testing.T) {
	r, c, _ := newTestReceiver(time.Second, 8)

	r.Handle([]byte{1, 2, 3})
	r.Handle(Packet{FrameID: 1, TotalChunks: 0}.AppendTo(nil))
	r.Handle(Packet{FrameID: 1, TotalChunks: 1, ChunkIndex: 5}.AppendTo(nil))

	stats := r.Stats()
	if stats.Malformed != 3 || stats.Pending != 0 || len(c.frames) != 0 {
		t.Errorf("stats: got %+v", stats)
	}
}

func TestPayloadCopied(t *testing.T) {
	r, c, _ := newTestReceiver(time.Second, 8)
	pkts := chunks(1, []byte("hello world"), 6)

	buf := append([]byte(nil), pkts[0]...)
	r.Handle(buf)
	for i := range buf {
		buf[i] = 'X'
	}
	r.Handle(pkts[1])

	if len(c.frames) != 1 || string(c.frames[0]) != "hello world" {
		t.Errorf("frame: got %q", c.frames)
	}
}

func TestTotalMismatchResets(t *testing.T) {
	r, c, _ := newTestReceiver(time.Second, 8)

	r.Handle(Packet{FrameID: 9, TotalChunks: 3, ChunkIndex: 0, Payload: []byte("old")}.AppendTo(nil))
	r.Handle(Packet{FrameID: 9, TotalChunks: 2, ChunkIndex: 1, Payload: []byte("B")}.AppendTo(nil))
	r.Handle(Packet{FrameID: 9, TotalChunks: 2, ChunkIndex: 0, Payload: []byte("A")}.AppendTo(nil))

	if len(c.frames) != 1 || string(c.frames[0]) != "AB" {
		t.Errorf("frames: got %q", c.frames)
	}
}

func TestTTLEviction(t *testing.T) {
	r, c, clk := newTestReceiver(2*time.Second, 8)
	stale := chunks(1, make([]byte, 20), 10)

	r.Handle(stale[0])
	clk.t = clk.t.Add(3 * time.Second)
	r.Handle(chunks(2, []byte("x"), 10)[0])

	stats := r.Stats()
	if stats.Evicted != 1 {
		t.Errorf("evicted: got %d, want 1", stats.Evicted)
	}

	// A late chunk for the evicted frame starts over and cannot complete it
	r.Handle(stale[1])
	if len(c.frames) != 1 || string(c.frames[0]) != "x" {
		t.Errorf("frames: got %q", c.frames)
	}
}

func TestCapEvictsOldest(t *testing.T) {
	r, c, clk := newTestReceiver(time.Hour, 2)

	first := chunks(1, make([]byte, 20), 10)
	r.Handle(first[0])
	clk.t = clk.t.Add(time.Millisecond)
	r.Handle(chunks(2, make([]byte, 20), 10)[0])
	clk.t = clk.t.Add(time.Millisecond)
	r.Handle(chunks(3, make([]byte, 20), 10)[0])

	stats := r.Stats()
	if stats.Pending != 2 || stats.Evicted != 1 {
		t.Fatalf("stats: got %+v", stats)
	}

	r.Handle(first[1])
	if len(c.frames) != 0 {
		t.Errorf("oldest frame should have been evicted, got %q", c.frames)
	}
}

func TestRunWithSender(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	got := make(chan []byte, 1)
	r := NewReceiver(time.Second, 8, func(p []byte) { got <- p })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, conn) }()

	s := NewSender(100)
	defer s.Close()
	if err := s.SetTarget("127.0.0.1", conn.LocalAddr().(*net.UDPAddr).Port); err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("0123456789"), 35)
	if err := s.Send(payload); err != nil {
		t.Fatal(err)
	}

	select {
	case frame := <-got:
		if !bytes.Equal(frame, payload) {
			t.Errorf("frame differs from payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame not received")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
