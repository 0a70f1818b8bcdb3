package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/service/lgr"
)

const (
	DefaultReassemblyTTL    = 2 * time.Second
	DefaultMaxPendingFrames = 32
)

type reassembly struct {
	total     uint16
	received  map[uint16][]byte
	firstSeen time.Time
}

// Receiver rebuilds payloads from datagrams keyed by frame id. Incomplete
// frames are evicted after the TTL or when the pending cap is reached.
type Receiver struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxPending int
	pending    map[uint32]*reassembly
	lastSweep  time.Time
	now        func() time.Time
	consume    func(payload []byte)

	packets   int
	malformed int
	frames    int
	evicted   int
}

func NewReceiver(ttl time.Duration, maxPending int, consume func(payload []byte)) *Receiver {
	if ttl <= 0 {
		ttl = DefaultReassemblyTTL
	}
	if maxPending <= 0 {
		maxPending = DefaultMaxPendingFrames
	}
	return &Receiver{
		ttl:        ttl,
		maxPending: maxPending,
		pending:    map[uint32]*reassembly{},
		now:        time.Now,
		consume:    consume,
	}
}

// Handle processes one datagram. The consumer runs on the caller's goroutine
// once a frame is complete.
func (r *Receiver) Handle(datagram []byte) {
	frame := r.add(datagram)
	if frame != nil && r.consume != nil {
		r.consume(frame)
	}
}

func (r *Receiver) add(datagram []byte) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.packets++
	p, err := DecodePacket(datagram)
	if err != nil {
		r.malformed++
		return nil
	}

	now := r.now()
	if now.Sub(r.lastSweep) >= r.ttl/2 {
		r.sweep(now)
		r.lastSweep = now
	}

	e, ok := r.pending[p.FrameID]
	if !ok {
		if len(r.pending) >= r.maxPending {
			r.evictOldest()
		}
		e = &reassembly{total: p.TotalChunks, received: map[uint16][]byte{}, firstSeen: now}
		r.pending[p.FrameID] = e
	} else if e.total != p.TotalChunks {
		e.total = p.TotalChunks
		e.received = map[uint16][]byte{}
		e.firstSeen = now
	}

	e.received[p.ChunkIndex] = append([]byte(nil), p.Payload...)
	if len(e.received) < int(e.total) {
		return nil
	}

	size := 0
	for _, chunk := range e.received {
		size += len(chunk)
	}
	frame := make([]byte, 0, size)
	for i := uint16(0); i < e.total; i++ {
		frame = append(frame, e.received[i]...)
	}
	delete(r.pending, p.FrameID)
	r.frames++
	return frame
}

func (r *Receiver) sweep(now time.Time) {
	for id, e := range r.pending {
		if now.Sub(e.firstSeen) > r.ttl {
			delete(r.pending, id)
			r.evicted++
		}
	}
}

func (r *Receiver) evictOldest() {
	var oldestID uint32
	var oldest *reassembly
	for id, e := range r.pending {
		if oldest == nil || e.firstSeen.Before(oldest.firstSeen) {
			oldestID, oldest = id, e
		}
	}
	if oldest != nil {
		delete(r.pending, oldestID)
		r.evicted++
	}
}

// Run reads datagrams from conn until the context is cancelled.
func (r *Receiver) Run(canxCtx context.Context, conn net.PacketConn) error {
	stop := context.AfterFunc(canxCtx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, 64*1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if canxCtx.Err() != nil {
				lgr.Logger.Info("receiver context cancelled")
				return nil
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return err
		}
		r.Handle(buf[:n])
	}
}

func (r *Receiver) Stats() model.ReceiverStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return model.ReceiverStats{
		Name:      "receiver",
		Packets:   r.packets,
		Malformed: r.malformed,
		Frames:    r.frames,
		Evicted:   r.evicted,
		Pending:   len(r.pending),
	}
}
