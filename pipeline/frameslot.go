package pipeline

import "sync/atomic"

// FrameSlot holds only the most recent frame. Capture never blocks and
// always replaces whatever is there.
type FrameSlot struct {
	cur        atomic.Pointer[FrameData]
	read       atomic.Bool
	overwrites atomic.Uint64
}

func (s *FrameSlot) Capture(frame *FrameData) {
	if old := s.cur.Swap(frame); old != nil && !s.read.Swap(false) {
		s.overwrites.Add(1)
	}
}

// Snapshot returns the latest frame or nil before the first capture.
func (s *FrameSlot) Snapshot() *FrameData {
	f := s.cur.Load()
	if f != nil {
		s.read.Store(true)
	}
	return f
}

// Overwrites counts frames replaced before anyone read them.
func (s *FrameSlot) Overwrites() uint64 {
	return s.overwrites.Load()
}
