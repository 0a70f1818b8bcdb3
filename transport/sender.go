package transport

import (
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/service/lgr"
	"golang.org/x/xerrors"
)

const DefaultChunkSize = 1200

var (
	ErrPayloadTooLarge = xerrors.New("payload needs more than 65535 chunks")
	ErrInvalidPort     = xerrors.New("port out of range")
)

type Target struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

func (t Target) String() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(t.Port))
}

type dialFunc func(raddr *net.UDPAddr) (net.Conn, error)

// Sender fragments payloads into datagrams for a single target. Any write
// failure tears the socket down and clears the target.
type Sender struct {
	mu        sync.Mutex
	chunkSize int
	dial      dialFunc
	conn      net.Conn
	target    *Target
	frameID   uint32
	buf       []byte

	frames  int
	packets int
	bytes   int64
	errors  int
}

func NewSender(chunkSize int) *Sender {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Sender{
		chunkSize: chunkSize,
		dial: func(raddr *net.UDPAddr) (net.Conn, error) {
			return net.DialUDP("udp", nil, raddr)
		},
		buf: make([]byte, 0, HeaderSize+chunkSize),
	}
}

// SetTarget replaces any previous target. On error the previous state is kept.
func (s *Sender) SetTarget(address string, port int) error {
	if port < 1 || port > 65535 {
		return xerrors.Errorf("%d: %w", port, ErrInvalidPort)
	}

	t := Target{Address: address, Port: port}
	raddr, err := net.ResolveUDPAddr("udp", t.String())
	if err != nil {
		return xerrors.Errorf("resolving %s: %w", t, err)
	}

	conn, err := s.dial(raddr)
	if err != nil {
		return xerrors.Errorf("dialing %s: %w", t, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.target = &t

	lgr.Logger.Info("stream target set", slog.String("target", t.String()))
	return nil
}

func (s *Sender) ClearTarget() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.target != nil {
		lgr.Logger.Info("stream target cleared", slog.String("target", s.target.String()))
	}
	s.teardown()
}

func (s *Sender) HasTarget() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target != nil
}

func (s *Sender) Target() (Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.target == nil {
		return Target{}, false
	}
	return *s.target, true
}

// Send writes one frame as ceil(len/chunkSize) datagrams in index order.
// Without a target it does nothing.
func (s *Sender) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	total := ChunkCount(len(payload), s.chunkSize)
	if total > MaxChunks {
		return xerrors.Errorf("%d bytes: %w", len(payload), ErrPayloadTooLarge)
	}

	id := s.frameID
	s.frameID++

	for i := 0; i < total; i++ {
		start := i * s.chunkSize
		end := min(start+s.chunkSize, len(payload))

		s.buf = Packet{
			FrameID:     id,
			TotalChunks: uint16(total),
			ChunkIndex:  uint16(i),
			Payload:     payload[start:end],
		}.AppendTo(s.buf[:0])

		if _, err := s.conn.Write(s.buf); err != nil {
			target := s.target.String()
			s.errors++
			s.teardown()
			return xerrors.Errorf("sending frame %d chunk %d to %s: %w", id, i, target, err)
		}
		s.packets++
		s.bytes += int64(len(s.buf))
	}

	s.frames++
	return nil
}

func (s *Sender) Stats() model.SenderStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := ""
	if s.target != nil {
		target = s.target.String()
	}
	return model.SenderStats{
		Name:    "sender",
		Target:  target,
		Frames:  s.frames,
		Packets: s.packets,
		Bytes:   s.bytes,
		Errors:  s.errors,
	}
}

func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown()
	return nil
}

// teardown expects s.mu to be held
func (s *Sender) teardown() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = nil
	s.target = nil
}
