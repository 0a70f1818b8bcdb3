package session

import (
	"log/slog"
	"net"

	"github.com/khaledhikmat/aicam-go/service/lgr"
)

const DefaultStreamPort = 5000

// TargetSetter is the part of the frame sender the control channel drives.
type TargetSetter interface {
	SetTarget(address string, port int) error
	ClearTarget()
}

type streamingHandler struct {
	sender      TargetSetter
	replier     Replier
	defaultPort int
}

// NewStreamingHandler handles "connect" and "disconnect". Other commands are
// left to other handlers.
func NewStreamingHandler(sender TargetSetter, replier Replier, defaultPort int) Handler {
	if defaultPort == 0 {
		defaultPort = DefaultStreamPort
	}
	return &streamingHandler{
		sender:      sender,
		replier:     replier,
		defaultPort: defaultPort,
	}
}

func (h *streamingHandler) Handle(sess Session, cmd Command) {
	switch cmd.Cmd {
	case "connect":
		h.connect(sess, cmd)
	case "disconnect":
		h.sender.ClearTarget()
		h.reply(sess, Reply{Status: "ok", Action: "disconnect"})
	}
}

func (h *streamingHandler) connect(sess Session, cmd Command) {
	ip := cmd.IP
	if ip == "" {
		ip = peerIP(sess.Peer)
	}
	if ip == "" {
		h.reply(sess, Reply{Status: "error", Reason: "no_target_ip"})
		return
	}

	port := h.defaultPort
	if cmd.Port != nil {
		port = *cmd.Port
	}
	if port < 1 || port > 65535 {
		h.reply(sess, Reply{Status: "error", Reason: "invalid_port"})
		return
	}

	if err := h.sender.SetTarget(ip, port); err != nil {
		lgr.Logger.Warn("setting stream target",
			slog.String("name", sess.Name),
			slog.String("ip", ip),
			slog.Int("port", port),
			slog.Any("error", err),
		)
		h.reply(sess, Reply{Status: "error", Reason: "set_target_failed"})
		return
	}

	h.reply(sess, Reply{Status: "ok", Action: "connect", IP: ip, Port: port})
}

func (h *streamingHandler) reply(sess Session, r Reply) {
	if err := h.replier.DmMsg(r, sess.Name); err != nil {
		lgr.Logger.Warn("replying to session",
			slog.String("name", sess.Name),
			slog.Any("error", err),
		)
	}
}

func peerIP(addr net.Addr) string {
	switch a := addr.(type) {
	case nil:
		return ""
	case *net.TCPAddr:
		if a == nil || a.IP == nil {
			return ""
		}
		return a.IP.String()
	default:
		host, _, err := net.SplitHostPort(a.String())
		if err != nil {
			return ""
		}
		return host
	}
}
