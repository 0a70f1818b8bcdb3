package session

import (
	"net"
	"time"
)

// Command is one JSON control line sent by a registered client.
type Command struct {
	Cmd  string `json:"cmd"`
	IP   string `json:"ip,omitempty"`
	Port *int   `json:"port,omitempty"`
}

// Reply acknowledges a command.
type Reply struct {
	Status string `json:"status"`
	Action string `json:"action,omitempty"`
	Reason string `json:"reason,omitempty"`
	IP     string `json:"ip,omitempty"`
	Port   int    `json:"port,omitempty"`
}

type Session struct {
	ID       string
	Name     string
	Peer     net.Addr
	JoinedAt time.Time
}

// Handler reacts to commands. Handlers are called in registration order on
// the session's receive goroutine.
type Handler interface {
	Handle(sess Session, cmd Command)
}

type HandlerFunc func(sess Session, cmd Command)

func (f HandlerFunc) Handle(sess Session, cmd Command) {
	f(sess, cmd)
}

// Replier sends a direct message to a named session.
type Replier interface {
	DmMsg(msg interface{}, name string) error
}
