package relay

import (
	"strings"
	"time"
)

// User represents a registered connection
type User struct {
	Name     string
	Addr     string // registry key; names are not unique
	Session  string
	JoinTime time.Time
}

// Kind tells chat lines from board lines
type Kind int

const (
	KindChat Kind = iota
	KindBoard
)

func (k Kind) String() string {
	if k == KindBoard {
		return "board"
	}
	return "chat"
}

// MovePrefix marks a line as a board update
const MovePrefix = "move"

// Message is what the hub fans out. Text is written to peers verbatim.
type Message struct {
	Kind Kind
	Text string
	// Origin is empty for messages published on this instance and holds the
	// publishing instance id for messages relayed from another one.
	Origin string
}

func ChatMessage(user, line string) Message {
	return Message{Kind: KindChat, Text: user + ": " + line}
}

func BoardUpdate(line string) Message {
	return Message{Kind: KindBoard, Text: line}
}

// Classify turns one inbound line from user into the message to publish.
func Classify(user, line string) Message {
	if strings.HasPrefix(line, MovePrefix) {
		return BoardUpdate(line)
	}
	return ChatMessage(user, line)
}
