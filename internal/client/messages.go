package client

import "time"

// Messages dispatched through Update besides bubbletea's own key, window
// and quit messages.
type (
	renderTickMsg    time.Time
	registerMsg      struct{ name string }
	sendChatMsg      struct{ text string }
	sendGameMsg      struct{ text string }
	networkLineMsg   struct{ text string }
	networkClosedMsg struct{}
	logLineMsg       struct{ text string }
)
