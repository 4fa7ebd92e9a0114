package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrHubClosed is returned by Recv once the hub is closed and drained.
	ErrHubClosed = errors.New("relay: hub closed")

	// ErrSubscriptionClosed is returned by Recv after Close.
	ErrSubscriptionClosed = errors.New("relay: subscription closed")

	// ErrPeerGone means the peer closed the connection or sent an empty line.
	ErrPeerGone = errors.New("relay: peer gone")

	// ErrLineTooLong is returned by ReadLine for a line over MaxLineLength.
	ErrLineTooLong = errors.New("relay: line too long")
)

// LagError reports that a subscriber fell behind the backlog and the oldest
// unread messages were skipped. The subscription stays usable.
type LagError struct {
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("relay: subscriber lagged, %d message(s) skipped", e.Skipped)
}
