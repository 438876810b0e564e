package realtime

import "encoding/json"

// ChangeType identifies the row operation carried by a change.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is a row-level notification from the change feed. Record holds the
// storage provider's row representation.
type Change struct {
	Type   ChangeType
	Table  string
	Record json.RawMessage
}

// ChannelStatus is reported by a channel over its lifetime.
type ChannelStatus string

const (
	StatusSubscribed   ChannelStatus = "SUBSCRIBED"
	StatusChannelError ChannelStatus = "CHANNEL_ERROR"
	StatusClosed       ChannelStatus = "CLOSED"
	StatusTimedOut     ChannelStatus = "TIMED_OUT"
)

// Terminal reports whether the status ends the channel.
func (s ChannelStatus) Terminal() bool {
	switch s {
	case StatusChannelError, StatusClosed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Channel is one subscription to a table's change feed. Opening is
// asynchronous: the outcome is reported on Statuses.
type Channel interface {
	Name() string
	Changes() <-chan Change
	Statuses() <-chan ChannelStatus
	// Close tears the subscription down. It is safe to call more than once.
	Close()
}

// Feed opens channels on a table's change feed.
type Feed interface {
	Open(table, name string) Channel
}
