package watcher

import "time"

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type EventType
	Path string // absolute
	Time time.Time
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Signal is a debounced change delivered to the build coordinator.
type Signal struct {
	Path    string
	RelPath string // slash-separated, relative to the working directory
	Type    EventType
	Time    time.Time
}
