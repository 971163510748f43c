package watch

import "fmt"

// EventKind identifies a notification published by a Watcher.
type EventKind int

const (
	// EventInit is published exactly once, right after construction.
	EventInit EventKind = iota + 1
	// EventUpdate asks the subscriber to re-derive its output.
	EventUpdate
)

func (k EventKind) String() string {
	switch k {
	case EventInit:
		return "init"
	case EventUpdate:
		return "update"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a notification from a Watcher. It carries no payload; subscribers
// re-query whatever state they need.
type Event struct {
	Kind EventKind
}

// changeKind is the kind of a structural change under the root directory.
type changeKind int

const (
	fileAdded changeKind = iota
	dirAdded
	fileRemoved
	dirRemoved
)

// change is a structural event forwarded by the root monitor.
type change struct {
	kind changeKind
	path string
}

func (c change) String() string {
	switch c.kind {
	case fileAdded:
		return fmt.Sprintf("New file %q is added", c.path)
	case dirAdded:
		return fmt.Sprintf("New directory %q is added", c.path)
	case fileRemoved:
		return fmt.Sprintf("File %q is removed", c.path)
	case dirRemoved:
		return fmt.Sprintf("Directory %q is removed", c.path)
	default:
		return fmt.Sprintf("Path %q changed", c.path)
	}
}
