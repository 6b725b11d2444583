// Package events names the change notifications published by the browser
// service.
package events

// Event types for directory trees
const (
	TreeOpened      = "tree.opened"
	TreeNodeChanged = "tree.node.changed"
	TreeClosed      = "tree.closed"
)

// Event types for commit diffs
const (
	DiffPageMerged = "diff.page.merged"
	DiffLoadFailed = "diff.load.failed"
	DiffClosed     = "diff.closed"
)

// Subscription patterns for all tree and diff events
const (
	AllTreeEvents = "tree.>"
	AllDiffEvents = "diff.>"
)

// Source identifies this service as the event producer.
const Source = "radicle-browser"

// BuildSubject appends a session id to an event type so subscribers can
// filter on it, e.g. "tree.node.changed.<session>".
func BuildSubject(eventType, sessionID string) string {
	if sessionID == "" {
		return eventType
	}
	return eventType + "." + sessionID
}

