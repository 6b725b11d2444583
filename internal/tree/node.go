package tree

import (
	"errors"
	"fmt"

	"github.com/bordumb/RadicleApp/internal/radicle"
)

var (
	// ErrNodeNotFound is returned for paths the store has not materialised.
	ErrNodeNotFound = errors.New("tree node not found")
	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("tree store closed")
)

// LoadState tracks a node's children fetch.
type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
	Failed
)

var loadStateNames = map[LoadState]string{
	NotLoaded: "not_loaded",
	Loading:   "loading",
	Loaded:    "loaded",
	Failed:    "failed",
}

func (s LoadState) String() string {
	if name, ok := loadStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LoadState(%d)", int(s))
}

// MarshalText renders the state by name in JSON payloads.
func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Node is a read-only snapshot of one tree node.
type Node struct {
	Entry         radicle.Entry `json:"entry"`
	Expanded      bool          `json:"expanded"`
	State         LoadState     `json:"state"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Children      []string      `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (n Node) IsDir() bool {
	return n.Entry.IsDir()
}

// Row is one line of the flattened, rendered tree.
type Row struct {
	Node
	Depth int `json:"depth"`
}

// Change describes a node mutation delivered to a Notifier.
type Change struct {
	RepoID   string    `json:"repo_id"`
	Revision string    `json:"revision"`
	Path     string    `json:"path"`
	State    LoadState `json:"state"`
	Expanded bool      `json:"expanded"`
	Reason   string    `json:"reason,omitempty"`
}

// Notifier receives node changes. It is called without the store lock held
// and must not block for long.
type Notifier func(Change)

// node is the arena record. Children are referenced by path.
type node struct {
	entry    radicle.Entry
	expanded bool
	state    LoadState
	reason   string
	children []string
	// loadSeq identifies the current fetch so stale completions are dropped.
	loadSeq uint64
}

func (n *node) snapshot() Node {
	out := Node{
		Entry:         n.entry,
		Expanded:      n.expanded,
		State:         n.state,
		FailureReason: n.reason,
	}
	if len(n.children) > 0 {
		out.Children = append([]string(nil), n.children...)
	}
	return out
}
