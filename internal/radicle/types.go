// Package radicle holds the entity types shared by the tree and diff state
// machines and the clients that fetch them from a Radicle seed node.
package radicle

import "time"

// EntryKind distinguishes directories from files in a listing.
type EntryKind string

const (
	KindDirectory EntryKind = "directory"
	KindFile      EntryKind = "file"
)

// Entry is one item of a directory listing at a revision.
type Entry struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Kind      EntryKind `json:"kind"`
	ContentID string    `json:"content_id"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// FileStatus is the change applied to a file by a commit.
type FileStatus string

const (
	StatusAdded    FileStatus = "added"
	StatusModified FileStatus = "modified"
	StatusDeleted  FileStatus = "deleted"
	StatusRenamed  FileStatus = "renamed"
	StatusCopied   FileStatus = "copied"
)

// LineKind classifies a diff line.
type LineKind string

const (
	LineContext  LineKind = "context"
	LineAddition LineKind = "addition"
	LineDeletion LineKind = "deletion"
)

// Line is a single line of a hunk. Additions carry no old line number and
// deletions carry no new line number.
type Line struct {
	Kind          LineKind `json:"kind"`
	Text          string   `json:"text"`
	OldLineNumber *int     `json:"old_line_number,omitempty"`
	NewLineNumber *int     `json:"new_line_number,omitempty"`
}

// Range is a start/length pair within one side of a diff.
type Range struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Hunk is a contiguous block of changed lines.
type Hunk struct {
	Header string `json:"header"`
	Old    Range  `json:"old"`
	New    Range  `json:"new"`
	Lines  []Line `json:"lines"`
}

// LineStats counts added and deleted lines.
type LineStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// FileDiff is one file's change within a commit. Binary or oversized files
// have no hunks.
type FileDiff struct {
	Path    string     `json:"path"`
	OldPath string     `json:"old_path,omitempty"`
	Status  FileStatus `json:"status"`
	Binary  bool       `json:"binary,omitempty"`
	Hunks   []Hunk     `json:"hunks,omitempty"`
	OldRef  string     `json:"old_ref,omitempty"`
	NewRef  string     `json:"new_ref,omitempty"`
}

// HunkStats sums addition and deletion lines over all hunks.
func (f FileDiff) HunkStats() LineStats {
	var s LineStats
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			switch l.Kind {
			case LineAddition:
				s.Additions++
			case LineDeletion:
				s.Deletions++
			}
		}
	}
	return s
}

// DiffStats summarises a whole commit diff.
type DiffStats struct {
	FilesChanged int `json:"files_changed"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
}

// SumStats recomputes diff statistics from file hunks.
func SumStats(files []FileDiff) DiffStats {
	stats := DiffStats{FilesChanged: len(files)}
	for _, f := range files {
		hs := f.HunkStats()
		stats.Insertions += hs.Additions
		stats.Deletions += hs.Deletions
	}
	return stats
}

// DiffPage is one page of a commit's diff. An empty NextPageToken means the
// diff is complete.
type DiffPage struct {
	Files         []FileDiff `json:"files"`
	Stats         *DiffStats `json:"stats,omitempty"`
	NextPageToken string     `json:"next_page_token,omitempty"`
}

// Person identifies a commit author or committer.
type Person struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Time  time.Time `json:"time,omitempty"`
}

// Commit is commit metadata without its diff.
type Commit struct {
	ID          string   `json:"id"`
	Author      Person   `json:"author"`
	Committer   Person   `json:"committer"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Parents     []string `json:"parents"`
}

// Delegate is a repository delegate identity.
type Delegate struct {
	ID    string `json:"id"`
	Alias string `json:"alias,omitempty"`
}

// IssueCounts aggregates issue states of a repository.
type IssueCounts struct {
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// PatchCounts aggregates patch states of a repository.
type PatchCounts struct {
	Open     int `json:"open"`
	Draft    int `json:"draft"`
	Archived int `json:"archived"`
	Merged   int `json:"merged"`
}

// Repository is a seeded project.
type Repository struct {
	RID           string      `json:"rid"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	DefaultBranch string      `json:"default_branch"`
	Head          string      `json:"head"`
	Delegates     []Delegate  `json:"delegates"`
	Threshold     int         `json:"threshold"`
	Visibility    string      `json:"visibility"`
	Seeding       int         `json:"seeding"`
	Issues        IssueCounts `json:"issues"`
	Patches       PatchCounts `json:"patches"`
}

// Remote is a peer's namespace within a repository.
type Remote struct {
	ID       string            `json:"id"`
	Alias    string            `json:"alias,omitempty"`
	Heads    map[string]string `json:"heads"`
	Delegate bool              `json:"delegate"`
}

// Blob is a file's content at a revision. Binary content stays base64.
type Blob struct {
	Path       string  `json:"path"`
	Name       string  `json:"name"`
	Binary     bool    `json:"binary"`
	Content    string  `json:"content"`
	LastCommit *Commit `json:"last_commit,omitempty"`
}

// Author is a COB (issue, patch) author.
type Author struct {
	ID    string `json:"id"`
	Alias string `json:"alias,omitempty"`
}

// Comment is one entry of an issue discussion.
type Comment struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Body      string    `json:"body"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Issue is a collaborative issue.
type Issue struct {
	ID         string    `json:"id"`
	Author     Author    `json:"author"`
	Title      string    `json:"title"`
	State      string    `json:"state"`
	Assignees  []Author  `json:"assignees"`
	Labels     []string  `json:"labels"`
	Discussion []Comment `json:"discussion"`
}

// Revision is one revision of a patch.
type Revision struct {
	ID          string    `json:"id"`
	Author      Author    `json:"author"`
	Description string    `json:"description"`
	Base        string    `json:"base"`
	OID         string    `json:"oid"`
	Refs        []string  `json:"refs"`
	Timestamp   time.Time `json:"timestamp"`
}

// Patch is a proposed change set.
type Patch struct {
	ID        string     `json:"id"`
	Author    Author     `json:"author"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Target    string     `json:"target"`
	Labels    []string   `json:"labels"`
	Merges    []string   `json:"merges"`
	Assignees []string   `json:"assignees"`
	Revisions []Revision `json:"revisions"`
}

// NodeInfo describes the seed node serving the API.
type NodeInfo struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	State   string `json:"state"`
}
