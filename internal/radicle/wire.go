package radicle

import (
	"path"
	"time"
)

// Seed node JSON shapes. The HTTP client decodes them and the mock httpd
// encodes them, so both sides share one definition.

const (
	wireKindTree = "tree"
	wireKindBlob = "blob"

	projectPayload = "xyz.radicle.project"
)

// WireEntry is one entry of a tree response.
type WireEntry struct {
	Path string `json:"path"`
	OID  string `json:"oid"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// TreeResponse is the body of GET repos/{rid}/tree/{sha}/{path}.
type TreeResponse struct {
	Entries []WireEntry `json:"entries"`
	Name    string      `json:"name"`
	Path    string      `json:"path"`
}

// ToEntries converts the response into domain entries.
func (t *TreeResponse) ToEntries() []Entry {
	entries := make([]Entry, 0, len(t.Entries))
	for _, e := range t.Entries {
		kind := KindFile
		if e.Kind == wireKindTree {
			kind = KindDirectory
		}
		name := e.Name
		if name == "" {
			name = path.Base(e.Path)
		}
		entries = append(entries, Entry{Path: e.Path, Name: name, Kind: kind, ContentID: e.OID})
	}
	return entries
}

// NewTreeResponse encodes a directory listing.
func NewTreeResponse(dir string, entries []Entry) *TreeResponse {
	resp := &TreeResponse{Path: dir, Name: path.Base(dir), Entries: make([]WireEntry, 0, len(entries))}
	if dir == "" {
		resp.Name = ""
	}
	for _, e := range entries {
		kind := wireKindBlob
		if e.IsDir() {
			kind = wireKindTree
		}
		resp.Entries = append(resp.Entries, WireEntry{Path: e.Path, OID: e.ContentID, Name: e.Name, Kind: kind})
	}
	return resp
}

// WireRange is a hunk side expressed as a half-open [start, end) interval.
type WireRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// WireLine is a single diff line.
type WireLine struct {
	Type      string `json:"type"`
	Line      string `json:"line"`
	LineNoOld *int   `json:"lineNoOld,omitempty"`
	LineNoNew *int   `json:"lineNoNew,omitempty"`
}

// WireHunk is one hunk.
type WireHunk struct {
	Header string     `json:"header"`
	Lines  []WireLine `json:"lines"`
	Old    WireRange  `json:"old"`
	New    WireRange  `json:"new"`
}

// WireLineStats counts changed lines of one file.
type WireLineStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// WireFileDiff holds a file's hunks. Type is "plain", "binary" or "empty".
type WireFileDiff struct {
	Type  string         `json:"type"`
	Hunks []WireHunk     `json:"hunks,omitempty"`
	Stats *WireLineStats `json:"stats,omitempty"`
	EOF   string         `json:"eof,omitempty"`
}

// WireFileSide is one side (old or new) of a changed file.
type WireFileSide struct {
	OID  string `json:"oid"`
	Mode string `json:"mode"`
}

// WireFile is one changed file.
type WireFile struct {
	Status  string        `json:"status"`
	Path    string        `json:"path"`
	OldPath string        `json:"oldPath,omitempty"`
	Diff    WireFileDiff  `json:"diff"`
	Old     *WireFileSide `json:"old,omitempty"`
	New     *WireFileSide `json:"new,omitempty"`
}

// WireDiffStats summarises a diff.
type WireDiffStats struct {
	FilesChanged int `json:"filesChanged"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
}

// WireDiff is a (possibly partial) diff.
type WireDiff struct {
	Files []WireFile     `json:"files"`
	Stats *WireDiffStats `json:"stats,omitempty"`
}

// WirePerson is a commit signature.
type WirePerson struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Time  int64  `json:"time,omitempty"`
}

// WireCommit is commit metadata.
type WireCommit struct {
	ID          string     `json:"id"`
	Author      WirePerson `json:"author"`
	Committer   WirePerson `json:"committer"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Parents     []string   `json:"parents"`
}

// CommitResponse is the body of GET repos/{rid}/commits/{oid}. NextPageToken
// is set when the diff continues on another page.
type CommitResponse struct {
	Commit        WireCommit `json:"commit"`
	Diff          WireDiff   `json:"diff"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
}

// ToDiffPage converts the response's diff into a domain page.
func (c *CommitResponse) ToDiffPage() *DiffPage {
	page := &DiffPage{Files: make([]FileDiff, 0, len(c.Diff.Files)), NextPageToken: c.NextPageToken}
	for _, f := range c.Diff.Files {
		page.Files = append(page.Files, f.toDomain())
	}
	if c.Diff.Stats != nil {
		page.Stats = &DiffStats{
			FilesChanged: c.Diff.Stats.FilesChanged,
			Insertions:   c.Diff.Stats.Insertions,
			Deletions:    c.Diff.Stats.Deletions,
		}
	}
	return page
}

func (f WireFile) toDomain() FileDiff {
	fd := FileDiff{
		Path:    f.Path,
		OldPath: f.OldPath,
		Status:  FileStatus(f.Status),
		Binary:  f.Diff.Type == "binary",
	}
	if f.Old != nil {
		fd.OldRef = f.Old.OID
	}
	if f.New != nil {
		fd.NewRef = f.New.OID
	}
	for _, h := range f.Diff.Hunks {
		hunk := Hunk{
			Header: h.Header,
			Old:    Range{Start: h.Old.Start, Length: max(h.Old.End-h.Old.Start, 0)},
			New:    Range{Start: h.New.Start, Length: max(h.New.End-h.New.Start, 0)},
			Lines:  make([]Line, 0, len(h.Lines)),
		}
		for _, l := range h.Lines {
			hunk.Lines = append(hunk.Lines, Line{
				Kind:          LineKind(l.Type),
				Text:          l.Line,
				OldLineNumber: l.LineNoOld,
				NewLineNumber: l.LineNoNew,
			})
		}
		fd.Hunks = append(fd.Hunks, hunk)
	}
	return fd
}

// ToCommit converts the wire commit into the domain type.
func (w WireCommit) ToCommit() Commit {
	return Commit{
		ID:          w.ID,
		Author:      w.Author.toDomain(),
		Committer:   w.Committer.toDomain(),
		Summary:     w.Summary,
		Description: w.Description,
		Parents:     w.Parents,
	}
}

func (p WirePerson) toDomain() Person {
	person := Person{Name: p.Name, Email: p.Email}
	if p.Time != 0 {
		person.Time = time.Unix(p.Time, 0).UTC()
	}
	return person
}

func newWirePerson(p Person) WirePerson {
	wp := WirePerson{Name: p.Name, Email: p.Email}
	if !p.Time.IsZero() {
		wp.Time = p.Time.Unix()
	}
	return wp
}

// NewWireCommit encodes commit metadata.
func NewWireCommit(c Commit) WireCommit {
	return WireCommit{
		ID:          c.ID,
		Author:      newWirePerson(c.Author),
		Committer:   newWirePerson(c.Committer),
		Summary:     c.Summary,
		Description: c.Description,
		Parents:     c.Parents,
	}
}

// NewCommitResponse encodes a commit and one page of its diff.
func NewCommitResponse(c Commit, page *DiffPage) *CommitResponse {
	resp := &CommitResponse{Commit: NewWireCommit(c), Diff: WireDiff{Files: []WireFile{}}}
	if page == nil {
		return resp
	}
	resp.NextPageToken = page.NextPageToken
	if page.Stats != nil {
		resp.Diff.Stats = &WireDiffStats{
			FilesChanged: page.Stats.FilesChanged,
			Insertions:   page.Stats.Insertions,
			Deletions:    page.Stats.Deletions,
		}
	}
	for _, f := range page.Files {
		resp.Diff.Files = append(resp.Diff.Files, newWireFile(f))
	}
	return resp
}

func newWireFile(f FileDiff) WireFile {
	wf := WireFile{Status: string(f.Status), Path: f.Path, OldPath: f.OldPath}
	switch {
	case f.Binary:
		wf.Diff.Type = "binary"
	case len(f.Hunks) == 0:
		wf.Diff.Type = "empty"
	default:
		wf.Diff.Type = "plain"
	}
	if f.OldRef != "" {
		wf.Old = &WireFileSide{OID: f.OldRef}
	}
	if f.NewRef != "" {
		wf.New = &WireFileSide{OID: f.NewRef}
	}
	hs := f.HunkStats()
	wf.Diff.Stats = &WireLineStats{Additions: hs.Additions, Deletions: hs.Deletions}
	for _, h := range f.Hunks {
		wh := WireHunk{
			Header: h.Header,
			Old:    WireRange{Start: h.Old.Start, End: h.Old.Start + h.Old.Length},
			New:    WireRange{Start: h.New.Start, End: h.New.Start + h.New.Length},
			Lines:  make([]WireLine, 0, len(h.Lines)),
		}
		for _, l := range h.Lines {
			wh.Lines = append(wh.Lines, WireLine{
				Type:      string(l.Kind),
				Line:      l.Text,
				LineNoOld: l.OldLineNumber,
				LineNoNew: l.NewLineNumber,
			})
		}
		wf.Diff.Hunks = append(wf.Diff.Hunks, wh)
	}
	return wf
}

// WireProjectData is the project payload's data section.
type WireProjectData struct {
	DefaultBranch string `json:"defaultBranch"`
	Description   string `json:"description"`
	Name          string `json:"name"`
}

// WireProjectMeta is the project payload's meta section.
type WireProjectMeta struct {
	Head    string      `json:"head"`
	Issues  IssueCounts `json:"issues"`
	Patches PatchCounts `json:"patches"`
}

// WireProjectPayload wraps project data and meta.
type WireProjectPayload struct {
	Data WireProjectData `json:"data"`
	Meta WireProjectMeta `json:"meta"`
}

// WireVisibility is the repository visibility.
type WireVisibility struct {
	Type string `json:"type"`
}

// WireRepository is one element of GET repos.
type WireRepository struct {
	RID        string                        `json:"rid"`
	Payloads   map[string]WireProjectPayload `json:"payloads"`
	Delegates  []Delegate                    `json:"delegates"`
	Threshold  int                           `json:"threshold"`
	Visibility WireVisibility                `json:"visibility"`
	Seeding    int                           `json:"seeding"`
}

// ToRepository converts the wire repository into the domain type.
func (w WireRepository) ToRepository() Repository {
	p := w.Payloads[projectPayload]
	return Repository{
		RID:           w.RID,
		Name:          p.Data.Name,
		Description:   p.Data.Description,
		DefaultBranch: p.Data.DefaultBranch,
		Head:          p.Meta.Head,
		Delegates:     w.Delegates,
		Threshold:     w.Threshold,
		Visibility:    w.Visibility.Type,
		Seeding:       w.Seeding,
		Issues:        p.Meta.Issues,
		Patches:       p.Meta.Patches,
	}
}

// NewWireRepository encodes a repository.
func NewWireRepository(r Repository) WireRepository {
	return WireRepository{
		RID: r.RID,
		Payloads: map[string]WireProjectPayload{
			projectPayload: {
				Data: WireProjectData{DefaultBranch: r.DefaultBranch, Description: r.Description, Name: r.Name},
				Meta: WireProjectMeta{Head: r.Head, Issues: r.Issues, Patches: r.Patches},
			},
		},
		Delegates:  r.Delegates,
		Threshold:  r.Threshold,
		Visibility: WireVisibility{Type: r.Visibility},
		Seeding:    r.Seeding,
	}
}

// WireBlob is the body of blob and readme endpoints.
type WireBlob struct {
	Binary     bool        `json:"binary"`
	Content    string      `json:"content"`
	Name       string      `json:"name"`
	Path       string      `json:"path"`
	LastCommit *WireCommit `json:"lastCommit,omitempty"`
}

// ToBlob converts the wire blob into the domain type.
func (w WireBlob) ToBlob() Blob {
	b := Blob{Path: w.Path, Name: w.Name, Binary: w.Binary, Content: w.Content}
	if w.LastCommit != nil {
		c := w.LastCommit.ToCommit()
		b.LastCommit = &c
	}
	return b
}

// NewWireBlob encodes a blob.
func NewWireBlob(b Blob) WireBlob {
	w := WireBlob{Binary: b.Binary, Content: b.Content, Name: b.Name, Path: b.Path}
	if b.LastCommit != nil {
		c := NewWireCommit(*b.LastCommit)
		w.LastCommit = &c
	}
	return w
}

// WireState is a COB state.
type WireState struct {
	Status string `json:"status"`
}

// WireComment is one discussion entry.
type WireComment struct {
	ID        string `json:"id"`
	Author    Author `json:"author"`
	Body      string `json:"body"`
	ReplyTo   string `json:"replyTo,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WireIssue is an issue.
type WireIssue struct {
	ID         string        `json:"id"`
	Author     Author        `json:"author"`
	Title      string        `json:"title"`
	State      WireState     `json:"state"`
	Assignees  []Author      `json:"assignees"`
	Labels     []string      `json:"labels"`
	Discussion []WireComment `json:"discussion"`
}

// ToIssue converts the wire issue into the domain type.
func (w WireIssue) ToIssue() Issue {
	issue := Issue{
		ID:        w.ID,
		Author:    w.Author,
		Title:     w.Title,
		State:     w.State.Status,
		Assignees: w.Assignees,
		Labels:    w.Labels,
	}
	for _, c := range w.Discussion {
		issue.Discussion = append(issue.Discussion, Comment{
			ID:        c.ID,
			Author:    c.Author,
			Body:      c.Body,
			ReplyTo:   c.ReplyTo,
			Timestamp: time.Unix(c.Timestamp, 0).UTC(),
		})
	}
	return issue
}

// NewWireIssue encodes an issue.
func NewWireIssue(i Issue) WireIssue {
	w := WireIssue{
		ID:        i.ID,
		Author:    i.Author,
		Title:     i.Title,
		State:     WireState{Status: i.State},
		Assignees: i.Assignees,
		Labels:    i.Labels,
	}
	for _, c := range i.Discussion {
		w.Discussion = append(w.Discussion, WireComment{
			ID:        c.ID,
			Author:    c.Author,
			Body:      c.Body,
			ReplyTo:   c.ReplyTo,
			Timestamp: c.Timestamp.Unix(),
		})
	}
	return w
}

// WireRevision is one patch revision.
type WireRevision struct {
	ID          string   `json:"id"`
	Author      Author   `json:"author"`
	Description string   `json:"description"`
	Base        string   `json:"base"`
	OID         string   `json:"oid"`
	Refs        []string `json:"refs"`
	Timestamp   int64    `json:"timestamp"`
}

// WirePatch is a patch.
type WirePatch struct {
	ID        string         `json:"id"`
	Author    Author         `json:"author"`
	Title     string         `json:"title"`
	State     WireState      `json:"state"`
	Target    string         `json:"target"`
	Labels    []string       `json:"labels"`
	Merges    []string       `json:"merges"`
	Assignees []string       `json:"assignees"`
	Revisions []WireRevision `json:"revisions"`
}

// ToPatch converts the wire patch into the domain type.
func (w WirePatch) ToPatch() Patch {
	p := Patch{
		ID:        w.ID,
		Author:    w.Author,
		Title:     w.Title,
		State:     w.State.Status,
		Target:    w.Target,
		Labels:    w.Labels,
		Merges:    w.Merges,
		Assignees: w.Assignees,
	}
	for _, r := range w.Revisions {
		p.Revisions = append(p.Revisions, Revision{
			ID:          r.ID,
			Author:      r.Author,
			Description: r.Description,
			Base:        r.Base,
			OID:         r.OID,
			Refs:        r.Refs,
			Timestamp:   time.Unix(r.Timestamp, 0).UTC(),
		})
	}
	return p
}

// NewWirePatch encodes a patch.
func NewWirePatch(p Patch) WirePatch {
	w := WirePatch{
		ID:        p.ID,
		Author:    p.Author,
		Title:     p.Title,
		State:     WireState{Status: p.State},
		Target:    p.Target,
		Labels:    p.Labels,
		Merges:    p.Merges,
		Assignees: p.Assignees,
	}
	for _, r := range p.Revisions {
		w.Revisions = append(w.Revisions, WireRevision{
			ID:          r.ID,
			Author:      r.Author,
			Description: r.Description,
			Base:        r.Base,
			OID:         r.OID,
			Refs:        r.Refs,
			Timestamp:   r.Timestamp.Unix(),
		})
	}
	return w
}
