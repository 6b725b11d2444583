package radicle

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixture describes seed node content for MockClient in YAML.
type Fixture struct {
	Node         *NodeInfo           `yaml:"node"`
	Repositories []RepositoryFixture `yaml:"repositories"`
}

// RepositoryFixture holds one repository and everything served under it.
type RepositoryFixture struct {
	RID           string          `yaml:"rid"`
	Name          string          `yaml:"name"`
	Description   string          `yaml:"description"`
	DefaultBranch string          `yaml:"defaultBranch"`
	Head          string          `yaml:"head"`
	Delegates     []string        `yaml:"delegates"`
	Trees         []TreeFixture   `yaml:"trees"`
	Commits       []CommitFixture `yaml:"commits"`
	Blobs         []BlobFixture   `yaml:"blobs"`
	Readme        *BlobFixture    `yaml:"readme"`
	Issues        []IssueFixture  `yaml:"issues"`
	Patches       []PatchFixture  `yaml:"patches"`
}

// TreeFixture is one directory listing. Entry paths are derived from Path.
type TreeFixture struct {
	Revision string         `yaml:"revision"`
	Path     string         `yaml:"path"`
	Entries  []EntryFixture `yaml:"entries"`
}

// EntryFixture is a directory entry.
type EntryFixture struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	OID  string `yaml:"oid"`
}

// CommitFixture is a commit with an optional paged diff.
type CommitFixture struct {
	ID        string       `yaml:"id"`
	Summary   string       `yaml:"summary"`
	Author    string       `yaml:"author"`
	Email     string       `yaml:"email"`
	Timestamp int64        `yaml:"timestamp"`
	Parents   []string     `yaml:"parents"`
	Diff      *DiffFixture `yaml:"diff"`
}

// DiffFixture splits Files into pages of PageSize files.
type DiffFixture struct {
	PageSize int           `yaml:"pageSize"`
	Files    []FileFixture `yaml:"files"`
}

// FileFixture is a changed file.
type FileFixture struct {
	Path    string        `yaml:"path"`
	OldPath string        `yaml:"oldPath"`
	Status  string        `yaml:"status"`
	Binary  bool          `yaml:"binary"`
	Hunks   []HunkFixture `yaml:"hunks"`
}

// HunkFixture lists lines in unified diff notation: a leading '+', '-' or
// ' ' marks additions, deletions and context.
type HunkFixture struct {
	OldStart int      `yaml:"oldStart"`
	NewStart int      `yaml:"newStart"`
	Lines    []string `yaml:"lines"`
}

// BlobFixture is file content at a revision.
type BlobFixture struct {
	Revision string `yaml:"revision"`
	Path     string `yaml:"path"`
	Content  string `yaml:"content"`
	Binary   bool   `yaml:"binary"`
}

// IssueFixture is an issue.
type IssueFixture struct {
	ID     string   `yaml:"id"`
	Title  string   `yaml:"title"`
	State  string   `yaml:"state"`
	Author string   `yaml:"author"`
	Labels []string `yaml:"labels"`
}

// PatchFixture is a patch.
type PatchFixture struct {
	ID     string   `yaml:"id"`
	Title  string   `yaml:"title"`
	State  string   `yaml:"state"`
	Author string   `yaml:"author"`
	Target string   `yaml:"target"`
	Labels []string `yaml:"labels"`
	Base   string   `yaml:"base"`
	OID    string   `yaml:"oid"`
}

// LoadFixtureFile reads a YAML fixture from disk into a new MockClient.
func LoadFixtureFile(name string) (*MockClient, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()

	m := NewMockClient()
	if err := m.LoadFixture(f); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFixture decodes a YAML fixture and registers its content.
func (m *MockClient) LoadFixture(r io.Reader) error {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return fmt.Errorf("decode fixture: %w", err)
	}
	if fx.Node != nil {
		m.SetNodeInfo(*fx.Node)
	}
	for i := range fx.Repositories {
		if err := m.loadRepository(&fx.Repositories[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockClient) loadRepository(rf *RepositoryFixture) error {
	if rf.RID == "" {
		return fmt.Errorf("fixture repository %q has no rid", rf.Name)
	}
	repo := Repository{
		RID:           rf.RID,
		Name:          rf.Name,
		Description:   rf.Description,
		DefaultBranch: rf.DefaultBranch,
		Head:          rf.Head,
		Threshold:     1,
		Visibility:    "public",
	}
	for _, d := range rf.Delegates {
		repo.Delegates = append(repo.Delegates, Delegate{ID: d})
	}
	for _, i := range rf.Issues {
		if i.State == "closed" {
			repo.Issues.Closed++
		} else {
			repo.Issues.Open++
		}
	}
	for _, p := range rf.Patches {
		switch p.State {
		case "draft":
			repo.Patches.Draft++
		case "archived":
			repo.Patches.Archived++
		case "merged":
			repo.Patches.Merged++
		default:
			repo.Patches.Open++
		}
	}
	m.AddRepository(repo)

	for _, tf := range rf.Trees {
		entries := make([]Entry, 0, len(tf.Entries))
		for _, ef := range tf.Entries {
			kind := KindFile
			if ef.Kind == string(KindDirectory) || ef.Kind == wireKindTree {
				kind = KindDirectory
			}
			entries = append(entries, Entry{
				Path:      path.Join(tf.Path, ef.Name),
				Name:      ef.Name,
				Kind:      kind,
				ContentID: ef.OID,
			})
		}
		m.AddTree(rf.RID, tf.Revision, tf.Path, entries...)
	}

	for _, cf := range rf.Commits {
		commit := Commit{
			ID:      cf.ID,
			Author:  Person{Name: cf.Author, Email: cf.Email},
			Summary: cf.Summary,
			Parents: cf.Parents,
		}
		if cf.Timestamp != 0 {
			commit.Author.Time = time.Unix(cf.Timestamp, 0).UTC()
		}
		commit.Committer = commit.Author
		m.AddCommit(rf.RID, commit)
		if cf.Diff != nil {
			if err := m.loadDiff(rf.RID, cf.ID, cf.Diff); err != nil {
				return err
			}
		}
	}

	for _, bf := range rf.Blobs {
		m.AddBlob(rf.RID, bf.Revision, Blob{Path: bf.Path, Name: path.Base(bf.Path), Content: bf.Content, Binary: bf.Binary})
	}
	if rf.Readme != nil {
		p := rf.Readme.Path
		if p == "" {
			p = "README.md"
		}
		m.SetReadme(rf.RID, rf.Readme.Revision, Blob{Path: p, Name: path.Base(p), Content: rf.Readme.Content})
	}

	for _, i := range rf.Issues {
		m.AddIssue(rf.RID, Issue{
			ID:     i.ID,
			Title:  i.Title,
			State:  i.State,
			Author: Author{ID: i.Author},
			Labels: i.Labels,
		})
	}
	for _, p := range rf.Patches {
		m.AddPatch(rf.RID, Patch{
			ID:        p.ID,
			Title:     p.Title,
			State:     p.State,
			Author:    Author{ID: p.Author},
			Target:    p.Target,
			Labels:    p.Labels,
			Revisions: []Revision{{ID: p.ID, Author: Author{ID: p.Author}, Base: p.Base, OID: p.OID}},
		})
	}
	return nil
}

// loadDiff splits the fixture's files into pages chained by numeric tokens.
func (m *MockClient) loadDiff(repoID, commitID string, df *DiffFixture) error {
	files := make([]FileDiff, 0, len(df.Files))
	for _, ff := range df.Files {
		fd, err := ff.toFileDiff()
		if err != nil {
			return fmt.Errorf("commit %s: %w", commitID, err)
		}
		files = append(files, fd)
	}

	size := df.PageSize
	if size <= 0 {
		size = len(files)
	}
	token := ""
	for start, n := 0, 1; ; start, n = start+size, n+1 {
		end := min(start+size, len(files))
		page := &DiffPage{Files: files[start:end]}
		if end < len(files) {
			page.NextPageToken = strconv.Itoa(n + 1)
		}
		m.AddDiffPage(repoID, commitID, token, page)
		if page.NextPageToken == "" {
			return nil
		}
		token = page.NextPageToken
	}
}

func (ff FileFixture) toFileDiff() (FileDiff, error) {
	fd := FileDiff{Path: ff.Path, OldPath: ff.OldPath, Status: FileStatus(ff.Status), Binary: ff.Binary}
	if fd.Status == "" {
		fd.Status = StatusModified
	}
	for _, hf := range ff.Hunks {
		hunk, err := hf.toHunk()
		if err != nil {
			return FileDiff{}, fmt.Errorf("file %s: %w", ff.Path, err)
		}
		fd.Hunks = append(fd.Hunks, hunk)
	}
	return fd, nil
}

func (hf HunkFixture) toHunk() (Hunk, error) {
	oldNo, newNo := hf.OldStart, hf.NewStart
	hunk := Hunk{Old: Range{Start: hf.OldStart}, New: Range{Start: hf.NewStart}}
	for _, raw := range hf.Lines {
		if raw == "" {
			raw = " "
		}
		text := raw[1:]
		switch raw[0] {
		case '+':
			n := newNo
			hunk.Lines = append(hunk.Lines, Line{Kind: LineAddition, Text: text, NewLineNumber: &n})
			newNo++
			hunk.New.Length++
		case '-':
			o := oldNo
			hunk.Lines = append(hunk.Lines, Line{Kind: LineDeletion, Text: text, OldLineNumber: &o})
			oldNo++
			hunk.Old.Length++
		case ' ':
			o, n := oldNo, newNo
			hunk.Lines = append(hunk.Lines, Line{Kind: LineContext, Text: text, OldLineNumber: &o, NewLineNumber: &n})
			oldNo++
			newNo++
			hunk.Old.Length++
			hunk.New.Length++
		default:
			return Hunk{}, fmt.Errorf("invalid diff line %q", raw)
		}
	}
	hunk.Header = FormatHunkHeader(hunk.Old, hunk.New)
	return hunk, nil
}

// FormatHunkHeader renders the "@@ -a,b +c,d @@" header line.
func FormatHunkHeader(oldRange, newRange Range) string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", oldRange.Start, oldRange.Length, newRange.Start, newRange.Length)
}
