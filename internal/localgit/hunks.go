package localgit

import (
	"strings"

	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"

	"github.com/bordumb/RadicleApp/internal/radicle"
)

// contextLines is the number of unchanged lines kept around each change.
const contextLines = 3

type numberedLine struct {
	kind  radicle.LineKind
	text  string
	oldNo int
	newNo int
}

// splitLines breaks chunk content into lines without their terminators.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\n")
	}
	return lines
}

// numberLines flattens chunks into lines carrying old and new line numbers.
func numberLines(chunks []fdiff.Chunk) []numberedLine {
	var out []numberedLine
	oldNo, newNo := 1, 1
	for _, c := range chunks {
		for _, text := range splitLines(c.Content()) {
			switch c.Type() {
			case fdiff.Equal:
				out = append(out, numberedLine{kind: radicle.LineContext, text: text, oldNo: oldNo, newNo: newNo})
				oldNo++
				newNo++
			case fdiff.Delete:
				out = append(out, numberedLine{kind: radicle.LineDeletion, text: text, oldNo: oldNo})
				oldNo++
			case fdiff.Add:
				out = append(out, numberedLine{kind: radicle.LineAddition, text: text, newNo: newNo})
				newNo++
			}
		}
	}
	return out
}

// buildHunks groups changed lines into unified diff hunks with
// contextLines of context, merging hunks whose context would overlap.
func buildHunks(chunks []fdiff.Chunk) []radicle.Hunk {
	lines := numberLines(chunks)
	var hunks []radicle.Hunk
	i := 0
	for i < len(lines) {
		for i < len(lines) && lines[i].kind == radicle.LineContext {
			i++
		}
		if i == len(lines) {
			break
		}
		start := max(0, i-contextLines)
		end := i
		for {
			for end < len(lines) && lines[end].kind != radicle.LineContext {
				end++
			}
			next := end
			for next < len(lines) && lines[next].kind == radicle.LineContext {
				next++
			}
			if next == len(lines) || next-end > 2*contextLines {
				end = min(len(lines), end+contextLines)
				break
			}
			end = next
		}
		hunks = append(hunks, toHunk(lines, start, end))
		i = end
	}
	return hunks
}

func toHunk(lines []numberedLine, start, end int) radicle.Hunk {
	var oldBefore, newBefore int
	for _, l := range lines[:start] {
		if l.kind != radicle.LineAddition {
			oldBefore++
		}
		if l.kind != radicle.LineDeletion {
			newBefore++
		}
	}

	h := radicle.Hunk{Lines: make([]radicle.Line, 0, end-start)}
	for _, l := range lines[start:end] {
		line := radicle.Line{Kind: l.kind, Text: l.text}
		if l.kind != radicle.LineAddition {
			n := l.oldNo
			line.OldLineNumber = &n
			h.Old.Length++
		}
		if l.kind != radicle.LineDeletion {
			n := l.newNo
			line.NewLineNumber = &n
			h.New.Length++
		}
		h.Lines = append(h.Lines, line)
	}
	h.Old.Start = rangeStart(oldBefore, h.Old.Length)
	h.New.Start = rangeStart(newBefore, h.New.Length)
	h.Header = radicle.FormatHunkHeader(h.Old, h.New)
	return h
}

// rangeStart follows the unified diff convention: an empty side starts at
// the line before the hunk.
func rangeStart(before, length int) int {
	if length == 0 {
		return before
	}
	return before + 1
}
