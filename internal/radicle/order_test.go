package radicle

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestSortEntries_DirectoriesFirstThenBytewise(t *testing.T) {
	entries := []Entry{
		{Name: "b.txt", Kind: KindFile},
		{Name: "a", Kind: KindDirectory},
		{Name: "B", Kind: KindDirectory},
		{Name: "A.txt", Kind: KindFile},
	}

	SortEntries(entries)

	assert.Equal(t, []string{"B", "a", "A.txt", "b.txt"}, names(entries))
}

func TestSortEntries_Idempotent(t *testing.T) {
	entries := []Entry{
		{Name: "utils", Kind: KindDirectory},
		{Name: "main.ts", Kind: KindFile},
		{Name: "api.ts", Kind: KindFile},
	}
	SortEntries(entries)
	first := names(entries)
	SortEntries(entries)
	assert.Equal(t, first, names(entries))
	assert.Equal(t, []string{"utils", "api.ts", "main.ts"}, first)
}

func randomEntries(r *rand.Rand) []Entry {
	const alphabet = "aAbBzZ09._-"
	seen := make(map[string]bool)
	n := r.IntN(40)
	entries := make([]Entry, 0, n)
	for len(entries) < n {
		name := make([]byte, 1+r.IntN(6))
		for i := range name {
			name[i] = alphabet[r.IntN(len(alphabet))]
		}
		if seen[string(name)] {
			continue
		}
		seen[string(name)] = true
		kind := KindFile
		if r.IntN(2) == 0 {
			kind = KindDirectory
		}
		entries = append(entries, Entry{Name: string(name), Kind: kind})
	}
	return entries
}

func TestSortEntries_RandomListings(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		entries := randomEntries(r)
		SortEntries(entries)

		seenFile := false
		for i, e := range entries {
			if !e.IsDir() {
				seenFile = true
			} else {
				require.False(t, seenFile, "directory %q after a file in round %d", e.Name, round)
			}
			if i > 0 && entries[i-1].Kind == e.Kind {
				require.Less(t, entries[i-1].Name, e.Name, "round %d", round)
			}
		}

		shuffled := append([]Entry(nil), entries...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		SortEntries(shuffled)
		require.Equal(t, names(entries), names(shuffled), "round %d", round)
	}
}

func TestCompareEntries(t *testing.T) {
	dir := Entry{Name: "z", Kind: KindDirectory}
	file := Entry{Name: "a", Kind: KindFile}

	assert.Equal(t, -1, CompareEntries(dir, file))
	assert.Equal(t, 1, CompareEntries(file, dir))
	assert.Equal(t, 0, CompareEntries(file, file))
	assert.Negative(t, CompareEntries(Entry{Name: "Z", Kind: KindFile}, Entry{Name: "a", Kind: KindFile}))
}

func TestSumStats(t *testing.T) {
	one, two := 1, 2
	files := []FileDiff{
		{Path: "a", Hunks: []Hunk{{Lines: []Line{
			{Kind: LineContext, OldLineNumber: &one, NewLineNumber: &one},
			{Kind: LineDeletion, OldLineNumber: &two},
			{Kind: LineAddition, NewLineNumber: &two},
			{Kind: LineAddition},
		}}}},
		{Path: "b", Binary: true},
	}

	stats := SumStats(files)
	assert.Equal(t, DiffStats{FilesChanged: 2, Insertions: 2, Deletions: 1}, stats)
}
