package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtzll/ytscout/internal"
)

func testCandidates() []internal.Candidate {
	return []internal.Candidate{
		{ID: "aaaaaaaaaaa", Title: "First", Channel: "One", ViewCount: 300, URL: internal.WatchURL("aaaaaaaaaaa"), SourceKeyword: "kw"},
		{ID: "bbbbbbbbbbb", Title: "Second", Channel: "Two", ViewCount: 200, URL: internal.WatchURL("bbbbbbbbbbb"), SourceKeyword: "kw"},
		{ID: "ccccccccccc", Title: "Third, with comma", Channel: "Three", ViewCount: 100, URL: internal.WatchURL("ccccccccccc"), SourceKeyword: "kw"},
	}
}

func TestSplitFlagList(t *testing.T) {
	assert.Nil(t, splitFlagList(""))
	assert.Equal(t, []string{"related", "titles"}, splitFlagList(" related, ,titles "))
}

func TestCandidateSelectorExplicitSelection(t *testing.T) {
	sel := candidateSelector("1,3", false, 5)
	ids, err := sel(testCandidates())
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaaaaaa", "ccccccccccc"}, ids)

	sel = candidateSelector("9", false, 5)
	_, err = sel(testCandidates())
	assert.Error(t, err)
}

func TestCandidateSelectorTopResults(t *testing.T) {
	sel := candidateSelector("", true, 2)
	ids, err := sel(testCandidates())
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaaaaaa", "bbbbbbbbbbb"}, ids)
}

func TestWriteCandidatesFile(t *testing.T) {
	config = &internal.Config{Quiet: true}
	t.Cleanup(func() { config = nil })

	path := filepath.Join(t.TempDir(), "candidates.csv")
	require.NoError(t, writeCandidatesFile(path, testCandidates()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "index,id,title"))
	assert.Contains(t, lines[3], `"Third, with comma"`)
}
