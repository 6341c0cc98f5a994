package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		in     string
		wantID string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		url, id := ParseArg(tt.in)
		assert.Equal(t, tt.wantID, id, tt.in)
		assert.Equal(t, WatchURL(tt.wantID), url, tt.in)
	}

	_, err := getVideoID("https://vimeo.com/123")
	assert.Error(t, err)
	_, err = getVideoID("https://www.youtube.com/playlist?list=PL123")
	assert.Error(t, err)
}

func TestParseSelection(t *testing.T) {
	cands := []Candidate{{ID: "v1"}, {ID: "v2"}, {ID: "v3"}, {ID: "v4"}, {ID: "v5"}}

	tests := []struct {
		in   string
		want []string
	}{
		{"1,3", []string{"v1", "v3"}},
		{"2-4", []string{"v2", "v3", "v4"}},
		{"1 5", []string{"v1", "v5"}},
		{"v4, 1", []string{"v4", "v1"}},
		{"ALL", []string{"v1", "v2", "v3", "v4", "v5"}},
	}
	for _, tt := range tests {
		got, err := ParseSelection(tt.in, cands)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseSelection("  ", cands)
	assert.ErrorIs(t, err, ErrNoSelection)
	_, err = ParseSelection("6", cands)
	assert.ErrorContains(t, err, "out of range 1-5")
	_, err = ParseSelection("4-2", cands)
	assert.Error(t, err)
	_, err = ParseSelection("banana", cands)
	assert.ErrorContains(t, err, "not an index")
}

func TestIsValidYouTubeID(t *testing.T) {
	assert.True(t, IsValidYouTubeID("dQw4w9WgXcQ"))
	assert.True(t, IsValidYouTubeID("a-b_c123456"))
	assert.False(t, IsValidYouTubeID("short"))
	assert.False(t, IsValidYouTubeID("dQw4w9WgXcQ!"))
}

func TestValidateModel(t *testing.T) {
	assert.NoError(t, ValidateModel("gpt-4o-mini"))
	assert.ErrorContains(t, ValidateModel("gpt-2"), "unsupported model")
}

func TestSaveTranscript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	path, err := SaveTranscript("abc", "hello", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestTopCandidateIDs(t *testing.T) {
	cands := testCandidates(4)
	assert.Equal(t, []string{"a", "b"}, TopCandidateIDs(cands, 2))
	assert.Equal(t, []string{"a", "b", "c", "d"}, TopCandidateIDs(cands, 0))
	assert.Equal(t, []string{"a", "b", "c", "d"}, TopCandidateIDs(cands, 10))
}
