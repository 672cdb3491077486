package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "retry-backoff-tuning", Slugify("Retry Backoff Tuning!"))
	assert.Equal(t, "a-b-c", Slugify("  A -- B_C  "))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestFilenameAndID(t *testing.T) {
	created := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	name := Filename(created, "Retry backoff tuning")
	assert.Equal(t, "20260115-retry-backoff-tuning.md", name)
	assert.Equal(t, "20260115-retry-backoff-tuning", ID(name))
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "20260115-retry-backoff-tuning.md")

	p := &Primitive{
		Kind: KindDecision,
		Path: path,
		Frontmatter: Frontmatter{
			ID:         "20260115-retry-backoff-tuning",
			Title:      "Retry backoff tuning",
			Created:    "2026-01-15T10:30:00Z",
			Source:     "run-42",
			Confidence: 0.8,
			Tags:       []string{"queue", "retries"},
		},
		Body: "We chose exponential backoff capped at 3600s.\n",
	}
	require.NoError(t, Write(p))

	got, err := Read(KindDecision, path)
	require.NoError(t, err)
	assert.Equal(t, p.Frontmatter.Title, got.Frontmatter.Title)
	assert.Equal(t, p.Frontmatter.Confidence, got.Frontmatter.Confidence)
	assert.Equal(t, []string{"queue", "retries"}, got.Frontmatter.Tags)
	assert.Equal(t, p.Body, got.Body)
}

func TestWriteLearningIncludesKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "20260115-prefer-context-timeouts.md")

	p := &Primitive{
		Kind: KindLearning,
		Path: path,
		Frontmatter: Frontmatter{
			ID:           "20260115-prefer-context-timeouts",
			Title:        "Prefer context timeouts",
			Created:      "2026-01-15T10:30:00Z",
			Source:       "run-42",
			LearningKind: LearningPreference,
		},
		Body: "Always pass a context with a deadline to blocking calls.\n",
	}
	require.NoError(t, Write(p))

	got, err := Read(KindLearning, path)
	require.NoError(t, err)
	assert.Equal(t, LearningPreference, got.Frontmatter.LearningKind)
}

func TestReadRejectsMissingFence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.md")
	require.NoError(t, os.WriteFile(path, []byte("no frontmatter here\n"), 0o644))

	_, err := Read(KindDecision, path)
	assert.Error(t, err)
}
