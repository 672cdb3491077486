package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/lerim-dev/lerim/internal/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAdapter struct{ name string }

func (f *failingAdapter) Name() string                      { return f.name }
func (f *failingAdapter) DefaultPath() string               { return "" }
func (f *failingAdapter) CountSessions(string) (int, error) { return 0, nil }
func (f *failingAdapter) IterSessions(string, *time.Time, *time.Time, map[string]string) ([]adapters.SessionRecord, error) {
	return nil, errors.New("platform unreachable")
}
func (f *failingAdapter) FindSessionPath(string, string) (string, error) { return "", nil }
func (f *failingAdapter) ReadSession(string, string) (*adapters.ViewerSession, error) {
	return nil, nil
}

type workingAdapter struct{ name string }

func (w *workingAdapter) Name() string                      { return w.name }
func (w *workingAdapter) DefaultPath() string               { return "" }
func (w *workingAdapter) CountSessions(string) (int, error) { return 1, nil }
func (w *workingAdapter) IterSessions(string, *time.Time, *time.Time, map[string]string) ([]adapters.SessionRecord, error) {
	return []adapters.SessionRecord{{RunID: "run-1", SessionPath: "/traces/run-1.jsonl", ContentHash: "h1"}}, nil
}
func (w *workingAdapter) FindSessionPath(string, string) (string, error) { return "", nil }
func (w *workingAdapter) ReadSession(string, string) (*adapters.ViewerSession, error) {
	return nil, nil
}

// One adapter failing enumeration must not stop discovery for the rest
// (§7 "AdapterError ... logged, other platforms continue").
func TestDiscoverNewContinuesPastAFailingAdapter(t *testing.T) {
	c := openTestCatalog(t)

	registry := adapters.NewRegistry()
	registry.Register(&failingAdapter{name: "broken"})
	registry.Register(&workingAdapter{name: "claude"})

	records, err := c.DiscoverNew(registry, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run-1", records[0].RunID)
}
