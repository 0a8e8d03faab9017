package suite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clinicprobe/internal/scenario"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *scenario.Run) error { return nil }

func harness(t *testing.T) *scenario.Harness {
	t.Helper()
	h := scenario.NewHarness(1, 0)
	require.NoError(t, h.Register(
		&scenario.Scenario{ID: "app-loads", Group: "application", Tags: []string{"smoke"}, Act: noop},
		&scenario.Scenario{ID: "upload-bulk", Group: "upload", Tags: []string{"perf"}, Act: noop},
		&scenario.Scenario{ID: "upload-ragged", Group: "upload", Act: noop},
		&scenario.Scenario{ID: "offline-indicator", Group: "network", Tags: []string{"smoke"}, Act: noop},
	))
	return h
}

func ids(scenarios []*scenario.Scenario) []string {
	var out []string
	for _, sc := range scenarios {
		out = append(out, sc.ID)
	}
	return out
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	content := `version: 1
name: smoke
entries:
  - id: app-loads
  - group: upload
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", s.Name)
	require.Len(t, s.Entries, 2)
	assert.Equal(t, "app-loads", s.Entries[0].ID)
	assert.Equal(t, "upload", s.Entries[1].Group)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "entries: [\n"},
		{"future version", "version: 2\nentries:\n  - id: app-loads\n"},
		{"no entries", "version: 1\nname: empty\n"},
		{"empty entry", "entries:\n  - {}\n"},
		{"id with group", "entries:\n  - id: app-loads\n    group: upload\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestResolveKeepsEntryOrderAndDedups(t *testing.T) {
	s, err := Parse([]byte(`entries:
  - id: offline-indicator
  - tags: [smoke]
  - group: upload
  - id: upload-bulk
`))
	require.NoError(t, err)

	got, err := s.Resolve(harness(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"offline-indicator", "app-loads", "upload-bulk", "upload-ragged"}, ids(got))
}

func TestResolveUnknownID(t *testing.T) {
	s, err := Parse([]byte("entries:\n  - id: renamed-away\n"))
	require.NoError(t, err)

	_, err = s.Resolve(harness(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renamed-away")
}

func TestResolveEntryMatchingNothing(t *testing.T) {
	s, err := Parse([]byte("entries:\n  - group: upload\n    tags: [smoke]\n"))
	require.NoError(t, err)

	_, err = s.Resolve(harness(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group=upload tags=smoke")
}
