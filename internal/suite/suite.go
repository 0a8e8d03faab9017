// Package suite loads named scenario selections from YAML.
// A suite file lets a CI job or a developer pin the exact set of checks
// to run without repeating --scenario/--group/--tag flags.
package suite

import (
	"fmt"
	"os"
	"strings"

	"clinicprobe/internal/scenario"

	"gopkg.in/yaml.v3"
)

// Suite is an ordered list of selection entries.
type Suite struct {
	Version int     `yaml:"version"`
	Name    string  `yaml:"name,omitempty"`
	Entries []Entry `yaml:"entries"`
}

// Entry selects scenarios by ID, or by group and tags.
type Entry struct {
	ID    string   `yaml:"id,omitempty"`
	Group string   `yaml:"group,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`
}

func (e Entry) filter() scenario.Filter {
	f := scenario.Filter{Group: e.Group, Tags: e.Tags}
	if e.ID != "" {
		f.IDs = []string{e.ID}
	}
	return f
}

func (e Entry) String() string {
	var parts []string
	if e.ID != "" {
		parts = append(parts, "id="+e.ID)
	}
	if e.Group != "" {
		parts = append(parts, "group="+e.Group)
	}
	if len(e.Tags) > 0 {
		parts = append(parts, "tags="+strings.Join(e.Tags, ","))
	}
	return strings.Join(parts, " ")
}

// Load reads a YAML suite file from disk.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a suite document.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse suite YAML: %w", err)
	}
	if s.Version > 1 {
		return nil, fmt.Errorf("unsupported suite version %d", s.Version)
	}
	if len(s.Entries) == 0 {
		return nil, fmt.Errorf("suite %q has no entries", s.Name)
	}
	for i, e := range s.Entries {
		if e.ID == "" && e.Group == "" && len(e.Tags) == 0 {
			return nil, fmt.Errorf("suite entry %d selects nothing", i)
		}
		if e.ID != "" && (e.Group != "" || len(e.Tags) > 0) {
			return nil, fmt.Errorf("suite entry %d: id cannot be combined with group or tags", i)
		}
	}
	return &s, nil
}

// Resolve returns the scenarios the suite names, in entry order, each at
// most once. An entry that matches nothing is an error so a renamed
// scenario cannot silently drop out of CI.
func (s *Suite) Resolve(h *scenario.Harness) ([]*scenario.Scenario, error) {
	seen := make(map[string]bool)
	var out []*scenario.Scenario
	for _, e := range s.Entries {
		matched, err := h.Select(e.filter())
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			return nil, fmt.Errorf("suite entry %q matches no scenario", e)
		}
		for _, sc := range matched {
			if !seen[sc.ID] {
				seen[sc.ID] = true
				out = append(out, sc)
			}
		}
	}
	return out, nil
}
