// Package fixture generates CSV upload fixtures for ClinicLite: valid data
// and every malformed, oversized, adversarial and boundary variant the
// upload pipeline has to survive. Fixtures are materialized as uniquely
// named temporary files behind a Handle that must be released.
package fixture

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"clinicprobe/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Classification says which kind of input a fixture is.
type Classification string

const (
	ClassValid            Classification = "valid"
	ClassWrongHeaders     Classification = "wrong-headers"
	ClassMissingColumns   Classification = "missing-columns"
	ClassExtraColumns     Classification = "extra-columns"
	ClassEmptyHeaderOnly  Classification = "empty-header-only"
	ClassEmptyNoHeader    Classification = "empty-no-header"
	ClassOversizedRows    Classification = "oversized-rows"
	ClassOversizedField   Classification = "oversized-field"
	ClassUnicodeStress    Classification = "unicode-stress"
	ClassBoundaryDates    Classification = "boundary-dates"
	ClassBoundaryPhones   Classification = "boundary-phones"
	ClassInjectionSQL     Classification = "injection-sql"
	ClassInjectionMarkup  Classification = "injection-markup"
	ClassInjectionCommand Classification = "injection-command"
	ClassRagged           Classification = "ragged"
	ClassDuplicateKeys    Classification = "duplicate-keys"
)

// Fixture is a generated CSV document.
type Fixture struct {
	// Schema is the header actually written.
	Schema Schema `json:"schema"`
	// Target is the schema the fixture is uploaded as. It differs from
	// Schema only for wrong-schema variants.
	Target Schema         `json:"target"`
	Class  Classification `json:"class"`
	// Header is false only for the no-header empty variant.
	Header bool       `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Ragged reports whether any row deviates from the header arity.
func (f *Fixture) Ragged() bool {
	for _, row := range f.Rows {
		if len(row) != f.Schema.Arity() {
			return true
		}
	}
	return false
}

// Encode writes the fixture as CSV.
func (f *Fixture) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)
	if f.Header {
		if err := cw.Write(f.Schema.Columns); err != nil {
			return err
		}
	}
	for _, row := range f.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Bytes returns the encoded CSV.
func (f *Fixture) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write materializes the fixture under dir with a collision-resistant name.
func (f *Fixture) Write(dir string) (*Handle, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create fixture dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s.csv", f.Target.Name, f.Class, uuid.NewString())
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("create fixture file: %w", err)
	}
	if err := f.Encode(file); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("encode fixture: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close fixture file: %w", err)
	}

	logging.Fixture().Debug("fixture written",
		zap.String("path", path),
		zap.String("class", string(f.Class)),
		zap.Int("rows", len(f.Rows)))

	return &Handle{
		Path:   path,
		Class:  f.Class,
		Target: f.Target,
		Rows:   len(f.Rows),
	}, nil
}

// Handle is a fixture file on disk owned by exactly one scenario.
type Handle struct {
	Path   string         `json:"path"`
	Class  Classification `json:"class"`
	Target Schema         `json:"target"`
	Rows   int            `json:"rows"`

	mu       sync.Mutex
	released bool
}

// Release deletes the file. It is idempotent, and a file that is already
// gone counts as released.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release fixture %s: %w", h.Path, err)
	}
	h.released = true
	return nil
}

// Released reports whether Release has succeeded.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Set tracks every handle a scenario acquired so cleanup can release them
// all, on every exit path.
type Set struct {
	dir string

	mu      sync.Mutex
	handles []*Handle
}

// NewSet returns a set that writes fixtures under dir.
func NewSet(dir string) *Set {
	return &Set{dir: dir}
}

// Write materializes f and tracks the handle.
func (s *Set) Write(f *Fixture) (*Handle, error) {
	h, err := f.Write(s.dir)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h, nil
}

// Handles returns the tracked handles.
func (s *Set) Handles() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Handle(nil), s.handles...)
}

// ReleaseAll releases every tracked handle and joins the failures.
func (s *Set) ReleaseAll() error {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
