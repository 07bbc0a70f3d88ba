// Package artifact owns the on-disk handoff between pipeline stages: raw
// provider JSON under raw/, cleaned CSVs under staged/, and analysis output
// (processed CSVs, summary report, charts) under processed/.
//
// Each stage fully regenerates its own artifacts; nothing is merged in
// place. The producing stage finishes writing before the consuming stage
// reads.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/urbanaq/airq-etl/internal/domain"
)

// Filename timestamp layouts, kept compatible with the artifact naming the
// pipeline has always used.
const (
	rawStampLayout    = "20060102T150405Z"
	stagedStampLayout = "20060102_150405"
)

// clock is swappable so tests produce deterministic artifact names.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Store manages the raw/, staged/ and processed/ directories under one root.
type Store struct {
	rawDir       string
	stagedDir    string
	processedDir string
}

// NewStore creates the stage directories under root if missing.
func NewStore(root string) (*Store, error) {
	s := &Store{
		rawDir:       filepath.Join(root, "raw"),
		stagedDir:    filepath.Join(root, "staged"),
		processedDir: filepath.Join(root, "processed"),
	}
	for _, dir := range []string{s.rawDir, s.stagedDir, s.processedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return s, nil
}

// ProcessedDir returns the directory analysis artifacts are written to.
func (s *Store) ProcessedDir() string {
	return s.processedDir
}

// SaveRaw persists one provider response verbatim, keyed by city, dataset,
// and fetch timestamp. Raw artifacts are immutable once written and
// superseded, not merged, by the next run.
func (s *Store) SaveRaw(kind domain.DatasetKind, city string, payload []byte) (domain.RawArtifact, error) {
	name := fmt.Sprintf("%s_%s_raw_%s.json", slug(city), kind, clock.Now().UTC().Format(rawStampLayout))
	path := filepath.Join(s.rawDir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return domain.RawArtifact{}, fmt.Errorf("save raw artifact for %s: %w", city, err)
	}
	return domain.RawArtifact{City: city, Kind: kind, Path: path}, nil
}

// ReadRaw loads a previously persisted raw artifact.
func (s *Store) ReadRaw(a domain.RawArtifact) ([]byte, error) {
	payload, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("read raw artifact for %s: %w", a.City, err)
	}
	return payload, nil
}

func slug(city string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(city)), " ", "_")
}
