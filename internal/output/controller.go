package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolioAnalyzer/internal/report"
)

// Controller owns the output directory and enforces the one-file-per-kind-
// per-day rule: publishing an artifact replaces any earlier file of the same
// kind from the same calendar day and leaves prior days untouched. The date
// embedded in the filename is the source of truth, not filesystem mtimes.
type Controller struct {
	dir string
	log zerolog.Logger

	// One mutex per kind: concurrent runs publishing different kinds don't
	// serialize against each other.
	mu map[report.Kind]*sync.Mutex
}

func NewController(dir string, log zerolog.Logger) (*Controller, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	mu := make(map[report.Kind]*sync.Mutex, len(report.AllKinds()))
	for _, k := range report.AllKinds() {
		mu[k] = &sync.Mutex{}
	}
	return &Controller{dir: dir, log: log, mu: mu}, nil
}

func (c *Controller) Dir() string { return c.dir }

// filename builds prefix_YYYYMMDD_HHMMSS.ext for the given moment.
func filename(kind report.Kind, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", kind.Prefix(), at.Format("20060102_150405"), kind.Ext())
}

// extractDate parses the embedded timestamp out of a published filename.
// Returns false for names that don't follow the scheme.
func extractDate(kind report.Kind, name string) (time.Time, bool) {
	prefix := kind.Prefix() + "_"
	suffix := "." + kind.Ext()
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	t, err := time.Parse("20060102_150405", stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Publish writes data as a new artifact of the given kind, removing any
// same-day predecessors of that kind first. The write is atomic: data lands
// in a temp file and is renamed into place.
func (c *Controller) Publish(kind report.Kind, data []byte) (string, error) {
	mu, ok := c.mu[kind]
	if !ok {
		return "", fmt.Errorf("unknown artifact kind %v", kind)
	}
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	today := now.Format("20060102")

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return "", fmt.Errorf("failed to read output dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stamp, ok := extractDate(kind, e.Name())
		if !ok || stamp.Format("20060102") != today {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return "", fmt.Errorf("failed to remove superseded %s: %w", e.Name(), err)
		}
		c.log.Debug().Str("file", e.Name()).Msg("removed superseded artifact")
	}

	name := filename(kind, now)
	final := filepath.Join(c.dir, name)
	tmp, err := os.CreateTemp(c.dir, "."+kind.Prefix()+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}
	c.log.Info().Str("kind", kind.Key()).Str("file", name).Int("bytes", len(data)).Msg("artifact published")
	return name, nil
}

// Artifact is one published file found in the output directory.
type Artifact struct {
	Kind     report.Kind
	Name     string
	Stamp    time.Time
	SizeByte int64
}

// History lists published artifacts ordered newest first, by the timestamp
// embedded in the name.
func (c *Controller) History() ([]Artifact, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output dir: %w", err)
	}
	var out []Artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, k := range report.AllKinds() {
			stamp, ok := extractDate(k, e.Name())
			if !ok {
				continue
			}
			var size int64
			if info, err := e.Info(); err == nil {
				size = info.Size()
			}
			out = append(out, Artifact{Kind: k, Name: e.Name(), Stamp: stamp, SizeByte: size})
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stamp.After(out[j].Stamp) })
	return out, nil
}

// CleanupOlderThan deletes artifacts whose embedded date is before the
// cutoff. Returns the number of files removed.
func (c *Controller) CleanupOlderThan(cutoff time.Time) (int, error) {
	artifacts, err := c.History()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, a := range artifacts {
		if !a.Stamp.Before(cutoff) {
			continue
		}
		mu := c.mu[a.Kind]
		mu.Lock()
		err := os.Remove(filepath.Join(c.dir, a.Name))
		mu.Unlock()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("failed to remove %s: %w", a.Name, err)
		}
		removed++
		c.log.Info().Str("file", a.Name).Msg("expired artifact removed")
	}
	return removed, nil
}
