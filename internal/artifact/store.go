// Package artifact persists each pipeline stage's output under a
// deterministic per-run name so a later stage's failure leaves earlier
// artifacts inspectable on disk.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Exts in stage order. PNG is an intermediate diagnostic and lives in
// the temp dir; everything else goes to the output dir.
const (
	ExtHTML = "html"
	ExtPNG  = "png"
	ExtJSON = "json"
	ExtXLSX = "xlsx"
)

// maxCollisionSuffix bounds the deterministic collision probe; a run
// that somehow needs more than this many same-named files is broken.
const maxCollisionSuffix = 1000

// Store allocates and writes stage artifacts for one run. File names
// are {sender}_{timestamp}.{ext}; name collisions get a deterministic
// numeric suffix ({sender}_{timestamp}_2.{ext}, _3, ...) instead of
// silently overwriting.
type Store struct {
	outputDir string
	tempDir   string
	base      string
}

// NewStore creates the output and temp directories and fixes the
// per-run base name from the sender filter and the run start time.
func NewStore(outputDir, tempDir, sender string, start time.Time) (*Store, error) {
	for _, dir := range []string{outputDir, tempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	name := CleanName(sender)
	if name == "" {
		name = "message"
	}
	return &Store{
		outputDir: outputDir,
		tempDir:   tempDir,
		base:      name + "_" + Timestamp(start),
	}, nil
}

// Write persists one stage artifact and returns its path.
func (s *Store) Write(ext string, data []byte) (string, error) {
	path, f, err := s.create(ext)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// Allocate reserves a unique artifact path for writers that need a
// file name rather than a byte slice (the spreadsheet writer saves to
// a path itself). The reserved file is created empty.
func (s *Store) Allocate(ext string) (string, error) {
	path, f, err := s.create(ext)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func (s *Store) create(ext string) (string, *os.File, error) {
	dir := s.outputDir
	if ext == ExtPNG {
		dir = s.tempDir
	}
	for n := 1; n <= maxCollisionSuffix; n++ {
		name := s.base
		if n > 1 {
			name = fmt.Sprintf("%s_%d", s.base, n)
		}
		path := filepath.Join(dir, name+"."+ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return path, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, fmt.Errorf("create %s: %w", path, err)
		}
	}
	return "", nil, fmt.Errorf("no free artifact name for %s.%s after %d attempts", s.base, ext, maxCollisionSuffix)
}

// Timestamp formats a run start time as the file-name timestamp.
func Timestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// CleanName strips characters that are unsafe in file names, collapses
// runs of underscores, and trims leading/trailing ones.
func CleanName(name string) string {
	const unsafe = `<>:"/\|?* `
	out := strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafe, r) {
			return '_'
		}
		return r
	}, name)
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}
