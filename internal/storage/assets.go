// Package storage manages the per-experiment upload hierarchy:
//
//	<root>/experiments/<experiment-id>/         uploaded static assets
//	<root>/experiments/<experiment-id>/data/    per-session response mirrors
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	// MaxFileSize is the per-file upload limit
	MaxFileSize = 50 * 1024 * 1024
	// MaxFiles is the per-request upload limit
	MaxFiles = 100
)

// allowedExtensions restricts uploads to web experiment asset types
var allowedExtensions = map[string]bool{
	".html": true, ".htm": true, ".css": true, ".js": true, ".json": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
	".mp3": true, ".wav": true, ".ogg": true,
	".mp4": true, ".webm": true,
	".txt": true,
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// FileInfo describes a stored asset
type FileInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploaded"`
}

// Store is a filesystem asset store rooted at a configured upload directory
type Store struct {
	Root string
}

// NewStore creates a Store rooted at dir
func NewStore(dir string) *Store {
	return &Store{Root: dir}
}

// ExperimentDir returns the asset directory for an experiment
func (s *Store) ExperimentDir(experimentID string) string {
	return filepath.Join(s.Root, "experiments", experimentID)
}

// DataDir returns the per-session response mirror directory for an experiment
func (s *Store) DataDir(experimentID string) string {
	return filepath.Join(s.ExperimentDir(experimentID), "data")
}

// RelativePath returns the experiment directory path relative to the root,
// persisted on the Experiment record.
func (s *Store) RelativePath(experimentID string) string {
	return filepath.Join("experiments", experimentID)
}

// SanitizeFilename strips path components and unsafe characters while
// preserving the extension.
func SanitizeFilename(name string) string {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = unsafeNameChars.ReplaceAllString(stem, "_")
	if len(stem) > 100 {
		stem = stem[:100]
	}
	return stem + ext
}

// AllowedFile reports whether the filename has a permitted extension
func AllowedFile(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// SaveAsset writes an uploaded asset into the experiment directory.
// The name is sanitized; an existing file of the same name is replaced.
func (s *Store) SaveAsset(experimentID, originalName string, r io.Reader) (FileInfo, error) {
	if !AllowedFile(originalName) {
		return FileInfo{}, fmt.Errorf("file type not allowed: %s", originalName)
	}

	dir := s.ExperimentDir(experimentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create experiment directory: %w", err)
	}

	name := SanitizeFilename(originalName)
	dst := filepath.Join(dir, name)

	f, err := os.Create(dst)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create asset file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		os.Remove(dst)
		return FileInfo{}, fmt.Errorf("failed to write asset: %w", err)
	}
	if n > MaxFileSize {
		os.Remove(dst)
		return FileInfo{}, fmt.Errorf("file too large: %s", originalName)
	}

	return FileInfo{Filename: name, Size: n, Uploaded: time.Now()}, nil
}

// ListAssets lists the uploaded assets for an experiment. The data/ mirror
// subdirectory is excluded. A missing directory yields an empty list.
func (s *Store) ListAssets(experimentID string) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.ExperimentDir(experimentID))
	if err != nil {
		if os.IsNotExist(err) {
			return []FileInfo{}, nil
		}
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Filename: entry.Name(),
			Size:     info.Size(),
			Uploaded: info.ModTime(),
		})
	}
	return files, nil
}

// OpenAsset opens a stored asset for reading, traversal-safe
func (s *Store) OpenAsset(experimentID, filename string) (*os.File, error) {
	name := filepath.Base(filename)
	return os.Open(filepath.Join(s.ExperimentDir(experimentID), name))
}

// DeleteAsset removes a stored asset, traversal-safe
func (s *Store) DeleteAsset(experimentID, filename string) error {
	name := filepath.Base(filename)
	return os.Remove(filepath.Join(s.ExperimentDir(experimentID), name))
}

// MirrorSession writes a redundant copy of a participant submission under
// data/<session>_<unix>.json. The session+timestamp qualified name keeps
// concurrent submissions from overwriting each other.
func (s *Store) MirrorSession(experimentID, sessionID string, payload []byte) (string, error) {
	dir := s.DataDir(experimentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	name := fmt.Sprintf("%s_%d.json", SanitizeFilename(sessionID), time.Now().Unix())
	dst := filepath.Join(dir, name)
	if err := os.WriteFile(dst, payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to write session mirror: %w", err)
	}
	return dst, nil
}

// RemoveSessionMirrors deletes all mirror files for a session. Best effort:
// the first removal error is returned but remaining files are still tried.
func (s *Store) RemoveSessionMirrors(experimentID, sessionID string) error {
	pattern := filepath.Join(s.DataDir(experimentID), SanitizeFilename(sessionID)+"_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	var firstErr error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RemoveExperiment deletes the entire asset directory for an experiment
func (s *Store) RemoveExperiment(experimentID string) error {
	return os.RemoveAll(s.ExperimentDir(experimentID))
}

// DirUsage reports the recursive size and file count of a directory. A
// missing directory reports zero usage.
func DirUsage(dir string) (size int64, fileCount int, err error) {
	err = filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if !info.IsDir() {
			size += info.Size()
			fileCount++
		}
		return nil
	})
	if os.IsNotExist(err) {
		err = nil
	}
	return size, fileCount, err
}
