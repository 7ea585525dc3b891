// Package jsonfile persists scan results, failures and analyses in a single
// JSON document on disk. It backs the CLI and the "file" database driver.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bryanwahyu/threatlens/internal/domain/analyst"
	"github.com/bryanwahyu/threatlens/internal/domain/scanerrors"
	"github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// maxErrors bounds the failure log kept in the file.
const maxErrors = 200

type document struct {
	Scans    []*scans.ScanResult     `json:"scans"`  // newest first
	Errors   []*scanerrors.ScanError `json:"errors"` // newest first
	Analyses []*analyst.Analysis     `json:"analyses"`
	NextErr  int64                   `json:"next_error_id"`
}

// File is the shared document. Use the Scans, Errors and Analyses views as
// repositories.
type File struct {
	mu   sync.Mutex
	path string
	doc  document
}

// DefaultPath returns the default results file path (~/.threatlens/results.json).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".threatlens/results.json"
	}
	return filepath.Join(home, ".threatlens", "results.json")
}

// Open reads path if it exists. A missing file starts empty. Symlinks are rejected.
func Open(path string) (*File, error) {
	f := &File{path: path}
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("results file is a symlink (rejected for security): %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return f, nil
}

// Path returns the file path of this store.
func (f *File) Path() string { return f.path }

// mutate applies fn and writes the document. The in-memory document is
// rolled back when the write fails.
func (f *File) mutate(fn func(d *document)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev := f.doc
	prev.Scans = append([]*scans.ScanResult(nil), f.doc.Scans...)
	prev.Errors = append([]*scanerrors.ScanError(nil), f.doc.Errors...)
	prev.Analyses = append([]*analyst.Analysis(nil), f.doc.Analyses...)

	fn(&f.doc)
	if err := f.write(); err != nil {
		f.doc = prev
		return err
	}
	return nil
}

// write: dirs 0o700, file 0o600, via temp file + rename.
func (f *File) write() error {
	if info, err := os.Lstat(f.path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("results file is a symlink (rejected for security): %s", f.path)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&f.doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".results-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *File) Scans() *ScanRepository { return &ScanRepository{f: f} }
func (f *File) Errors() *ErrorRepository { return &ErrorRepository{f: f} }
func (f *File) Analyses() *AnalystRepository { return &AnalystRepository{f: f} }
