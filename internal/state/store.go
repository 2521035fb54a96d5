package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no record exists for a task.
var ErrNotFound = errors.New("state: record not found")

// Store persists task records keyed by normalized task name.
type Store interface {
	Load(name string) (Record, error)
	Save(name string, rec Record) error
	Update(name string, mutate func(*Record)) (Record, error)
	Delete(name string) error
}

// FileStore keeps one JSON file per task inside a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory must already exist.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the records.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the record file for a task.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads a task record. Missing files yield ErrNotFound; a record that
// cannot be decoded is reported as ErrNotFound as well, wrapped with the
// decode error, so callers can fall back to "stopped".
func (s *FileStore) Load(name string) (Record, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("state: read %s: %w", name, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode %s: %v", ErrNotFound, name, err)
	}
	return rec, nil
}

// Save replaces the task record. The payload is written to a temporary file
// in the same directory and renamed over the target so readers never see a
// partial record.
func (s *FileStore) Save(name string, rec Record) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(encoded, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, s.Path(name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: replace %s: %w", name, err)
	}
	return nil
}

// Update loads the record (or starts from an empty one), applies mutate, and
// saves the result.
func (s *FileStore) Update(name string, mutate func(*Record)) (Record, error) {
	rec, err := s.Load(name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}
	if errors.Is(err, ErrNotFound) {
		rec = Record{}
	}
	mutate(&rec)
	if err := s.Save(name, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete removes the task record. Deleting a missing record succeeds.
func (s *FileStore) Delete(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("state: delete %s: %w", name, err)
	}
	return nil
}
