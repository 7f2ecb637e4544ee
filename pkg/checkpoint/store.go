// Package checkpoint persists pipeline progress so an interrupted run can
// pick up exactly where it stopped. The state is a single JSON file written
// atomically after every mutation.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store owns one checkpoint file. It is not safe for concurrent use; the
// pipeline is the single writer.
type Store struct {
	path  string
	state State
}

// New creates a store over the given file path. Nothing is read or written
// until Load or Save is called.
func New(path string) *Store {
	return &Store{
		path: path,
		state: State{
			Version:      Version,
			Measurements: make(map[int]*Record),
		},
	}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the checkpoint file. It returns false without error when no
// file exists yet. A file that cannot be parsed, or that was written with a
// different format version, is an error: resuming from an unknown state is
// worse than starting over explicitly.
func (s *Store) Load() (bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading checkpoint %s: %w", s.path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return false, fmt.Errorf("parsing checkpoint %s (possibly corrupted): %w", s.path, err)
	}
	if state.Version != Version {
		return false, fmt.Errorf("checkpoint %s has format version %q, this build writes %q", s.path, state.Version, Version)
	}
	if state.Measurements == nil {
		state.Measurements = make(map[int]*Record)
	}

	s.state = state
	return true, nil
}

// Save writes the current state to disk atomically.
func (s *Store) Save() error {
	s.state.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("writing checkpoint %s: %w", s.path, err)
	}
	return nil
}

// Config returns the stored run configuration.
func (s *Store) Config() RunConfig {
	return s.state.Config
}

// SetConfig replaces the run configuration and persists the state.
func (s *Store) SetConfig(cfg RunConfig) error {
	s.state.Config = cfg
	return s.Save()
}

// VerifyResumable checks that the loaded checkpoint belongs to a run with
// the given configuration. A mismatch means the records were produced by a
// different segmentation and must not be trusted.
func (s *Store) VerifyResumable(cfg RunConfig) error {
	if !s.state.Config.Matches(cfg) {
		return fmt.Errorf("checkpoint %s was written by a run with different parameters (stored folder %q, flags convert=%v reprocess=%v replace=%v download=%v)",
			s.path, s.state.Config.Folder,
			s.state.Config.ConvertOnly, s.state.Config.Reprocess,
			s.state.Config.Replace, s.state.Config.Download)
	}
	return nil
}

// Record returns the progress record for the given ordinal, creating an
// empty one on first access.
func (s *Store) Record(ordinal int) *Record {
	rec, ok := s.state.Measurements[ordinal]
	if !ok {
		rec = &Record{}
		s.state.Measurements[ordinal] = rec
	}
	return rec
}

// Records returns all progress records keyed by ordinal.
func (s *Store) Records() map[int]*Record {
	return s.state.Measurements
}

// Update mutates one record and persists the state.
func (s *Store) Update(ordinal int, fn func(*Record)) error {
	fn(s.Record(ordinal))
	return s.Save()
}

// AdvanceWatermark moves the continuous-mode watermark forward and persists
// the state. Earlier times are ignored without a write.
func (s *Store) AdvanceWatermark(t time.Time) error {
	if !t.After(s.state.Config.LastProcessed) {
		return nil
	}
	s.state.Config.LastProcessed = t
	return s.Save()
}

// Watermark returns the continuous-mode watermark, zero when none is set.
func (s *Store) Watermark() time.Time {
	return s.state.Config.LastProcessed
}

// ResetMeasurements drops all progress records, keeping the configuration,
// and persists the state. Called when a run completes in full.
func (s *Store) ResetMeasurements() error {
	s.state.Measurements = make(map[int]*Record)
	return s.Save()
}

// writeAtomic writes via a temp file in the target directory followed by a
// rename, so a crash mid-write can never leave a truncated checkpoint.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
