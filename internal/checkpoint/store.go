package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// checkpointFileExtension is the file extension used for run files.
const checkpointFileExtension = ".json"

// Common checkpoint errors.
var (
	ErrRunNotFound  = errors.New("run not found")
	ErrInvalidRunID = errors.New("invalid run ID")
)

// FileStore keeps run states as JSON files in a directory.
// Thread-safe for concurrent access.
type FileStore struct {
	directory string
	mu        sync.RWMutex
}

// NewFileStore creates a store in directory, creating it if needed.
func NewFileStore(directory string) (*FileStore, error) {
	if directory == "" {
		return nil, errors.New("checkpoint directory cannot be empty")
	}
	if err := os.MkdirAll(directory, 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{directory: directory}, nil
}

// Directory returns the checkpoint directory path.
func (s *FileStore) Directory() string {
	return s.directory
}

// Get loads the run with the given ID.
func (s *FileStore) Get(runID string) (*RunState, error) {
	path, err := s.runPath(runID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return readRun(path)
}

// Save writes state, replacing any previous checkpoint of the same run.
func (s *FileStore) Save(state *RunState) error {
	if state == nil {
		return errors.New("run state cannot be nil")
	}
	path, err := s.runPath(state.RunID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tempPath := path + ".tmp"
	if writeErr := os.WriteFile(tempPath, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write checkpoint: %w", writeErr)
	}
	if renameErr := os.Rename(tempPath, path); renameErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint: %w", renameErr)
	}
	return nil
}

// Delete removes a run. Deleting a missing run returns ErrRunNotFound.
func (s *FileStore) Delete(runID string) error {
	path, err := s.runPath(runID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if removeErr := os.Remove(path); removeErr != nil {
		if os.IsNotExist(removeErr) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("failed to delete checkpoint: %w", removeErr)
	}
	return nil
}

// List returns every stored run, oldest first. Unreadable files are skipped.
func (s *FileStore) List() ([]*RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var runs []*RunState
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != checkpointFileExtension {
			continue
		}
		state, readErr := readRun(filepath.Join(s.directory, entry.Name()))
		if readErr != nil {
			continue
		}
		runs = append(runs, state)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].RunID < runs[j].RunID })
	return runs, nil
}

// PruneFinished removes completed and failed runs and returns how many were removed.
func (s *FileStore) PruneFinished() (int, error) {
	runs, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, run := range runs {
		if !run.Finished() {
			continue
		}
		if deleteErr := s.Delete(run.RunID); deleteErr != nil {
			return removed, deleteErr
		}
		removed++
	}
	return removed, nil
}

// runPath validates runID and maps it to its file.
func (s *FileStore) runPath(runID string) (string, error) {
	id, err := ulid.ParseStrict(strings.TrimSpace(runID))
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidRunID, runID, err)
	}
	return filepath.Join(s.directory, id.String()+checkpointFileExtension), nil
}

func readRun(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, strings.TrimSuffix(filepath.Base(path), checkpointFileExtension))
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var state RunState
	if unmarshalErr := json.Unmarshal(data, &state); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", unmarshalErr)
	}
	return &state, nil
}
