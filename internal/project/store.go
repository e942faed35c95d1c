package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCorrupt marks a project file that exists but cannot be parsed. The
// caller must surface it; the file on disk is never silently discarded.
var ErrCorrupt = errors.New("project file is corrupt")

// Store persists project documents and the last-opened pointer file.
type Store struct {
	sessionPath string
}

// NewStore creates a store whose pointer file lives at sessionPath.
func NewStore(sessionPath string) *Store {
	return &Store{sessionPath: sessionPath}
}

// Load reads the document at path. A missing file yields a fresh empty
// document; an unparsable one yields ErrCorrupt.
func (s *Store) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("read project %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	doc.normalize()
	return &doc, nil
}

// Save overwrites the document at path. The write goes through a temp file
// and rename so a crash mid-save never leaves a truncated document.
func (s *Store) Save(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write project %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write project %s: %w", path, err)
	}
	return nil
}

type sessionFile struct {
	LastOpenedProject string `json:"last_opened_project"`
}

// RecordLastOpened persists path as the project to reopen on next start.
func (s *Store) RecordLastOpened(path string) error {
	if err := os.MkdirAll(filepath.Dir(s.sessionPath), 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.Marshal(sessionFile{LastOpenedProject: path})
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.sessionPath, data, 0644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// ReadLastOpened returns the recorded project path, or "" when the pointer
// file is missing, unreadable, or points at a file that no longer exists.
func (s *Store) ReadLastOpened() string {
	data, err := os.ReadFile(s.sessionPath)
	if err != nil {
		return ""
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return ""
	}
	if sf.LastOpenedProject == "" {
		return ""
	}
	if _, err := os.Stat(sf.LastOpenedProject); err != nil {
		return ""
	}
	return sf.LastOpenedProject
}
