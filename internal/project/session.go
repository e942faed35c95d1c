package project

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrBatchActive rejects structural edits while a batch run is in flight.
var ErrBatchActive = errors.New("batch run active")

// Session owns the one open project: document, its path on disk, and the
// write-through persistence discipline. Every mutation saves the whole
// document immediately; a failed save keeps the in-memory state (last known
// good) and is surfaced through LastSaveError rather than rolled back.
//
// Structural edits (add/remove video or clip, settings, categories) are
// rejected while a batch run is active. The batch driver itself only writes
// clip statuses, through SetClipStatus.
type Session struct {
	store  *Store
	logger *slog.Logger

	mu          sync.Mutex
	path        string
	doc         *Document
	batchActive bool
	lastSaveErr error
}

// NewSession creates a session with no document loaded yet.
func NewSession(store *Store, logger *slog.Logger) *Session {
	return &Session{store: store, logger: logger}
}

// Open loads the document at path (materializing an empty one if the file
// does not exist yet), records it as last opened, and makes it current.
// A corrupt file leaves the current document untouched.
func (s *Session) Open(path string) error {
	doc, err := s.store.Load(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchActive {
		return ErrBatchActive
	}
	s.path = path
	s.doc = doc
	s.lastSaveErr = nil

	if err := s.store.RecordLastOpened(path); err != nil {
		s.logger.Warn("failed to record last opened project", "error", err)
	}
	return nil
}

// Path returns the current document's path on disk.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// LastSaveError reports the most recent write-through failure, nil when the
// on-disk document matches memory.
func (s *Session) LastSaveError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaveErr
}

// Snapshot returns a deep copy of the current document, safe to read while
// the session keeps mutating.
func (s *Session) Snapshot() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyDocLocked()
}

func (s *Session) copyDocLocked() *Document {
	if s.doc == nil {
		return NewDocument()
	}
	cp := &Document{
		OutputDir:     s.doc.OutputDir,
		AutoSubfolder: s.doc.AutoSubfolder,
		Categories:    append([]string(nil), s.doc.Categories...),
		VideoOrder:    append([]string(nil), s.doc.VideoOrder...),
		Videos:        make(map[string][]*Clip, len(s.doc.Videos)),
	}
	for path, clips := range s.doc.Videos {
		copied := make([]*Clip, len(clips))
		for i, c := range clips {
			clip := *c
			copied[i] = &clip
		}
		cp.Videos[path] = copied
	}
	return cp
}

// AddVideo registers a new source video in the project.
func (s *Session) AddVideo(path string) error {
	return s.mutate(func(d *Document) error {
		d.AddVideo(path)
		return nil
	})
}

// RemoveVideo drops a source video and all its clips.
func (s *Session) RemoveVideo(path string) error {
	return s.mutate(func(d *Document) error {
		d.RemoveVideo(path)
		return nil
	})
}

// AddClip appends a clip to a video's sequence.
func (s *Session) AddClip(path, start, end, category, name string) (Clip, error) {
	var created Clip
	err := s.mutate(func(d *Document) error {
		clip, err := d.AddClip(path, start, end, category, name)
		if err != nil {
			return err
		}
		created = *clip
		return nil
	})
	return created, err
}

// RemoveClip removes the clip at index from a video's sequence.
func (s *Session) RemoveClip(path string, index int) error {
	return s.mutate(func(d *Document) error {
		return d.RemoveClip(path, index)
	})
}

// SetCategories replaces the category vocabulary.
func (s *Session) SetCategories(categories []string) error {
	return s.mutate(func(d *Document) error {
		d.SetCategories(categories)
		return nil
	})
}

// SetOutputSettings updates the base output directory and subfolder rule.
func (s *Session) SetOutputSettings(outputDir string, autoSubfolder bool) error {
	return s.mutate(func(d *Document) error {
		d.OutputDir = outputDir
		d.AutoSubfolder = autoSubfolder
		return nil
	})
}

// mutate applies fn under the lock and writes the document through to disk.
// The mutation survives a failed save.
func (s *Session) mutate(fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchActive {
		return ErrBatchActive
	}
	if s.doc == nil {
		s.doc = NewDocument()
	}
	if err := fn(s.doc); err != nil {
		return err
	}
	s.saveLocked()
	return nil
}

func (s *Session) saveLocked() {
	if s.path == "" {
		return
	}
	if err := s.store.Save(s.path, s.doc); err != nil {
		s.lastSaveErr = err
		s.logger.Error("failed to save project, keeping in-memory state",
			"path", s.path, "error", err)
		return
	}
	s.lastSaveErr = nil
}

// BeginBatch claims the exclusive batch slot. Exactly one run may be active.
func (s *Session) BeginBatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchActive {
		return ErrBatchActive
	}
	s.batchActive = true
	return nil
}

// EndBatch releases the batch slot.
func (s *Session) EndBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchActive = false
}

// BatchActive reports whether a run is in flight.
func (s *Session) BatchActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchActive
}

// SetClipStatus is the one mutation the batch driver performs: it updates a
// single clip's status and writes the document through, bypassing the
// structural-edit guard. The save error, if any, is returned so the driver
// can log it; the status change itself always lands in memory.
func (s *Session) SetClipStatus(videoPath string, index int, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrUnknownVideo
	}
	clips, ok := s.doc.Videos[NormalizeSourcePath(videoPath)]
	if !ok {
		return ErrUnknownVideo
	}
	if index < 0 || index >= len(clips) {
		return ErrIndexOutOfRange
	}
	clips[index].Status = status
	s.saveLocked()
	return s.lastSaveErr
}
