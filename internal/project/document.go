// Package project holds the BatchClipFlow project document: output settings,
// the category vocabulary, and per-video clip lists. The document is the
// single source of truth; mutations here are pure state transitions and
// persistence is the caller's concern.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

var (
	ErrUnknownVideo    = errors.New("video not in project")
	ErrIndexOutOfRange = errors.New("clip index out of range")
)

// Status is the lifecycle state of a single clip. Transitions within one
// batch run are pending -> running -> done|failed. Done is sticky across
// runs; failed clips are retried.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// IsValid reports whether s is one of the closed set of statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Clip is one requested time-range extraction from a video. Its position in
// the video's sequence is its identity; there is no stable clip ID.
type Clip struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Category string `json:"category,omitempty"`
	Name     string `json:"name"`
	Status   Status `json:"status"`
}

// DefaultCategories is substituted on load for documents that predate the
// categories field. First entry is the UI's default selection.
var DefaultCategories = []string{"General"}

// Document is the persisted project: export settings, categories, and a
// mapping from normalized video source path to its ordered clip list.
// VideoOrder keeps batch iteration deterministic across save/load since
// JSON objects do not preserve key order.
type Document struct {
	OutputDir     string             `json:"output_dir"`
	AutoSubfolder bool               `json:"auto_subfolder"`
	Categories    []string           `json:"categories"`
	VideoOrder    []string           `json:"video_order,omitempty"`
	Videos        map[string][]*Clip `json:"videos"`
}

// NewDocument returns an empty document with the default category vocabulary.
func NewDocument() *Document {
	return &Document{
		Categories: append([]string(nil), DefaultCategories...),
		Videos:     make(map[string][]*Clip),
	}
}

// NormalizeSourcePath converts a source path to the forward-slash form used
// as a video key, so the same file keyed from different platforms collides.
func NormalizeSourcePath(path string) string {
	return filepath.ToSlash(path)
}

// AddVideo inserts path with an empty clip sequence. Adding a video that is
// already present is a no-op, not an error.
func (d *Document) AddVideo(path string) string {
	key := NormalizeSourcePath(path)
	if _, ok := d.Videos[key]; ok {
		return key
	}
	if d.Videos == nil {
		d.Videos = make(map[string][]*Clip)
	}
	d.Videos[key] = []*Clip{}
	d.VideoOrder = append(d.VideoOrder, key)
	return key
}

// RemoveVideo deletes the entry and all its clips atomically. Removing an
// absent video is a no-op.
func (d *Document) RemoveVideo(path string) {
	key := NormalizeSourcePath(path)
	if _, ok := d.Videos[key]; !ok {
		return
	}
	delete(d.Videos, key)
	for i, p := range d.VideoOrder {
		if p == key {
			d.VideoOrder = append(d.VideoOrder[:i], d.VideoOrder[i+1:]...)
			break
		}
	}
}

// AddClip appends a new pending clip to the video's sequence. If name is
// empty a name of the form clip_<n> is synthesized from the 1-based position
// at creation time.
func (d *Document) AddClip(path, start, end, category, name string) (*Clip, error) {
	key := NormalizeSourcePath(path)
	clips, ok := d.Videos[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVideo, key)
	}
	if name == "" {
		name = fmt.Sprintf("clip_%d", len(clips)+1)
	}
	clip := &Clip{
		Start:    start,
		End:      end,
		Category: category,
		Name:     name,
		Status:   StatusPending,
	}
	d.Videos[key] = append(clips, clip)
	return clip, nil
}

// RemoveClip removes the clip at index from the video's sequence, shifting
// subsequent indices down.
func (d *Document) RemoveClip(path string, index int) error {
	key := NormalizeSourcePath(path)
	clips, ok := d.Videos[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVideo, key)
	}
	if index < 0 || index >= len(clips) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(clips))
	}
	d.Videos[key] = append(clips[:index], clips[index+1:]...)
	return nil
}

// SetCategories replaces the category vocabulary wholesale, dropping
// duplicates while keeping first-occurrence order. Existing clips keep
// whatever category they reference; the vocabulary is advisory.
func (d *Document) SetCategories(categories []string) {
	seen := make(map[string]bool, len(categories))
	result := make([]string, 0, len(categories))
	for _, c := range categories {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		result = append(result, c)
	}
	d.Categories = result
}

// Clips returns the clip sequence for a video, or ErrUnknownVideo.
func (d *Document) Clips(path string) ([]*Clip, error) {
	key := NormalizeSourcePath(path)
	clips, ok := d.Videos[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVideo, key)
	}
	return clips, nil
}

// ClipCount returns the total number of clips across all videos.
func (d *Document) ClipCount() int {
	n := 0
	for _, clips := range d.Videos {
		n += len(clips)
	}
	return n
}

// normalize repairs a freshly decoded document: nil maps, missing category
// vocabulary on old documents, stale video order, and out-of-enum statuses.
// A clip left "running" by a crash is demoted to pending so it is retried.
func (d *Document) normalize() {
	if d.Videos == nil {
		d.Videos = make(map[string][]*Clip)
	}
	if d.Categories == nil {
		d.Categories = append([]string(nil), DefaultCategories...)
	}

	order := make([]string, 0, len(d.Videos))
	seen := make(map[string]bool, len(d.Videos))
	for _, p := range d.VideoOrder {
		if _, ok := d.Videos[p]; ok && !seen[p] {
			order = append(order, p)
			seen[p] = true
		}
	}
	// Documents written before video_order existed get sorted key order.
	for _, p := range sortedKeys(d.Videos) {
		if !seen[p] {
			order = append(order, p)
		}
	}
	d.VideoOrder = order

	for _, clips := range d.Videos {
		for _, c := range clips {
			if c.Status == StatusRunning || !c.Status.IsValid() {
				c.Status = StatusPending
			}
		}
	}
}

func sortedKeys(m map[string][]*Clip) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
