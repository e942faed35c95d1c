// Package history records every batch run and per-clip outcome in the
// agent's sqlite database, keeping failure reasons that the project document
// itself does not carry.
package history

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"

	ClipStatusRunning   = "running"
	ClipStatusSucceeded = "succeeded"
	ClipStatusFailed    = "failed"
)

type Run struct {
	ID            string     `json:"id"`
	ProjectPath   string     `json:"project_path"`
	Status        string     `json:"status"`
	Skipped       int        `json:"skipped"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	MissingVideos int        `json:"missing_videos"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

type RunClip struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	VideoPath  string     `json:"video_path"`
	ClipIndex  int        `json:"clip_index"`
	ClipName   string     `json:"clip_name"`
	OutputPath string     `json:"output_path,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
