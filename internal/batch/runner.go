// Package batch drives the resumable extraction pipeline: every video, every
// clip, strictly in order, one ffmpeg invocation in flight at a time. Done
// clips are skipped, failed clips are retried, and the project document is
// written through after every status change so a crash loses at most the
// in-flight clip.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ChuheLin/BatchClipFlow/internal/history"
	"github.com/ChuheLin/BatchClipFlow/internal/project"
	"github.com/ChuheLin/BatchClipFlow/internal/transcode"
)

// ErrNoOutputDirectory aborts a run before any clip is touched: without a
// base directory no output path can be resolved.
var ErrNoOutputDirectory = errors.New("project has no output directory")

const (
	EventClipStarted   = "clip_started"
	EventClipFinished  = "clip_finished"
	EventBatchFinished = "batch_finished"
)

// Event is one progress notification. Events are emitted in processing
// order on the runner's channel.
type Event struct {
	Type      string         `json:"type"`
	RunID     string         `json:"run_id"`
	Video     string         `json:"video,omitempty"`
	ClipIndex int            `json:"clip_index,omitempty"`
	ClipName  string         `json:"clip_name,omitempty"`
	Status    project.Status `json:"status,omitempty"`
	Error     string         `json:"error,omitempty"`
	Summary   *Summary       `json:"summary,omitempty"`
}

// Summary reports what a run did. Clips of missing videos are counted in
// none of the clip counters; their videos show up in MissingVideos.
type Summary struct {
	Skipped       int `json:"skipped"`
	Succeeded     int `json:"succeeded"`
	Failed        int `json:"failed"`
	MissingVideos int `json:"missing_videos"`
}

// Runner executes batch runs against the open session. At most one run is
// active at a time; the session's batch guard enforces it and simultaneously
// blocks structural edits for the duration.
type Runner struct {
	session    *project.Session
	transcoder transcode.Transcoder
	repo       history.Repository
	logger     *slog.Logger
	events     chan Event
}

func NewRunner(session *project.Session, transcoder transcode.Transcoder, repo history.Repository, logger *slog.Logger) *Runner {
	return &Runner{
		session:    session,
		transcoder: transcoder,
		repo:       repo,
		logger:     logger,
		events:     make(chan Event, 256),
	}
}

// Events is the ordered progress stream. A consumer must keep draining it
// while a run is active.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Active reports whether a run is currently in flight.
func (r *Runner) Active() bool {
	return r.session.BatchActive()
}

// Start begins a run on a background goroutine after validating the
// preconditions synchronously, so callers get ErrNoOutputDirectory or
// project.ErrBatchActive immediately. Returns the run ID.
func (r *Runner) Start(ctx context.Context) (string, error) {
	if err := r.session.BeginBatch(); err != nil {
		return "", err
	}
	doc := r.session.Snapshot()
	if doc.OutputDir == "" {
		r.session.EndBatch()
		return "", ErrNoOutputDirectory
	}

	runID := history.NewID()
	go func() {
		defer r.session.EndBatch()
		r.run(ctx, runID, doc)
	}()
	return runID, nil
}

// RunAll performs one complete synchronous run. It is the same pipeline
// Start dispatches in the background.
func (r *Runner) RunAll(ctx context.Context) (Summary, error) {
	if err := r.session.BeginBatch(); err != nil {
		return Summary{}, err
	}
	defer r.session.EndBatch()
	doc := r.session.Snapshot()
	if doc.OutputDir == "" {
		return Summary{}, ErrNoOutputDirectory
	}

	return r.run(ctx, history.NewID(), doc), nil
}

func (r *Runner) run(ctx context.Context, runID string, doc *project.Document) Summary {
	logger := r.logger.With("run_id", runID)
	logger.Info("batch run started",
		"videos", len(doc.VideoOrder), "clips", doc.ClipCount())

	r.recordRunStart(ctx, runID)

	var summary Summary
	cancelled := false

	for _, video := range doc.VideoOrder {
		source := filepath.FromSlash(video)
		if _, err := os.Stat(source); err != nil {
			// The user may have relocated or unmounted the media; leave
			// every clip's status as-is and move on.
			logger.Info("source video missing, skipping", "video", video)
			summary.MissingVideos++
			continue
		}

		ext := project.SourceExt(video)
		for i, clip := range doc.Videos[video] {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			if clip.Status == project.StatusDone {
				summary.Skipped++
				continue
			}
			r.processClip(ctx, logger, runID, doc, video, source, ext, i, clip, &summary)
		}
		if cancelled {
			break
		}
	}

	r.finishRun(runID, summary, cancelled)

	logger.Info("batch run finished",
		"skipped", summary.Skipped,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"missing_videos", summary.MissingVideos,
		"cancelled", cancelled,
	)

	r.emit(Event{Type: EventBatchFinished, RunID: runID, Summary: &summary})
	return summary
}

func (r *Runner) processClip(ctx context.Context, logger *slog.Logger, runID string, doc *project.Document, video, source, ext string, index int, clip *project.Clip, summary *Summary) {
	if err := r.session.SetClipStatus(video, index, project.StatusRunning); err != nil {
		logger.Warn("failed to persist running status", "video", video, "clip_index", index, "error", err)
	}
	r.emit(Event{
		Type: EventClipStarted, RunID: runID,
		Video: video, ClipIndex: index, ClipName: clip.Name,
		Status: project.StatusRunning,
	})

	outputPath := project.ResolveOutputPath(doc.OutputDir, video, clip.Category, doc.AutoSubfolder, ext, clip.Name)
	clipRowID := r.recordClipStart(ctx, runID, video, index, clip.Name, outputPath)

	err := os.MkdirAll(filepath.Dir(outputPath), 0755)
	if err == nil {
		err = r.transcoder.Trim(ctx, source, clip.Start, clip.End, outputPath)
	}

	status := project.StatusDone
	var errMsg string
	if err != nil {
		// Contained at clip granularity: one bad clip never aborts the batch.
		status = project.StatusFailed
		errMsg = err.Error()
		summary.Failed++
		logger.Error("clip extraction failed",
			"video", video,
			"clip_index", index,
			"clip_name", clip.Name,
			"error", err,
		)
	} else {
		summary.Succeeded++
	}

	if err := r.session.SetClipStatus(video, index, status); err != nil {
		logger.Warn("failed to persist clip status", "video", video, "clip_index", index, "error", err)
	}
	r.recordClipFinish(clipRowID, status, errMsg)

	r.emit(Event{
		Type: EventClipFinished, RunID: runID,
		Video: video, ClipIndex: index, ClipName: clip.Name,
		Status: status, Error: errMsg,
	})
}

func (r *Runner) emit(ev Event) {
	r.events <- ev
}

// History bookkeeping is best-effort: a broken database must never stop an
// extraction run.

func (r *Runner) recordRunStart(ctx context.Context, runID string) {
	if r.repo == nil {
		return
	}
	run := &history.Run{
		ID:          runID,
		ProjectPath: r.session.Path(),
		Status:      history.RunStatusRunning,
		StartedAt:   time.Now(),
	}
	if err := r.repo.CreateRun(ctx, run); err != nil {
		r.logger.Warn("failed to record run start", "run_id", runID, "error", err)
	}
}

func (r *Runner) recordClipStart(ctx context.Context, runID, video string, index int, name, outputPath string) string {
	if r.repo == nil {
		return ""
	}
	id := history.NewID()
	row := &history.RunClip{
		ID:         id,
		RunID:      runID,
		VideoPath:  video,
		ClipIndex:  index,
		ClipName:   name,
		OutputPath: outputPath,
		Status:     history.ClipStatusRunning,
		StartedAt:  time.Now(),
	}
	if err := r.repo.CreateRunClip(ctx, row); err != nil {
		r.logger.Warn("failed to record clip start", "run_id", runID, "error", err)
		return ""
	}
	return id
}

func (r *Runner) recordClipFinish(clipRowID string, status project.Status, errMsg string) {
	if r.repo == nil || clipRowID == "" {
		return
	}
	rowStatus := history.ClipStatusSucceeded
	if status == project.StatusFailed {
		rowStatus = history.ClipStatusFailed
	}
	if err := r.repo.FinishRunClip(context.Background(), clipRowID, rowStatus, errMsg); err != nil {
		r.logger.Warn("failed to record clip finish", "error", err)
	}
}

func (r *Runner) finishRun(runID string, summary Summary, cancelled bool) {
	if r.repo == nil {
		return
	}
	status := history.RunStatusCompleted
	errMsg := ""
	if cancelled {
		status = history.RunStatusFailed
		errMsg = "cancelled"
	}
	if err := r.repo.FinishRun(context.Background(), runID, status,
		summary.Skipped, summary.Succeeded, summary.Failed, summary.MissingVideos, errMsg); err != nil {
		r.logger.Warn("failed to record run finish", "run_id", runID, "error", err)
	}
}

// DescribeSummary renders a one-line human summary for the tray and logs.
func DescribeSummary(s Summary) string {
	return fmt.Sprintf("%d done, %d failed, %d skipped, %d missing videos",
		s.Succeeded, s.Failed, s.Skipped, s.MissingVideos)
}
