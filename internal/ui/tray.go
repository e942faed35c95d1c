// Package ui provides the optional system tray: a status line, a clip
// counter, and a Run Batch trigger. All real interaction happens through
// the HTTP API; the tray is a convenience surface.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ChuheLin/BatchClipFlow/internal/batch"
	"github.com/ChuheLin/BatchClipFlow/internal/project"
)

type Tray struct {
	session *project.Session
	runner  *batch.Runner
	logger  *slog.Logger

	statusItem *systray.MenuItem
	clipsItem  *systray.MenuItem

	mu sync.Mutex

	batchCtx context.Context
	onQuit   func()
}

type TrayConfig struct {
	Session      *project.Session
	Runner       *batch.Runner
	Logger       *slog.Logger
	BatchContext context.Context
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	ctx := cfg.BatchContext
	if ctx == nil {
		ctx = context.Background()
	}
	return &Tray{
		session:  cfg.Session,
		runner:   cfg.Runner,
		logger:   cfg.Logger,
		batchCtx: ctx,
		onQuit:   cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("BatchClipFlow")
	systray.SetTooltip("BatchClipFlow Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.clipsItem = systray.AddMenuItem("Clips: 0", "Clips in the open project")
	t.clipsItem.Disable()

	systray.AddSeparator()

	runItem := systray.AddMenuItem("Run Batch", "Process all pending clips")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit BatchClipFlow Agent")

	go func() {
		for {
			select {
			case <-runItem.ClickedCh:
				t.handleRunBatch()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.refreshClipCount()
	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleRunBatch() {
	if _, err := t.runner.Start(t.batchCtx); err != nil {
		switch {
		case errors.Is(err, project.ErrBatchActive):
			t.UpdateStatus("A batch is already running")
		case errors.Is(err, batch.ErrNoOutputDirectory):
			t.UpdateStatus("Set an output directory first")
		default:
			t.logger.Error("failed to start batch from tray", "error", err)
		}
		return
	}
	t.UpdateStatus("Running")
}

// UpdateStatus rewrites the tray status line.
func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statusItem != nil {
		t.statusItem.SetTitle("Status: " + status)
	}
}

// NotifyEvent keeps the tray in sync with batch progress.
func (t *Tray) NotifyEvent(ev batch.Event) {
	switch ev.Type {
	case batch.EventClipStarted:
		t.UpdateStatus("Extracting " + ev.ClipName)
	case batch.EventBatchFinished:
		if ev.Summary != nil {
			t.UpdateStatus(batch.DescribeSummary(*ev.Summary))
		} else {
			t.UpdateStatus("Idle")
		}
		t.refreshClipCount()
	}
}

func (t *Tray) refreshClipCount() {
	doc := t.session.Snapshot()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clipsItem != nil {
		t.clipsItem.SetTitle(fmt.Sprintf("Clips: %d", doc.ClipCount()))
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
