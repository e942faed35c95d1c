package api

import (
	"time"

	"github.com/ChuheLin/BatchClipFlow/internal/batch"
	"github.com/ChuheLin/BatchClipFlow/internal/history"
	"github.com/ChuheLin/BatchClipFlow/internal/project"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State         string         `json:"state"`
	ProjectPath   string         `json:"project_path"`
	VideosCount   int            `json:"videos_count"`
	ClipsCount    int            `json:"clips_count"`
	SaveError     string         `json:"save_error,omitempty"`
	LastRun       *RunResponse   `json:"last_run,omitempty"`
	ActiveSummary *batch.Summary `json:"active_summary,omitempty"`
}

type ClipResponse struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Category string `json:"category,omitempty"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

type VideoResponse struct {
	Path  string         `json:"path"`
	Clips []ClipResponse `json:"clips"`
}

type ProjectResponse struct {
	Path          string          `json:"path"`
	OutputDir     string          `json:"output_dir"`
	AutoSubfolder bool            `json:"auto_subfolder"`
	Categories    []string        `json:"categories"`
	Videos        []VideoResponse `json:"videos"`
}

type OpenProjectRequest struct {
	Path string `json:"path"`
}

type AddVideoRequest struct {
	Path string `json:"path"`
}

type AddClipRequest struct {
	Video    string `json:"video"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Category string `json:"category,omitempty"`
	Name     string `json:"name,omitempty"`
}

type SetCategoriesRequest struct {
	Categories []string `json:"categories"`
}

type SettingsRequest struct {
	OutputDir     string `json:"output_dir"`
	AutoSubfolder bool   `json:"auto_subfolder"`
}

type StartBatchResponse struct {
	RunID string `json:"run_id"`
}

type RunResponse struct {
	ID            string `json:"id"`
	ProjectPath   string `json:"project_path"`
	Status        string `json:"status"`
	Skipped       int    `json:"skipped"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	MissingVideos int    `json:"missing_videos"`
	Error         string `json:"error,omitempty"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at,omitempty"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type RunClipResponse struct {
	VideoPath  string `json:"video_path"`
	ClipIndex  int    `json:"clip_index"`
	ClipName   string `json:"clip_name"`
	OutputPath string `json:"output_path,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

type RunClipsResponse struct {
	Clips []RunClipResponse `json:"clips"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func DocumentToResponse(path string, doc *project.Document) ProjectResponse {
	resp := ProjectResponse{
		Path:          path,
		OutputDir:     doc.OutputDir,
		AutoSubfolder: doc.AutoSubfolder,
		Categories:    doc.Categories,
		Videos:        make([]VideoResponse, 0, len(doc.VideoOrder)),
	}
	for _, videoPath := range doc.VideoOrder {
		clips := doc.Videos[videoPath]
		vr := VideoResponse{Path: videoPath, Clips: make([]ClipResponse, len(clips))}
		for i, c := range clips {
			vr.Clips[i] = ClipResponse{
				Start:    c.Start,
				End:      c.End,
				Category: c.Category,
				Name:     c.Name,
				Status:   string(c.Status),
			}
		}
		resp.Videos = append(resp.Videos, vr)
	}
	return resp
}

func RunToResponse(r *history.Run) RunResponse {
	resp := RunResponse{
		ID:            r.ID,
		ProjectPath:   r.ProjectPath,
		Status:        r.Status,
		Skipped:       r.Skipped,
		Succeeded:     r.Succeeded,
		Failed:        r.Failed,
		MissingVideos: r.MissingVideos,
		Error:         r.Error,
		StartedAt:     r.StartedAt.Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

func RunClipToResponse(c *history.RunClip) RunClipResponse {
	resp := RunClipResponse{
		VideoPath:  c.VideoPath,
		ClipIndex:  c.ClipIndex,
		ClipName:   c.ClipName,
		OutputPath: c.OutputPath,
		Status:     c.Status,
		Error:      c.Error,
		StartedAt:  c.StartedAt.Format(time.RFC3339),
	}
	if c.FinishedAt != nil {
		resp.FinishedAt = c.FinishedAt.Format(time.RFC3339)
	}
	return resp
}
