package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ChuheLin/BatchClipFlow/internal/batch"
	"github.com/ChuheLin/BatchClipFlow/internal/config"
	"github.com/ChuheLin/BatchClipFlow/internal/export"
	"github.com/ChuheLin/BatchClipFlow/internal/project"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/project", getProjectHandler(cfg))
		r.Post("/project/open", openProjectHandler(cfg))
		r.Post("/project/videos", addVideoHandler(cfg))
		r.Delete("/project/videos", removeVideoHandler(cfg))
		r.Post("/project/videos/clips", addClipHandler(cfg))
		r.Delete("/project/videos/clips", removeClipHandler(cfg))
		r.Put("/project/categories", setCategoriesHandler(cfg))
		r.Put("/project/settings", settingsHandler(cfg))
		r.Post("/batch", startBatchHandler(cfg))
		r.Get("/runs", listRunsHandler(cfg))
		r.Get("/runs/{id}", getRunHandler(cfg))
		r.Get("/runs/{id}/clips", listRunClipsHandler(cfg))
		r.Get("/export/edl", exportEDLHandler(cfg))
		r.Get("/preview", previewHandler(cfg))
		r.Get("/events", eventsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := cfg.Session.Snapshot()

		state := "idle"
		if cfg.Runner != nil && cfg.Runner.Active() {
			state = "running"
		}

		resp := StatusResponse{
			State:       state,
			ProjectPath: cfg.Session.Path(),
			VideosCount: len(doc.VideoOrder),
			ClipsCount:  doc.ClipCount(),
		}
		if err := cfg.Session.LastSaveError(); err != nil {
			resp.SaveError = err.Error()
		}

		if cfg.Repository != nil {
			if runs, err := cfg.Repository.ListRuns(r.Context(), 1); err == nil && len(runs) > 0 {
				lastRun := RunToResponse(runs[0])
				resp.LastRun = &lastRun
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := cfg.Session.Snapshot()
		WriteJSON(w, http.StatusOK, DocumentToResponse(cfg.Session.Path(), doc))
	}
}

func openProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Session.Open(req.Path); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, DocumentToResponse(cfg.Session.Path(), cfg.Session.Snapshot()))
	}
}

func addVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Session.AddVideo(req.Path); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func removeVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		if err := cfg.Session.RemoveVideo(path); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Video == "" {
			WriteError(w, http.StatusBadRequest, "video is required", "BAD_REQUEST")
			return
		}

		clip, err := cfg.Session.AddClip(req.Video, req.Start, req.End, req.Category, req.Name)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ClipResponse{
			Start:    clip.Start,
			End:      clip.End,
			Category: clip.Category,
			Name:     clip.Name,
			Status:   string(clip.Status),
		})
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		indexStr := r.URL.Query().Get("index")
		if path == "" || indexStr == "" {
			WriteError(w, http.StatusBadRequest, "path and index are required", "BAD_REQUEST")
			return
		}
		index, err := strconv.Atoi(indexStr)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "index must be an integer", "BAD_REQUEST")
			return
		}

		if err := cfg.Session.RemoveClip(path, index); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setCategoriesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetCategoriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.Session.SetCategories(req.Categories); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, DocumentToResponse(cfg.Session.Path(), cfg.Session.Snapshot()))
	}
}

func settingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.Session.SetOutputSettings(req.OutputDir, req.AutoSubfolder); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, DocumentToResponse(cfg.Session.Path(), cfg.Session.Snapshot()))
	}
}

func startBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The run outlives the request; it is bound to the agent's
		// lifecycle context, not the request context.
		runID, err := cfg.Runner.Start(cfg.BatchContext)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, StartBatchResponse{RunID: runID})
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil {
				limit = parsed
			}
		}
		runs, err := cfg.Repository.ListRuns(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}
		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, run := range runs {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		run, err := cfg.Repository.GetRun(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get run", "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, RunToResponse(run))
	}
}

func listRunClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		clips, err := cfg.Repository.ListRunClips(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list run clips", "INTERNAL_ERROR")
			return
		}
		resp := RunClipsResponse{Clips: make([]RunClipResponse, len(clips))}
		for i, c := range clips {
			resp.Clips[i] = RunClipToResponse(c)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video := r.URL.Query().Get("video")
		if video == "" {
			WriteError(w, http.StatusBadRequest, "video is required", "BAD_REQUEST")
			return
		}

		fps := 30.0
		if f := r.URL.Query().Get("fps"); f != "" {
			if parsed, err := strconv.ParseFloat(f, 64); err == nil && parsed > 0 {
				fps = parsed
			}
		}

		doc := cfg.Session.Snapshot()
		cutlist, err := export.BuildCutlist(doc, video, r.URL.Query().Get("title"), fps)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		if r.URL.Query().Get("format") == "edl" {
			name := export.SanitizeName(video, 40)
			if name == "" {
				name = "cutlist"
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.edl"`)
			w.Write([]byte(cutlist.EDL))
			return
		}
		WriteJSON(w, http.StatusOK, cutlist)
	}
}

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		root := cfg.Session.Snapshot().OutputDir
		if err := cfg.Preview.ServeOutput(w, r, root, path); err != nil {
			cfg.Logger.Error("preview failed", "path", path, "error", err)
			WriteError(w, http.StatusInternalServerError, "preview failed", "INTERNAL_ERROR")
		}
	}
}

func eventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Hub.Handle(w, r)
	}
}

// writeDomainError maps model and batch errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, project.ErrUnknownVideo):
		WriteError(w, http.StatusNotFound, err.Error(), "UNKNOWN_VIDEO")
	case errors.Is(err, project.ErrIndexOutOfRange):
		WriteError(w, http.StatusBadRequest, err.Error(), "INDEX_OUT_OF_RANGE")
	case errors.Is(err, project.ErrBatchActive):
		WriteError(w, http.StatusConflict, err.Error(), "BATCH_ACTIVE")
	case errors.Is(err, project.ErrCorrupt):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "CORRUPT")
	case errors.Is(err, batch.ErrNoOutputDirectory):
		WriteError(w, http.StatusBadRequest, err.Error(), "NO_OUTPUT_DIRECTORY")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
