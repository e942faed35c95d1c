package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ChuheLin/BatchClipFlow/internal/batch"
	"github.com/ChuheLin/BatchClipFlow/internal/history"
	"github.com/ChuheLin/BatchClipFlow/internal/playback"
	"github.com/ChuheLin/BatchClipFlow/internal/project"
	"github.com/ChuheLin/BatchClipFlow/internal/transcode"
)

const testToken = "test-token"

type fakeRepo struct {
	runs  []*history.Run
	clips []*history.RunClip
}

func (f *fakeRepo) CreateRun(ctx context.Context, run *history.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRepo) GetRun(ctx context.Context, id string) (*history.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListRuns(ctx context.Context, limit int) ([]*history.Run, error) {
	if limit > 0 && len(f.runs) > limit {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeRepo) FinishRun(ctx context.Context, id, status string, skipped, succeeded, failed, missingVideos int, errorMsg string) error {
	return nil
}

func (f *fakeRepo) CreateRunClip(ctx context.Context, c *history.RunClip) error {
	f.clips = append(f.clips, c)
	return nil
}

func (f *fakeRepo) FinishRunClip(ctx context.Context, id, status, errorMsg string) error {
	return nil
}

func (f *fakeRepo) ListRunClips(ctx context.Context, runID string) ([]*history.RunClip, error) {
	var out []*history.RunClip
	for _, c := range f.clips {
		if c.RunID == runID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetConfig(ctx context.Context, key string) (string, error) {
	if key == "auth_token" {
		return testToken, nil
	}
	return "", nil
}

func (f *fakeRepo) SetConfig(ctx context.Context, key, value string) error {
	return nil
}

func testServerConfig(t *testing.T) ServerConfig {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	store := project.NewStore(filepath.Join(dir, "session.json"))
	sess := project.NewSession(store, logger)
	if err := sess.Open(filepath.Join(dir, "project.json")); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	repo := &fakeRepo{}
	runner := batch.NewRunner(sess, transcode.NewStub(logger), repo, logger)

	return ServerConfig{
		Session:      sess,
		Runner:       runner,
		Repository:   repo,
		Preview:      playback.NewPreview(logger),
		Logger:       logger,
		StartTime:    time.Now().Add(-10 * time.Second),
		DeviceID:     "test-device",
		BatchContext: context.Background(),
	}
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestHealthHandler_NoAuthRequired(t *testing.T) {
	router := NewRouter(testServerConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["device_id"] != "test-device" {
		t.Errorf("device_id = %v", body["device_id"])
	}
}

func TestProjectEndpoints(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(t, router, http.MethodPost, "/project/videos", AddVideoRequest{Path: "/media/talk.mp4"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add video status = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, router, http.MethodPost, "/project/videos/clips", AddClipRequest{
		Video: "/media/talk.mp4", Start: "00:00:00", End: "00:00:10", Category: "Lecture",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add clip status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	clipBody := decodeJSONBody(t, rr)
	if clipBody["name"] != "clip_1" {
		t.Errorf("clip name = %v, want clip_1", clipBody["name"])
	}

	rr = doRequest(t, router, http.MethodGet, "/project", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get project status = %d", rr.Code)
	}
	projBody := decodeJSONBody(t, rr)
	videos, ok := projBody["videos"].([]interface{})
	if !ok || len(videos) != 1 {
		t.Fatalf("videos = %v, want 1 entry", projBody["videos"])
	}

	rr = doRequest(t, router, http.MethodDelete, "/project/videos/clips?path=/media/talk.mp4&index=0", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove clip status = %d, want 204: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, router, http.MethodDelete, "/project/videos?path=/media/talk.mp4", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove video status = %d, want 204", rr.Code)
	}
}

func TestAddClip_UnknownVideoMapsTo404(t *testing.T) {
	router := NewRouter(testServerConfig(t))

	rr := doRequest(t, router, http.MethodPost, "/project/videos/clips", AddClipRequest{
		Video: "/media/nope.mp4", Start: "0", End: "1",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "UNKNOWN_VIDEO" {
		t.Errorf("code = %v, want UNKNOWN_VIDEO", body["code"])
	}
}

func TestRemoveClip_BadIndexMapsTo400(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	doRequest(t, router, http.MethodPost, "/project/videos", AddVideoRequest{Path: "/media/talk.mp4"})

	rr := doRequest(t, router, http.MethodDelete, "/project/videos/clips?path=/media/talk.mp4&index=5", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "INDEX_OUT_OF_RANGE" {
		t.Errorf("code = %v, want INDEX_OUT_OF_RANGE", body["code"])
	}
}

func TestSetCategories(t *testing.T) {
	router := NewRouter(testServerConfig(t))

	rr := doRequest(t, router, http.MethodPut, "/project/categories", SetCategoriesRequest{
		Categories: []string{"Lecture", "Lecture", "Highlight"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	cats, ok := body["categories"].([]interface{})
	if !ok || len(cats) != 2 {
		t.Errorf("categories = %v, want 2 after dedupe", body["categories"])
	}
}

func TestStartBatch_NoOutputDirectory(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	doRequest(t, router, http.MethodPost, "/project/videos", AddVideoRequest{Path: "/media/talk.mp4"})

	rr := doRequest(t, router, http.MethodPost, "/batch", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "NO_OUTPUT_DIRECTORY" {
		t.Errorf("code = %v, want NO_OUTPUT_DIRECTORY", body["code"])
	}
}

func TestStartBatch_ConflictWhileActive(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	if err := cfg.Session.SetOutputSettings(t.TempDir(), false); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Session.BeginBatch(); err != nil {
		t.Fatal(err)
	}
	defer cfg.Session.EndBatch()

	rr := doRequest(t, router, http.MethodPost, "/batch", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "BATCH_ACTIVE" {
		t.Errorf("code = %v, want BATCH_ACTIVE", body["code"])
	}

	// structural edits are rejected with the same conflict
	rr = doRequest(t, router, http.MethodPost, "/project/videos", AddVideoRequest{Path: "/x.mp4"})
	if rr.Code != http.StatusConflict {
		t.Errorf("add video during batch = %d, want 409", rr.Code)
	}
}

func TestStartBatch_ReturnsRunID(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	dir := t.TempDir()
	src := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(src, []byte("v"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Session.SetOutputSettings(filepath.Join(dir, "out"), false); err != nil {
		t.Fatal(err)
	}
	doRequest(t, router, http.MethodPost, "/project/videos", AddVideoRequest{Path: src})

	rr := doRequest(t, router, http.MethodPost, "/batch", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["run_id"] == "" || body["run_id"] == nil {
		t.Error("run_id missing from response")
	}

	waitForBatch(t, cfg.Session)
}

func waitForBatch(t *testing.T, sess *project.Session) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for sess.BatchActive() {
		if time.Now().After(deadline) {
			t.Fatal("batch did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStatusHandler(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	doRequest(t, router, http.MethodPost, "/project/videos", AddVideoRequest{Path: "/media/talk.mp4"})

	rr := doRequest(t, router, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
	if body["videos_count"] != float64(1) {
		t.Errorf("videos_count = %v, want 1", body["videos_count"])
	}
}

func TestExportEDLHandler(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	doRequest(t, router, http.MethodPost, "/project/videos", AddVideoRequest{Path: "/media/talk.mp4"})
	doRequest(t, router, http.MethodPost, "/project/videos/clips", AddClipRequest{
		Video: "/media/talk.mp4", Start: "00:00:00", End: "00:00:10",
	})

	rr := doRequest(t, router, http.MethodGet, "/export/edl?video=/media/talk.mp4", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["clip_count"] != float64(1) {
		t.Errorf("clip_count = %v, want 1", body["clip_count"])
	}

	rr = doRequest(t, router, http.MethodGet, "/export/edl?video=/media/talk.mp4&format=edl", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("edl format status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd == "" {
		t.Error("Content-Disposition missing")
	}
}

func TestOpenProject_CorruptMapsTo422(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{{{"), 0644); err != nil {
		t.Fatal(err)
	}

	rr := doRequest(t, router, http.MethodPost, "/project/open", OpenProjectRequest{Path: bad})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "CORRUPT" {
		t.Errorf("code = %v, want CORRUPT", body["code"])
	}
}

func TestPreviewHandler_OutsideOutputDir(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	if err := cfg.Session.SetOutputSettings(t.TempDir(), false); err != nil {
		t.Fatal(err)
	}

	rr := doRequest(t, router, http.MethodGet, "/preview?path=/etc/hosts", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}
