package transcode

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrimArgs(t *testing.T) {
	got := trimArgs("/in/talk.mp4", "00:01:00", "00:02:30", "/out/a.mp4")
	want := []string{
		"-y",
		"-ss", "00:01:00",
		"-to", "00:02:30",
		"-i", "/in/talk.mp4",
		"-c", "copy",
		"-avoid_negative_ts", "1",
		"/out/a.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("trimArgs() = %v, want %v", got, want)
	}
}

func TestResolveFFmpeg_ConfiguredMissing(t *testing.T) {
	if _, err := resolveFFmpeg("/definitely/not/here/ffmpeg"); err == nil {
		t.Fatal("resolveFFmpeg() with bogus configured path succeeded")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q, want unchanged", got)
	}
	got := truncate("0123456789", 4)
	if got != "...6789" {
		t.Errorf("truncate() = %q, want ...6789", got)
	}
}

func TestLimitedWriter_KeepsTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 8}

	for i := 0; i < 10; i++ {
		if _, err := lw.Write([]byte("abcd")); err != nil {
			t.Fatal(err)
		}
	}

	if buf.Len() != 8 {
		t.Errorf("buffer length = %d, want 8", buf.Len())
	}
	if got := buf.String(); got != "abcdabcd" {
		t.Errorf("tail = %q, want abcdabcd", got)
	}
}

func TestStubTrim_CreatesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	stub := NewStub(testLogger())
	dest := filepath.Join(dir, "out.mp4")
	if err := stub.Trim(context.Background(), src, "00:00:00", "00:00:10", dest); err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("placeholder not created: %v", err)
	}
}

func TestTrim_ReportsStderrTail(t *testing.T) {
	// `sh` plays ffmpeg here: exit non-zero with noise on stderr.
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh available")
	}
	f := &FFmpeg{binary: sh, logger: testLogger()}

	// trimArgs output becomes sh's argv; sh -y is invalid usage, so it
	// exits non-zero and complains on stderr.
	trimErr := f.Trim(context.Background(), "/in.mp4", "0", "1", "/out.mp4")
	if trimErr == nil {
		t.Fatal("Trim() with sh stand-in succeeded, want error")
	}
	if !strings.Contains(trimErr.Error(), "ffmpeg exited") {
		t.Errorf("error = %v, want ffmpeg exited prefix", trimErr)
	}
}
