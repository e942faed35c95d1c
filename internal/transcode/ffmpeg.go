package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics

// FFmpeg runs the real ffmpeg binary.
type FFmpeg struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFmpeg resolves the ffmpeg binary and returns a ready transcoder.
// perClipTimeout bounds a single Trim call; zero means no timeout.
func NewFFmpeg(configuredPath string, perClipTimeout time.Duration, logger *slog.Logger) (*FFmpeg, error) {
	binary, err := resolveFFmpeg(configuredPath)
	if err != nil {
		return nil, err
	}
	logger.Info("ffmpeg resolved", "binary", binary)
	return &FFmpeg{binary: binary, timeout: perClipTimeout, logger: logger}, nil
}

// Binary returns the resolved ffmpeg path.
func (f *FFmpeg) Binary() string {
	return f.binary
}

// Trim stream-copies [start, end] of source into dest, overwriting dest if
// present. Output timestamps are shifted to non-negative values because a
// container-level trim at a keyframe boundary can otherwise produce negative
// presentation timestamps that some muxers reject.
func (f *FFmpeg) Trim(ctx context.Context, source, start, end, dest string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := trimArgs(source, start, end, dest)
	cmd := exec.CommandContext(ctx, f.binary, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	began := time.Now()
	err := cmd.Run()
	elapsed := time.Since(began)

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		f.logger.Warn("ffmpeg trim failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
		return fmt.Errorf("ffmpeg exited %d: %s", exitCode, truncate(stderrBuf.String(), 512))
	}

	f.logger.Debug("ffmpeg trim succeeded",
		"dest", dest,
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

// trimArgs builds the stream-copy invocation. -c copy keeps the encoded
// bitstream untouched; -avoid_negative_ts 1 shifts timestamps when the cut
// lands between keyframes.
func trimArgs(source, start, end, dest string) []string {
	return []string{
		"-y",
		"-ss", start,
		"-to", end,
		"-i", source,
		"-c", "copy",
		"-avoid_negative_ts", "1",
		dest,
	}
}

// resolveFFmpeg finds a usable ffmpeg binary. A configured path wins; then a
// binary sitting next to the agent executable (portable install); then $PATH.
func resolveFFmpeg(configured string) (string, error) {
	if configured != "" {
		if p, err := exec.LookPath(configured); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffmpeg %q not found", configured)
	}

	if exe, err := os.Executable(); err == nil {
		local := filepath.Join(filepath.Dir(exe), ffmpegBinaryName)
		if info, err := os.Stat(local); err == nil && !info.IsDir() {
			return local, nil
		}
	}

	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no ffmpeg binary found (checked executable directory and PATH)")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
