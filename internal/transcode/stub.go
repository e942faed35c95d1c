package transcode

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
)

// Stub is a Transcoder that writes a placeholder file instead of invoking
// ffmpeg. Used when no ffmpeg binary is available and in tests.
type Stub struct {
	logger *slog.Logger
}

func NewStub(logger *slog.Logger) *Stub {
	return &Stub{logger: logger}
}

func (s *Stub) Trim(ctx context.Context, source, start, end, dest string) error {
	s.logger.Info("transcoder stub: trim requested (no ffmpeg available)",
		"source", source, "start", start, "end", end, "dest", dest)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte{}, 0644)
}
