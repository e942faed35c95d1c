// Package transcode wraps the external ffmpeg binary behind a narrow
// Transcoder contract: stream-copy a time range of a source file into a
// destination file. No re-encoding happens here; ffmpeg copies the encoded
// bitstream and normalizes timestamps so keyframe-boundary trims stay
// playable in strict containers.
package transcode

import "context"

// Transcoder produces a trimmed copy of a media file. Start and end are
// HH:MM:SS-like text passed through verbatim; malformed values surface as a
// transcode failure, not a validation error.
type Transcoder interface {
	Trim(ctx context.Context, source, start, end, dest string) error
}
