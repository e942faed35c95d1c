// Package export renders a project's clip list as a CMX 3600 style EDL so
// the cut decisions can be taken into an NLE without re-running ffmpeg.
package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ChuheLin/BatchClipFlow/internal/project"
)

// ResolvedClip is one EDL event: a named time range of a media file.
type ResolvedClip struct {
	ClipName  string
	MediaPath string
	StartMs   int
	EndMs     int
}

// Cutlist is the result of building an EDL from a video's clip sequence.
// Clips whose timestamps could not be parsed are listed in Unresolved and
// left out of the EDL rather than failing the whole export.
type Cutlist struct {
	EDL        string   `json:"edl"`
	ClipCount  int      `json:"clip_count"`
	Unresolved []string `json:"unresolved_clips,omitempty"`
}

// BuildCutlist renders the EDL for one video of the document.
func BuildCutlist(doc *project.Document, video, title string, frameRate float64) (*Cutlist, error) {
	clips, err := doc.Clips(video)
	if err != nil {
		return nil, err
	}

	resolved := make([]ResolvedClip, 0, len(clips))
	var unresolved []string
	for _, c := range clips {
		startMs, startErr := ParseTimestampMs(c.Start)
		endMs, endErr := ParseTimestampMs(c.End)
		if startErr != nil || endErr != nil || endMs <= startMs {
			unresolved = append(unresolved, c.Name)
			continue
		}
		resolved = append(resolved, ResolvedClip{
			ClipName:  c.Name,
			MediaPath: video,
			StartMs:   startMs,
			EndMs:     endMs,
		})
	}

	if title == "" {
		title = "BatchClipFlow Export"
	}

	return &Cutlist{
		EDL:        GenerateEDL(resolved, SanitizeName(title, 60), frameRate),
		ClipCount:  len(resolved),
		Unresolved: unresolved,
	}, nil
}

// GenerateEDL emits the EDL text for an ordered clip list. Record times run
// back to back from zero, in clip order.
func GenerateEDL(clips []ResolvedClip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffsetMs := 0
	for i, clip := range clips {
		srcIn := msToTimecode(clip.StartMs, fps)
		srcOut := msToTimecode(clip.EndMs, fps)
		recIn := msToTimecode(recordOffsetMs, fps)
		durationMs := clip.EndMs - clip.StartMs
		recOut := msToTimecode(recordOffsetMs+durationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)

		recordOffsetMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// ParseTimestampMs parses the free-form HH:MM:SS(.fff) timestamps clips
// carry. MM:SS and bare seconds are accepted too, matching what ffmpeg
// itself accepts for -ss/-to.
func ParseTimestampMs(ts string) (int, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	parts := strings.Split(ts, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}

	totalMs := 0
	for _, part := range parts {
		secs, err := strconv.ParseFloat(part, 64)
		if err != nil || secs < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
		totalMs = totalMs*60 + int(math.Round(secs*1000))
	}
	return totalMs, nil
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
