package project

import (
	"path/filepath"
	"strings"
)

// ResolveOutputPath derives the output file for one clip. Starting from the
// base output directory, the video's filename stem is appended when
// autoSubfolder is set, then the clip's category when non-empty, then the
// clip name plus the source's original extension. The resolver does not
// touch the filesystem; directory creation is the batch driver's job.
// Two clips resolving to the same path overwrite one another; that is
// accepted behaviour, not an error.
func ResolveOutputPath(baseDir, videoSource, category string, autoSubfolder bool, ext, clipName string) string {
	segments := []string{baseDir}
	if autoSubfolder {
		segments = append(segments, videoStem(videoSource))
	}
	if category != "" {
		segments = append(segments, category)
	}
	segments = append(segments, clipName+ext)
	return filepath.Join(segments...)
}

// videoStem returns the video's filename without its extension.
func videoStem(source string) string {
	base := filepath.Base(filepath.FromSlash(source))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SourceExt returns the extension of a video source path, including the dot.
func SourceExt(source string) string {
	return filepath.Ext(filepath.FromSlash(source))
}
