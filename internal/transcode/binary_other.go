//go:build !windows

package transcode

const ffmpegBinaryName = "ffmpeg"
