package transcode

const ffmpegBinaryName = "ffmpeg.exe"
