package project

import (
	"path/filepath"
	"testing"
)

func TestResolveOutputPath(t *testing.T) {
	tests := []struct {
		name          string
		category      string
		autoSubfolder bool
		want          string
	}{
		{
			name:          "auto subfolder no category",
			autoSubfolder: true,
			want:          filepath.Join("/out", "Talk", "intro.mp4"),
		},
		{
			name:          "category no subfolder",
			category:      "Lecture",
			autoSubfolder: false,
			want:          filepath.Join("/out", "Lecture", "intro.mp4"),
		},
		{
			name:          "subfolder and category",
			category:      "Lecture",
			autoSubfolder: true,
			want:          filepath.Join("/out", "Talk", "Lecture", "intro.mp4"),
		},
		{
			name: "flat",
			want: filepath.Join("/out", "intro.mp4"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveOutputPath("/out", "/media/Talk.mp4", tt.category, tt.autoSubfolder, ".mp4", "intro")
			if got != tt.want {
				t.Errorf("ResolveOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveOutputPath_ExtensionFollowsSource(t *testing.T) {
	got := ResolveOutputPath("/out", "/media/raw.mkv", "", false, SourceExt("/media/raw.mkv"), "clip_1")
	want := filepath.Join("/out", "clip_1.mkv")
	if got != want {
		t.Errorf("ResolveOutputPath() = %q, want %q", got, want)
	}
}

func TestVideoStem(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"/media/Talk.mp4", "Talk"},
		{"C:/media/Talk.Final.mp4", "Talk.Final"},
		{"/media/noext", "noext"},
	}

	for _, tt := range tests {
		if got := videoStem(tt.source); got != tt.want {
			t.Errorf("videoStem(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestSourceExt(t *testing.T) {
	if got := SourceExt("/media/Talk.MP4"); got != ".MP4" {
		t.Errorf("SourceExt() = %q, want .MP4", got)
	}
	if got := SourceExt("/media/noext"); got != "" {
		t.Errorf("SourceExt() = %q, want empty", got)
	}
}
