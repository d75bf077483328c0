package domain

import "testing"

func TestPhase_Active(t *testing.T) {
	tests := []struct {
		name  string
		phase Phase
		want  bool
	}{
		{"idle", PhaseIdle, false},
		{"awaiting url", PhaseAwaitingURL, false},
		{"awaiting format", PhaseAwaitingFormat, false},
		{"downloading", PhaseDownloading, true},
		{"uploading", PhaseUploading, true},
		{"terminated", PhaseTerminated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.phase.Active(); got != tt.want {
				t.Errorf("Phase(%q).Active() = %v, want %v", tt.phase, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "Unknown"},
		{"negative", -1, "Unknown"},
		{"bytes", 512, "512.00 B"},
		{"kilobytes", 2048, "2.00 KB"},
		{"megabytes", 150 * 1024 * 1024, "150.00 MB"},
		{"fractional megabytes", 157286400 + 524288, "150.50 MB"},
		{"gigabytes", 3 * 1024 * 1024 * 1024, "3.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSize(tt.bytes); got != tt.want {
				t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestVideoInfo_OptionBySelector(t *testing.T) {
	info := &VideoInfo{
		Options: []FormatOption{
			{Selector: "137+140", Label: "1080p"},
			{Selector: "136+140", Label: "720p"},
		},
	}

	opt, ok := info.OptionBySelector("136+140")
	if !ok {
		t.Fatal("OptionBySelector() should find existing selector")
	}
	if opt.Label != "720p" {
		t.Errorf("OptionBySelector() label = %q, want %q", opt.Label, "720p")
	}

	if _, ok := info.OptionBySelector("999"); ok {
		t.Error("OptionBySelector() should miss unknown selector")
	}
}
