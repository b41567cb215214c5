package platform

import (
	"context"
	"runtime"
	"testing"
)

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %v, want %v", info.ArchRaw, runtime.GOARCH)
	}
	if info.Arch == "" {
		t.Error("Arch is empty")
	}
	if runtime.GOOS != "linux" && info.Platform != "" {
		t.Errorf("Platform = %q on non-Linux, want empty", info.Platform)
	}
}

func TestRealDetector_UnsupportedArchIsNotAnError(t *testing.T) {
	d := &RealDetector{goos: "windows", goarch: "386"}
	info, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.Arch != "386" {
		t.Errorf("Arch = %q, want 386", info.Arch)
	}
}

func TestRealDetector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewDetector().Detect(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestStatic(t *testing.T) {
	want := Info{OS: "darwin", Arch: "arm64", ArchRaw: "arm64"}
	d := Static{Info: want}

	got, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if *got != want {
		t.Errorf("Detect() = %+v, want %+v", *got, want)
	}

	got.OS = "mutated"
	again, _ := d.Detect(context.Background())
	if again.OS != "darwin" {
		t.Error("Static leaked its internal Info")
	}
}

func TestInfoHelpers(t *testing.T) {
	tests := []struct {
		name         string
		info         Info
		macOS, win   bool
		appleSilicon bool
		wantString   string
	}{
		{"mac arm", Info{OS: "darwin", Arch: "arm64"}, true, false, true, "darwin/arm64"},
		{"mac intel", Info{OS: "darwin", Arch: "amd64"}, true, false, false, "darwin/amd64"},
		{"windows", Info{OS: "windows", Arch: "amd64"}, false, true, false, "windows/amd64"},
		{"linux", Info{OS: "linux", Arch: "arm64"}, false, false, false, "linux/arm64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.info.IsMacOS() != tt.macOS {
				t.Errorf("IsMacOS() = %v", tt.info.IsMacOS())
			}
			if tt.info.IsWindows() != tt.win {
				t.Errorf("IsWindows() = %v", tt.info.IsWindows())
			}
			if tt.info.IsAppleSilicon() != tt.appleSilicon {
				t.Errorf("IsAppleSilicon() = %v", tt.info.IsAppleSilicon())
			}
			if tt.info.String() != tt.wantString {
				t.Errorf("String() = %v, want %v", tt.info.String(), tt.wantString)
			}
		})
	}
}
