package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct {
	goos   string
	goarch string
}

// NewDetector creates a detector for the running process.
func NewDetector() Detector {
	return &RealDetector{goos: runtime.GOOS, goarch: runtime.GOARCH}
}

// Detect reports OS and architecture from the Go runtime. On Linux it also
// asks gopsutil for distribution details; failure there is not fatal and
// leaves the distro fields empty. Only a cancelled context is an error.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", err)
	}

	info := &Info{
		OS:      d.goos,
		Arch:    normalizeArch(d.goarch),
		ArchRaw: d.goarch,
	}

	if d.goos != "linux" {
		return info, nil
	}

	platform, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return info, nil
	}

	platform = normalizePlatform(platform)
	if platform != "" {
		info.Platform = platform
		info.Family = mapFamily(family)
		info.Version = normalizePlatform(version)
	}

	return info, nil
}
