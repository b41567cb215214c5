package binary

import (
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/pandock/internal/platform"
)

// assetSuffixes maps os/arch to the pandoc release asset suffix.
var assetSuffixes = map[string]string{
	"darwin/arm64":  "arm64-macOS",
	"darwin/amd64":  "x86_64-macOS",
	"windows/amd64": "windows-x86_64",
}

// constructDownloadInfo builds the archive URL for the platform.
// Pattern: {mirror}/{version}/pandoc-{version}-{suffix}.zip
func constructDownloadInfo(version, mirror string, platformInfo *platform.Info) (*DownloadInfo, error) {
	if platformInfo == nil {
		return nil, fmt.Errorf("platform info is required")
	}

	suffix, ok := assetSuffixes[platformInfo.OS+"/"+platformInfo.Arch]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoPlatformBinary, platformInfo.OS, platformInfo.Arch)
	}

	if mirror == "" {
		mirror = DefaultMirror
	}
	mirror = strings.TrimRight(mirror, "/")

	return &DownloadInfo{
		Version:        version,
		OS:             platformInfo.OS,
		Arch:           platformInfo.Arch,
		AssetSuffix:    suffix,
		URL:            fmt.Sprintf("%s/%s/pandoc-%s-%s.zip", mirror, version, version, suffix),
		ExecutableName: executableName(platformInfo.OS),
	}, nil
}

// executableName returns the name pandoc has inside the release archive.
func executableName(goos string) string {
	if goos == "windows" {
		return "pandoc.exe"
	}
	return "pandoc"
}

// Supported reports whether a release archive exists for the platform.
func Supported(platformInfo *platform.Info) bool {
	if platformInfo == nil {
		return false
	}
	_, ok := assetSuffixes[platformInfo.OS+"/"+platformInfo.Arch]
	return ok
}
