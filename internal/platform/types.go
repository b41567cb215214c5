// Package platform detects the host operating system and architecture.
//
// The result drives two things: which pandoc release archive to fetch, and
// the read-only platform table exposed to the Lua settings file. Linux
// distribution facts come from gopsutil and only feed the Lua table; the
// detector falls back to OS/arch alone when they cannot be read.
package platform

import "context"

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // "amd64", "arm64", or the raw GOARCH when not normalizable
	ArchRaw  string // original GOARCH
	Platform string // distro ID (Linux only, e.g. "ubuntu")
	Family   string // canonical family (Linux only)
	Version  string // distro version (Linux only)
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// IsAMD64 returns true if the architecture is amd64.
func (i *Info) IsAMD64() bool {
	return i.Arch == "amd64"
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == "arm64"
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (i *Info) IsAppleSilicon() bool {
	return i.OS == "darwin" && i.Arch == "arm64"
}

// String renders the pair as "os/arch".
func (i *Info) String() string {
	return i.OS + "/" + i.Arch
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// Static is a Detector that always reports the same Info. Hosts use it to
// pin a platform, and tests use it to simulate one.
type Static struct {
	Info Info
}

// Detect returns a copy of the fixed Info.
func (s Static) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info := s.Info
	return &info, nil
}
