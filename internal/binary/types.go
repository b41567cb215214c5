package binary

import (
	"errors"

	"github.com/ZebulonRouseFrantzich/pandock/internal/events"
)

// PandocVersion is the pandoc release installed by pandock.
const PandocVersion = "3.6.4"

const (
	// DefaultMirror hosts the pandoc release archives.
	DefaultMirror = "https://github.com/jgm/pandoc/releases/download"

	// BinaryFileName is the installed executable name on every platform.
	BinaryFileName = "pandoc"

	// ArchiveFileName is the transient download inside the storage directory.
	ArchiveFileName = "pandoc.zip"
)

// Error taxonomy for acquisition. Returned errors wrap one of these; test
// with errors.Is.
var (
	ErrNoPlatformBinary = errors.New("no pandoc release for this platform")
	ErrNetwork          = errors.New("network error")
	ErrArchive          = errors.New("archive error")
	ErrFilesystem       = errors.New("filesystem error")
	ErrVerification     = errors.New("verification failed")
)

// Status is the acquisition state of the managed binary.
type Status = events.Phase

const (
	StatusAbsent      = events.PhaseAbsent
	StatusDownloading = events.PhaseDownloading
	StatusExtracting  = events.PhaseExtracting
	StatusInstalled   = events.PhaseInstalled
	StatusFailed      = events.PhaseFailed
)

// State is the outcome of a resolution. It is recomputed on every call and
// never cached.
type State struct {
	Status     Status             `json:"status"`
	BinaryPath string             `json:"binary_path,omitempty"` // set only when Installed
	Fresh      bool               `json:"fresh"`                 // installed by this call
	Verified   VerificationMethod `json:"verified"`
}

// VerificationMethod indicates how a downloaded archive was checked.
type VerificationMethod int

const (
	// VerificationNone indicates no checksum or signature was configured.
	VerificationNone VerificationMethod = iota
	// VerificationSHA256 indicates the archive digest matched a pinned checksum.
	VerificationSHA256
	// VerificationGPG indicates an OpenPGP detached signature was verified.
	VerificationGPG
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationGPG:
		return "GPG"
	case VerificationSHA256:
		return "SHA256"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// MarshalText renders the method by name in JSON.
func (v VerificationMethod) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// DownloadInfo contains metadata needed to download a release archive.
type DownloadInfo struct {
	Version        string
	OS             string // "darwin", "windows"
	Arch           string // "amd64", "arm64"
	AssetSuffix    string // "arm64-macOS", "x86_64-macOS", "windows-x86_64"
	URL            string
	ExecutableName string // archive entry suffix: "pandoc" or "pandoc.exe"
}
