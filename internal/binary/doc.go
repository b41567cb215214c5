// Package binary locates, downloads, and installs the pandoc executable that
// pandock drives.
//
// # Storage
//
// The Manager owns a single storage directory. It holds the installed
// executable under the fixed name "pandoc" (no platform extension), a
// transient "pandoc.zip" archive that exists only while an install runs, and
// the "install.lock" advisory lock.
//
// # Resolution
//
// ResolveOrInstall returns immediately when the executable already exists.
// Existence is the only check: a stale or corrupt binary surfaces later, when
// a conversion fails. Otherwise the release archive for the running platform
// is streamed to disk with progress events, optionally verified, and the
// first archive entry whose name ends with the platform executable name is
// installed with mode 0755.
//
// Only macOS (arm64, amd64) and Windows (amd64) have release archives. Other
// platforms fail with ErrNoPlatformBinary before any network request.
//
// # Concurrency
//
// Installs into the same directory are serialized by an in-process guard and
// by the lock file, and the existence check is repeated once the lock is
// held. A second concurrent caller therefore reuses the first caller's
// install instead of downloading again.
//
// # Usage
//
//	mgr, err := binary.NewManager(binary.Config{
//	    StorageDir:   dir,
//	    PlatformInfo: info,
//	    Sink:         bus,
//	})
//	if err != nil {
//	    return err
//	}
//	state, err := mgr.ResolveOrInstall(ctx)
package binary
