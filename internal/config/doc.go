// Package config loads pandock's settings from a sandboxed Lua file.
//
// # Overview
//
// Settings are optional. A missing file yields Default(); a present file must
// assign a global "pandock" table. Every field may be omitted:
//
//	pandock = {
//	  pandoc = {
//	    path = "",             -- user-supplied binary, overrides the managed copy
//	    mirror = "https://github.com/jgm/pandoc/releases/download",
//	    sha256 = "",           -- pin the release archive digest
//	    signature_url = "",    -- detached OpenPGP signature for the archive
//	    keyring = "",          -- public keyring used with signature_url
//	  },
//	  timeouts = { download = 600, process = 300 },  -- seconds, 0 disables
//	  log = { level = "info", format = "console" },
//	  bridge = { addr = "127.0.0.1:7345" },
//	}
//
// # Platform table
//
// The file runs with a read-only "platform" global (see the platform
// package), so a config can branch per machine:
//
//	pandock = {
//	  pandoc = {
//	    path = platform.is_linux and "/usr/bin/pandoc" or "",
//	  },
//	}
//
// # Sandbox
//
// The Lua VM has no os, io, debug or module loading, and no metatable access.
// Parsing honors the caller's context, so a runaway script is stopped when the
// context is cancelled.
//
// # Locations
//
// The settings file is $PANDOCK_CONFIG or <UserConfigDir>/com.pandock.app/pandock.lua.
// The storage directory for the managed binary is $PANDOCK_DATA_DIR or
// <UserConfigDir>/com.pandock.app.
package config
