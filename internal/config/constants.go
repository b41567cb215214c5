package config

import "time"

// Lua schema field names and globals
const (
	luaGlobalPandock   = "pandock"
	luaFieldPandoc     = "pandoc"
	luaFieldPath       = "path"
	luaFieldMirror     = "mirror"
	luaFieldSHA256     = "sha256"
	luaFieldSigURL     = "signature_url"
	luaFieldKeyring    = "keyring"
	luaFieldTimeouts   = "timeouts"
	luaFieldDownload   = "download"
	luaFieldProcess    = "process"
	luaFieldLog        = "log"
	luaFieldLevel      = "level"
	luaFieldFormat     = "format"
	luaFieldBridge     = "bridge"
	luaFieldBridgeAddr = "addr"
)

const (
	// AppNamespace is the product directory under the OS config dir.
	AppNamespace = "com.pandock.app"

	// ConfigFileName is the settings file inside AppNamespace.
	ConfigFileName = "pandock.lua"

	// EnvConfig overrides the settings file location.
	EnvConfig = "PANDOCK_CONFIG"

	// EnvDataDir overrides the storage directory.
	EnvDataDir = "PANDOCK_DATA_DIR"

	// MaxConfigFileSize bounds the settings file read from disk.
	MaxConfigFileSize = 1 << 20

	// MaxTimeout bounds the configurable timeouts.
	MaxTimeout = 24 * time.Hour

	DefaultDownloadTimeout = 600 * time.Second
	DefaultProcessTimeout  = 300 * time.Second
	DefaultBridgeAddr      = "127.0.0.1:7345"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
)
