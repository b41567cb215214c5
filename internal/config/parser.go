package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/pandock/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the platform global undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseString parses Lua settings code. Fields the code leaves out keep
// their Default() values.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Settings, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("evaluate config: %w", ctxErr)
		}
		return nil, &ParseError{
			Message: "Lua error",
			Detail:  err.Error(),
		}
	}

	settings, err := extractSettings(L)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// ParseFile reads and parses the settings file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Settings, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("config file too large (%d bytes, max %d)", info.Size(), MaxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return p.ParseString(ctx, string(data))
}

// Load parses the settings file at path, or returns Default() when no file
// exists there.
func (p *Parser) Load(ctx context.Context, path string) (*Settings, error) {
	settings, err := p.ParseFile(ctx, path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return settings, err
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractSettings reads the global "pandock" table over Default().
func extractSettings(L *lua.LState) (*Settings, error) {
	root := L.GetGlobal(luaGlobalPandock)
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'pandock' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}
	table := root.(*lua.LTable)
	s := Default()

	pandoc, err := tableField(table, luaFieldPandoc, luaFieldPandoc)
	if err != nil {
		return nil, err
	}
	if pandoc != nil {
		fields := []struct {
			key string
			dst *string
		}{
			{luaFieldPath, &s.Pandoc.Path},
			{luaFieldMirror, &s.Pandoc.Mirror},
			{luaFieldSHA256, &s.Pandoc.SHA256},
			{luaFieldSigURL, &s.Pandoc.SignatureURL},
			{luaFieldKeyring, &s.Pandoc.Keyring},
		}
		for _, f := range fields {
			if err := stringField(pandoc, f.key, luaFieldPandoc+"."+f.key, f.dst); err != nil {
				return nil, err
			}
		}
	}

	timeouts, err := tableField(table, luaFieldTimeouts, luaFieldTimeouts)
	if err != nil {
		return nil, err
	}
	if timeouts != nil {
		if err := secondsField(timeouts, luaFieldDownload, "timeouts.download", &s.Timeouts.Download); err != nil {
			return nil, err
		}
		if err := secondsField(timeouts, luaFieldProcess, "timeouts.process", &s.Timeouts.Process); err != nil {
			return nil, err
		}
	}

	log, err := tableField(table, luaFieldLog, luaFieldLog)
	if err != nil {
		return nil, err
	}
	if log != nil {
		if err := stringField(log, luaFieldLevel, "log.level", &s.Log.Level); err != nil {
			return nil, err
		}
		if err := stringField(log, luaFieldFormat, "log.format", &s.Log.Format); err != nil {
			return nil, err
		}
	}

	bridge, err := tableField(table, luaFieldBridge, luaFieldBridge)
	if err != nil {
		return nil, err
	}
	if bridge != nil {
		if err := stringField(bridge, luaFieldBridgeAddr, "bridge.addr", &s.Bridge.Addr); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// tableField returns the sub-table at key, or nil when the key is unset.
func tableField(t *lua.LTable, key, field string) (*lua.LTable, error) {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTTable:
		return v.(*lua.LTable), nil
	default:
		return nil, &ValidationError{Field: field, Message: fmt.Sprintf("expected table, got %s", v.Type())}
	}
}

// stringField copies a string value into dst. Nil values (typically from
// platform conditionals) leave dst unchanged.
func stringField(t *lua.LTable, key, field string, dst *string) error {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTString:
		*dst = strings.TrimSpace(v.String())
		return nil
	default:
		return &ValidationError{Field: field, Message: fmt.Sprintf("expected string, got %s", v.Type())}
	}
}

// secondsField reads a number of seconds into dst.
func secondsField(t *lua.LTable, key, field string, dst *time.Duration) error {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTNumber:
		*dst = time.Duration(float64(lua.LVAsNumber(v)) * float64(time.Second))
		return nil
	default:
		return &ValidationError{Field: field, Message: fmt.Sprintf("expected number of seconds, got %s", v.Type())}
	}
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
