package config

import (
	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals are removed from every config VM. os and io reach the host,
// the loaders pull in code from disk or strings, and the metatable and raw
// accessors could unfreeze the read-only platform table.
var blockedGlobals = []string{
	"os",
	"io",
	"debug",
	"require",
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"module",
	"getmetatable",
	"setmetatable",
	"rawget",
	"rawset",
	"rawequal",
	"getfenv",
	"setfenv",
	"collectgarbage",
}

// sandboxLuaVM strips blockedGlobals from L. string, table and math stay.
func sandboxLuaVM(L *lua.LState) {
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	// package.loaded still references the stripped libraries.
	L.SetGlobal("package", lua.LNil)
}

// newSandboxedVM creates a new Lua VM with sandboxing applied.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
