package lua

import (
	"strings"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// removedGlobals load code from outside the module file.
var removedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"module",
	"collectgarbage",
}

// requirable lists modules require may resolve besides preloads.
var requirable = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// restrictGlobals removes file loading and replaces require with a
// whitelisted version. package.path and package.cpath are cleared so
// nothing is read from disk.
func restrictGlobals(L *lua.LState) {
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	pkg, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return
	}
	L.SetField(pkg, "path", lua.LString(""))
	L.SetField(pkg, "cpath", lua.LString(""))
	preload, _ := L.GetField(pkg, "preload").(*lua.LTable)

	original := L.GetGlobal("require")
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		allowed := requirable[name]
		if !allowed && preload != nil {
			allowed = preload.RawGetString(name) != lua.LNil
		}
		if !allowed {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(original)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}

// installPrint routes print to the plugin's logger.
func installPrint(L *lua.LState, log *logrus.Entry) {
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		log.Info(strings.Join(parts, "\t"))
		return 0
	}))
}
