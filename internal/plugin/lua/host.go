package lua

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
)

// HostModuleName is the name scripts pass to require.
const HostModuleName = "host"

// Policy decides which host calls a script may make.
// *security.Sandbox implements it.
type Policy interface {
	AllowVerseRead() bool
	AllowVerseWrite() bool
	AllowUIModification() bool
	AllowSystemInfo() bool
	AllowFileRead(path string) bool
	AllowFileWrite(path string) bool
	EnforceFileSize(mb float64) bool
	EnforceDiskIO(mb float64) bool
	Report(permission, message string)
}

// Permission names reported on denial.
const (
	permVerseRead  = "verse.read"
	permVerseWrite = "verse.write"
	permUIModify   = "ui.modify"
	permSystemInfo = "system.info"
	permFileRead   = "file.read"
	permFileWrite  = "file.write"
)

const bytesPerMB = 1024 * 1024

// hostBindings implements the host table for one script module.
type hostBindings struct {
	plugin string
	facade *hostapi.Facade
	policy Policy
	log    *logrus.Entry
	events *delivery

	mu   sync.Mutex
	subs []string
}

func (h *hostBindings) funcs() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"find_verse":      h.findVerse,
		"verse_text":      h.verseText,
		"search_verses":   h.searchVerses,
		"add_favorite":    h.addFavorite,
		"remove_favorite": h.removeFavorite,
		"favorites":       h.favorites,
		"publish":         h.publish,
		"subscribe":       h.subscribe,
		"system_info":     h.systemInfo,
		"read_file":       h.readFile,
		"write_file":      h.writeFile,
		"log":             h.logMessage,
	}
}

// deny reports the violation and raises a Lua error.
func (h *hostBindings) deny(L *lua.LState, perm, action string) int {
	h.policy.Report(perm, action+" denied")
	L.RaiseError("permission denied: %s requires %s", action, perm)
	return 0
}

// fail pushes the nil, message pair scripts check for.
func fail(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

func (h *hostBindings) findVerse(L *lua.LState) int {
	if !h.policy.AllowVerseRead() {
		return h.deny(L, permVerseRead, "find_verse")
	}
	v, err := h.facade.Verses.FindVerse(L.CheckString(1), L.OptString(2, ""))
	if err != nil {
		return fail(L, err)
	}
	L.Push(ToLuaValue(L, v))
	return 1
}

func (h *hostBindings) verseText(L *lua.LState) int {
	if !h.policy.AllowVerseRead() {
		return h.deny(L, permVerseRead, "verse_text")
	}
	text, err := h.facade.Verses.VerseText(L.CheckString(1), L.OptString(2, ""))
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LString(text))
	return 1
}

func (h *hostBindings) searchVerses(L *lua.LState) int {
	if !h.policy.AllowVerseRead() {
		return h.deny(L, permVerseRead, "search_verses")
	}
	verses, err := h.facade.Verses.SearchVerses(L.CheckString(1), L.OptString(2, ""), L.OptInt(3, 0))
	if err != nil {
		return fail(L, err)
	}
	t := L.CreateTable(len(verses), 0)
	for _, v := range verses {
		t.Append(ToLuaValue(L, v))
	}
	L.Push(t)
	return 1
}

func (h *hostBindings) addFavorite(L *lua.LState) int {
	if !h.policy.AllowVerseWrite() {
		return h.deny(L, permVerseWrite, "add_favorite")
	}
	if err := h.facade.Favorites.AddFavorite(L.OptString(2, ""), L.CheckString(1)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (h *hostBindings) removeFavorite(L *lua.LState) int {
	if !h.policy.AllowVerseWrite() {
		return h.deny(L, permVerseWrite, "remove_favorite")
	}
	if err := h.facade.Favorites.RemoveFavorite(L.OptString(2, ""), L.CheckString(1)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (h *hostBindings) favorites(L *lua.LState) int {
	if !h.policy.AllowVerseRead() {
		return h.deny(L, permVerseRead, "favorites")
	}
	L.Push(ToLuaValue(L, h.facade.Favorites.Favorites(L.OptString(1, ""))))
	return 1
}

func (h *hostBindings) publish(L *lua.LState) int {
	if !h.policy.AllowUIModification() {
		return h.deny(L, permUIModify, "publish")
	}
	eventType := L.CheckString(1)
	data := ToStringMap(L.OptTable(2, nil))
	data["source"] = h.plugin
	h.facade.Events.Publish(eventType, data)
	return 0
}

// subscribe registers a script callback. Events are delivered on the
// module's delivery goroutine, never on the publisher's.
func (h *hostBindings) subscribe(L *lua.LState) int {
	eventType := L.CheckString(1)
	fn := L.CheckFunction(2)

	id := h.facade.Events.Subscribe(eventType, func(ev hostapi.Event) {
		err := h.events.post(func(s *State) error {
			return s.run(func(L *lua.LState) error {
				arg := L.CreateTable(0, 3)
				arg.RawSetString("type", lua.LString(ev.Type))
				arg.RawSetString("data", ToLuaValue(L, ev.Data))
				arg.RawSetString("time", lua.LNumber(ev.Time.Unix()))
				_, err := pcall(L, fn, []lua.LValue{arg})
				return err
			})
		})
		if err != nil {
			h.log.WithError(err).WithField("event", ev.Type).Warn("script event dropped")
		}
	})

	h.mu.Lock()
	h.subs = append(h.subs, id)
	h.mu.Unlock()
	L.Push(lua.LString(id))
	return 1
}

func (h *hostBindings) systemInfo(L *lua.LState) int {
	if !h.policy.AllowSystemInfo() {
		return h.deny(L, permSystemInfo, "system_info")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	info, err := h.facade.SystemInfo(ctx)
	if err != nil {
		return fail(L, err)
	}
	L.Push(ToLuaValue(L, info))
	return 1
}

func (h *hostBindings) readFile(L *lua.LState) int {
	path := L.CheckString(1)
	if !h.policy.AllowFileRead(path) {
		return h.deny(L, permFileRead, "read_file "+path)
	}
	st, err := os.Stat(path)
	if err != nil {
		return fail(L, err)
	}
	mb := float64(st.Size()) / bytesPerMB
	if !h.policy.EnforceFileSize(mb) {
		return h.deny(L, permFileRead, fmt.Sprintf("read_file %s (%.1f MB)", path, mb))
	}
	if !h.policy.EnforceDiskIO(mb) {
		return h.deny(L, permFileRead, "read_file "+path+": disk I/O limit")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LString(data))
	return 1
}

func (h *hostBindings) writeFile(L *lua.LState) int {
	path := L.CheckString(1)
	data := L.CheckString(2)
	if !h.policy.AllowFileWrite(path) {
		return h.deny(L, permFileWrite, "write_file "+path)
	}
	mb := float64(len(data)) / bytesPerMB
	if !h.policy.EnforceFileSize(mb) || !h.policy.EnforceDiskIO(mb) {
		return h.deny(L, permFileWrite, "write_file "+path+": size limit")
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (h *hostBindings) logMessage(L *lua.LState) int {
	level, err := logrus.ParseLevel(L.CheckString(1))
	if err != nil {
		level = logrus.InfoLevel
	}
	h.log.Log(level, L.CheckString(2))
	return 0
}

// release drops every subscription this module made.
func (h *hostBindings) release() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()
	for _, id := range subs {
		h.facade.Events.Unsubscribe(id)
	}
}

// allowAll is the Policy used when none is configured.
type allowAll struct{}

func (allowAll) AllowVerseRead() bool         { return true }
func (allowAll) AllowVerseWrite() bool        { return true }
func (allowAll) AllowUIModification() bool    { return true }
func (allowAll) AllowSystemInfo() bool        { return true }
func (allowAll) AllowFileRead(string) bool    { return true }
func (allowAll) AllowFileWrite(string) bool   { return true }
func (allowAll) EnforceFileSize(float64) bool { return true }
func (allowAll) EnforceDiskIO(float64) bool   { return true }
func (allowAll) Report(string, string)        {}
