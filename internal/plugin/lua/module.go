package lua

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
)

// Options configures a script module.
type Options struct {
	// Facade provides host services. Nil gives a facade with no verse store.
	Facade *hostapi.Facade
	// Policy gates host calls. Nil allows everything.
	Policy Policy
	Logger *logrus.Logger
	// Timeout bounds each call into the script. Zero uses
	// DefaultExecutionTimeout; a negative value disables it.
	Timeout time.Duration
}

// Module is a loaded script.
type Module struct {
	name   string
	path   string
	state  *State
	host   *hostBindings
	events *delivery
	stop   context.CancelFunc
}

// Open loads and runs the script at path so its globals are defined.
func Open(name, path string, opts Options) (*Module, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Facade == nil {
		opts.Facade = hostapi.NewFacade(opts.Logger)
	}
	if opts.Policy == nil {
		opts.Policy = allowAll{}
	}
	timeout := opts.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultExecutionTimeout
	case timeout < 0:
		timeout = 0
	}

	log := opts.Logger.WithField("plugin", name)
	state := NewState(WithExecutionTimeout(timeout))
	installPrint(state.L, log)

	events := newDelivery(state, 64, func(err error) {
		log.WithError(err).Warn("script event callback failed")
	})
	hb := &hostBindings{
		plugin: name,
		facade: opts.Facade,
		policy: opts.Policy,
		log:    log,
		events: events,
	}
	state.PreloadModule(HostModuleName, hb.funcs())

	if err := state.DoFile(path); err != nil {
		state.Close()
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go events.loop(ctx)

	return &Module{
		name:   name,
		path:   path,
		state:  state,
		host:   hb,
		events: events,
		stop:   cancel,
	}, nil
}

// Path returns the script path.
func (m *Module) Path() string {
	return m.path
}

// State returns the underlying state.
func (m *Module) State() *State {
	return m.state
}

// Close stops event delivery and releases the state.
func (m *Module) Close() error {
	m.host.release()
	m.events.stop()
	m.stop()
	return m.state.Close()
}

// Resolve binds the global function symbol into fptr, a pointer to a
// func variable. Arguments are converted to Lua values and results back
// to the declared Go types; a Lua table returned where a string is
// expected is encoded as JSON. When the script raises an error the bound
// function panics with a *CallError.
func (m *Module) Resolve(symbol string, fptr any) error {
	pv := reflect.ValueOf(fptr)
	if pv.Kind() != reflect.Pointer || pv.IsNil() || pv.Elem().Kind() != reflect.Func {
		return fmt.Errorf("resolve %s: target must be a non-nil pointer to a func, got %T", symbol, fptr)
	}
	if !m.state.HasFunction(symbol) {
		return fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, symbol, m.path)
	}

	ft := pv.Elem().Type()
	fn := reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		largs := make([]lua.LValue, len(args))
		for i, a := range args {
			largs[i] = m.toLua(a)
		}
		results, err := m.state.Call(symbol, largs...)
		if err != nil {
			panic(&CallError{Symbol: symbol, Err: err})
		}
		out := make([]reflect.Value, ft.NumOut())
		for i := range out {
			var lv lua.LValue = lua.LNil
			if i < len(results) {
				lv = results[i]
			}
			out[i] = fromLua(lv, ft.Out(i))
		}
		return out
	})
	pv.Elem().Set(fn)
	return nil
}

// toLua converts a bound-function argument. Composite arguments are
// built under the state lock.
func (m *Module) toLua(v reflect.Value) lua.LValue {
	switch v.Kind() {
	case reflect.Bool:
		return lua.LBool(v.Bool())
	case reflect.String:
		return lua.LString(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(v.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(v.Float())
	}
	var lv lua.LValue = lua.LNil
	_ = m.state.run(func(L *lua.LState) error {
		lv = ToLuaValue(L, v.Interface())
		return nil
	})
	return lv
}

// fromLua converts a script result to t. Mismatches yield the zero value.
func fromLua(lv lua.LValue, t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		out.SetBool(lua.LVAsBool(lv))
	case reflect.String:
		out.SetString(luaString(lv))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := luaNumber(lv); ok {
			out.SetInt(int64(n))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n, ok := luaNumber(lv); ok && n >= 0 {
			out.SetUint(uint64(n))
		}
	case reflect.Float32, reflect.Float64:
		if n, ok := luaNumber(lv); ok {
			out.SetFloat(n)
		}
	default:
		data, err := json.Marshal(ToGoValue(lv))
		if err == nil {
			_ = json.Unmarshal(data, out.Addr().Interface())
		}
	}
	return out
}

func luaString(lv lua.LValue) string {
	switch v := lv.(type) {
	case lua.LString:
		return string(v)
	case *lua.LTable:
		data, err := json.Marshal(ToGoValue(v))
		if err != nil {
			return ""
		}
		return string(data)
	case lua.LNumber, lua.LBool:
		return v.String()
	default:
		return ""
	}
}

func luaNumber(lv lua.LValue) (float64, bool) {
	switch v := lv.(type) {
	case lua.LNumber:
		return float64(v), true
	case lua.LString:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	case lua.LBool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
