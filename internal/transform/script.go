package transform

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/topicstore/internal/broker"
)

// TransformFuncName is the global Lua function a script must define.
const TransformFuncName = "transform"

// DefaultScriptTimeout bounds a single transform call.
const DefaultScriptTimeout = time.Second

// Script is a Lua transform. The script defines
//
//	function transform(value)
//	  return value
//	end
//
// Returning nil drops the publish. Returning nil and a message, or raising an
// error, fails it. Calls are serialized: a Script is safe for concurrent use
// but runs one value at a time.
type Script struct {
	name    string
	timeout time.Duration

	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// ScriptOption configures a Script.
type ScriptOption func(*Script)

// WithScriptTimeout bounds each transform call. Zero disables the bound.
func WithScriptTimeout(d time.Duration) ScriptOption {
	return func(s *Script) {
		s.timeout = d
	}
}

// WithScriptName labels the script in errors.
func WithScriptName(name string) ScriptOption {
	return func(s *Script) {
		s.name = name
	}
}

// NewScript compiles source and checks that it defines transform.
func NewScript(source string, opts ...ScriptOption) (*Script, error) {
	return newScript(func(L *lua.LState) error { return L.DoString(source) }, opts...)
}

// NewScriptFile loads a script from path.
func NewScriptFile(path string, opts ...ScriptOption) (*Script, error) {
	opts = append([]ScriptOption{WithScriptName(path)}, opts...)
	return newScript(func(L *lua.LState) error { return L.DoFile(path) }, opts...)
}

func newScript(load func(*lua.LState) error, opts ...ScriptOption) (*Script, error) {
	s := &Script{
		name:    "script",
		timeout: DefaultScriptTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	if err := load(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("load %s: %w", s.name, err)
	}
	if fn := L.GetGlobal(TransformFuncName); fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("%s: %w", s.name, ErrNoTransformFunc)
	}

	s.L = L
	return s, nil
}

// openSafeLibraries opens the base, table, string and math libraries and
// removes the loaders that reach the file system.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Name returns the script label.
func (s *Script) Name() string {
	return s.name
}

// Apply runs the script's transform function on v.
func (s *Script) Apply(v any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrScriptClosed
	}

	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
	}

	top := s.L.GetTop()
	defer s.L.SetTop(top)

	err := s.L.CallByParam(lua.P{
		Fn:      s.L.GetGlobal(TransformFuncName),
		NRet:    2,
		Protect: true,
	}, toLua(s.L, v))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	ret, msg := s.L.Get(-2), s.L.Get(-1)
	if ret == lua.LNil {
		if msg != lua.LNil {
			return nil, fmt.Errorf("%s: %s", s.name, msg.String())
		}
		return nil, broker.ErrDrop
	}
	return fromLua(ret), nil
}

// Transform returns Apply as a broker middleware.
func (s *Script) Transform() broker.TransformFunc {
	return s.Apply
}

// Close releases the Lua state. Subsequent calls fail with ErrScriptClosed.
func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}
