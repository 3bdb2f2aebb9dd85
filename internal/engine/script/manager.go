package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/engine/table"
)

// Manager owns one sandboxed LState holding all loaded generator
// functions and hands out table.DescriptionFunc bindings for them.
//
// The LState is single-threaded; a mutex serializes generator calls.
// Each invocation runs under a fresh instruction-count budget, so one
// runaway generator cannot starve later calls.
type Manager struct {
	mu        sync.Mutex
	state     *lua.LState
	cancel    func()
	instLimit int
	logger    *zap.Logger
}

// NewManager creates a Manager with an empty sandboxed VM.
//
// Precondition: logger must be non-nil. instLimit >= 0; 0 uses
// DefaultInstructionLimit.
func NewManager(logger *zap.Logger, instLimit int) *Manager {
	if logger == nil {
		panic("script: NewManager requires a non-nil logger")
	}
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L, cancel := newSandboxedState(instLimit)
	return &Manager{
		state:     L,
		cancel:    cancel,
		instLimit: instLimit,
		logger:    logger,
	}
}

// LoadDirectory executes every *.lua file in dir in lexicographic order,
// defining generator functions as globals in the sandboxed VM.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns an error on the first Lua load failure.
func (m *Manager) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("script: reading script dir %q: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range luaFiles {
		m.resetBudget()
		if err := m.state.DoFile(path); err != nil {
			return fmt.Errorf("script: loading %q: %w", path, err)
		}
	}
	return nil
}

// Generator returns a deferred description bound to the Lua global
// function named name. Satisfies table.GeneratorBinder.
//
// The returned func never panics: Lua runtime errors, non-function
// globals gone missing, and non-string returns degrade to "" with a
// Warn log.
func (m *Manager) Generator(name string) (table.DescriptionFunc, bool) {
	m.mu.Lock()
	fn := m.state.GetGlobal(name)
	m.mu.Unlock()
	if fn.Type() != lua.LTFunction {
		return nil, false
	}

	return func() string {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.resetBudget()
		fn := m.state.GetGlobal(name)
		if fn.Type() != lua.LTFunction {
			m.logger.Warn("script: generator is no longer a function",
				zap.String("generator", name),
			)
			return ""
		}
		if err := m.state.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}); err != nil {
			m.logger.Warn("script: generator runtime error",
				zap.String("generator", name),
				zap.Error(err),
			)
			return ""
		}
		ret := m.state.Get(-1)
		m.state.Pop(1)
		if s, ok := ret.(lua.LString); ok {
			return string(s)
		}
		m.logger.Warn("script: generator returned a non-string",
			zap.String("generator", name),
			zap.String("type", ret.Type().String()),
		)
		return ""
	}, true
}

// GeneratorNames returns the names of all loaded generator functions,
// sorted. Intended for diagnostics.
func (m *Manager) GeneratorNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	globals := m.state.Get(lua.GlobalsIndex).(*lua.LTable)
	globals.ForEach(func(k, v lua.LValue) {
		if v.Type() != lua.LTFunction {
			return
		}
		if ks, ok := k.(lua.LString); ok && !builtinGlobal(string(ks)) {
			names = append(names, string(ks))
		}
	})
	sort.Strings(names)
	return names
}

// builtinGlobal filters the function globals the sandbox itself defines.
func builtinGlobal(name string) bool {
	switch name {
	case "assert", "error", "getmetatable", "ipairs", "next", "pairs",
		"pcall", "print", "rawequal", "rawget", "rawlen", "rawset",
		"select", "setmetatable", "tonumber", "tostring", "type",
		"unpack", "xpcall", "module", "getfenv", "setfenv", "newproxy",
		"loadstring", "_printregs":
		return true
	}
	return false
}

// resetBudget installs a fresh instruction-count context on the VM.
//
// Precondition: m.mu is held.
func (m *Manager) resetBudget() {
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := newCountingContext(m.instLimit)
	m.state.SetContext(ctx)
	m.cancel = cancel
}

// Close releases the VM. The Manager is unusable afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.state.Close()
}
