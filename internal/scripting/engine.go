// Package scripting hosts the Lua layer that shapes NPC personalities and
// oracle prompts. Keeping prompt text in scripts lets designers tune NPC
// voice without a rebuild.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for prompt construction. One VM serves
// every session and lua.LState is not goroutine-safe, so every call takes the
// engine mutex. Prompts are short script invocations; contention is
// negligible next to a tick.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. Every Lua function has a Go fallback, so a missing or partial
// script set degrades to stock prompts instead of failing startup.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	aiPath := filepath.Join(scriptsDir, "ai")
	if err := e.loadDir(aiPath); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load ai scripts: %w", err)
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

const defaultPersonality = "You are an NPC with a quirky personality."

// Personality calls Lua npc_personality(index) for the NPC's spawn slot.
func (e *Engine) Personality(index int) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("npc_personality")
	if fn == lua.LNil {
		return defaultPersonality
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(index)); err != nil {
		e.log.Error("lua npc_personality error", zap.Error(err), zap.Int("index", index))
		return defaultPersonality
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	s := lua.LVAsString(result)
	if s == "" {
		return defaultPersonality
	}
	return s
}

// ArrivalPrompt calls Lua arrival_prompt() for the line an NPC speaks on
// reaching its destination.
func (e *Engine) ArrivalPrompt() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	fallback := "Generate a short, funny message that an NPC might say when reaching their destination. Keep it under 40 characters."

	fn := e.vm.GetGlobal("arrival_prompt")
	if fn == lua.LNil {
		return fallback
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		e.log.Error("lua arrival_prompt error", zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	s := lua.LVAsString(result)
	if s == "" {
		return fallback
	}
	return s
}

// ProcessPrompt calls Lua process_prompt(ctx) to build the prompt for an NPC
// answering a player message. bound is the exclusive world dimension used to
// constrain destination coordinates in the reply.
func (e *Engine) ProcessPrompt(personality, message string, x, y, bound int) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if personality == "" {
		personality = "A friendly NPC"
	}
	fallback := fmt.Sprintf(
		"You are an NPC with the following personality: %s. "+
			"You are currently at position (%d, %d). "+
			"Someone just told you: %q. "+
			"How do you respond, and does this make you want to change where you're going? "+
			"If you decide to change destination, ensure coordinates are within 0-%d.",
		personality, x, y, message, bound)

	fn := e.vm.GetGlobal("process_prompt")
	if fn == lua.LNil {
		return fallback
	}

	t := e.vm.NewTable()
	t.RawSetString("personality", lua.LString(personality))
	t.RawSetString("message", lua.LString(message))
	t.RawSetString("x", lua.LNumber(x))
	t.RawSetString("y", lua.LNumber(y))
	t.RawSetString("bound", lua.LNumber(bound))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua process_prompt error", zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	s := lua.LVAsString(result)
	if s == "" {
		return fallback
	}
	return s
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
