package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrInstructionLimit is returned when a generator exhausts its opcode budget.
var ErrInstructionLimit = errors.New("scripting: instruction limit exceeded")

// Generator renders Lua generator sources into combat script lines.
// A Generator is stateless between calls; each render gets a fresh VM.
type Generator struct {
	instLimit int
	logger    *zap.Logger
}

// NewGenerator creates a Generator.
//
// Precondition: logger must be non-nil; instLimit <= 0 uses DefaultInstructionLimit.
func NewGenerator(instLimit int, logger *zap.Logger) *Generator {
	return &Generator{instLimit: instLimit, logger: logger}
}

// Render runs src and returns the lines it emitted, in order.
//
// Postcondition: Returns ErrInstructionLimit (wrapped) when the budget ran out.
func (g *Generator) Render(src string) ([]string, error) {
	return g.run("<inline>", func(L *lua.LState) error { return L.DoString(src) })
}

// RenderFile runs a single .lua file, or every .lua file of a directory in
// lexicographic order within one VM.
func (g *Generator) RenderFile(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading %q: %w", path, err)
	}
	files := []string{path}
	if info.IsDir() {
		if files, err = luaFiles(path); err != nil {
			return nil, err
		}
	}
	return g.run(path, func(L *lua.LState) error {
		for _, f := range files {
			if err := L.DoFile(f); err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
		}
		return nil
	})
}

func (g *Generator) run(name string, exec func(*lua.LState) error) ([]string, error) {
	L, cancel := NewSandboxedState(g.instLimit)
	defer L.Close()
	defer cancel()

	e := &emitter{logger: g.logger.With(zap.String("generator", name))}
	e.RegisterModules(L)
	if err := exec(L); err != nil {
		if exhausted(L) {
			return nil, fmt.Errorf("%w: %s", ErrInstructionLimit, name)
		}
		return nil, fmt.Errorf("scripting: running %s: %w", name, err)
	}
	g.logger.Debug("generator rendered", zap.String("generator", name), zap.Int("lines", len(e.lines)))
	return e.lines, nil
}

func luaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Render runs src with a silent logger.
func Render(src string, instLimit int) ([]string, error) {
	return NewGenerator(instLimit, zap.NewNop()).Render(src)
}

// RenderFile runs the file or directory at path with a silent logger.
func RenderFile(path string, instLimit int) ([]string, error) {
	return NewGenerator(instLimit, zap.NewNop()).RenderFile(path)
}
