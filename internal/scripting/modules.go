package scripting

import (
	"fmt"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// emitter collects the lines a generator emits.
type emitter struct {
	lines  []string
	logger *zap.Logger
}

// RegisterModules registers the combat Lua table into L. Every function that
// builds a command returns it as a string; only turn and emit append lines.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: combat global is defined in L.
func (e *emitter) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"turn":   e.turn,
		"emit":   e.emit,
		"chain":  chain,
		"wait":   wait,
		"skill":  skill,
		"summon": summon,
		"log":    e.log,
	})
	L.SetGlobal("combat", mod)
}

// positive reads argument n as an integer >= 1.
func positive(L *lua.LState, n int) int {
	v := L.CheckNumber(n)
	k := int(v)
	if float64(k) != float64(v) || k < 1 {
		L.ArgError(n, "positive integer expected")
	}
	return k
}

// tokens reads the string arguments from position from onwards.
func tokens(L *lua.LState, from int) []string {
	var out []string
	for i := from; i <= L.GetTop(); i++ {
		out = append(out, L.CheckString(i))
	}
	return out
}

func (e *emitter) turn(L *lua.LState) int {
	e.lines = append(e.lines, fmt.Sprintf("turn %d:", positive(L, 1)))
	return 0
}

func (e *emitter) emit(L *lua.LState) int {
	for _, line := range tokens(L, 1) {
		if strings.ContainsAny(line, "\r\n") {
			L.ArgError(1, "single line expected")
		}
		e.lines = append(e.lines, line)
	}
	return 0
}

func (e *emitter) log(L *lua.LState) int {
	e.logger.Info(L.CheckString(1), zap.Int("lines", len(e.lines)))
	return 0
}

func chain(L *lua.LState) int {
	L.Push(lua.LString(strings.Join(tokens(L, 1), ".")))
	return 1
}

func wait(L *lua.LState) int {
	secs := L.CheckNumber(1)
	L.Push(lua.LString("wait(" + strconv.FormatFloat(float64(secs), 'g', -1, 64) + ")"))
	return 1
}

// skill builds characterC.useskill(S) with an optional target(T).
func skill(L *lua.LState) int {
	parts := []string{fmt.Sprintf("character%d", positive(L, 1)), fmt.Sprintf("useskill(%d)", positive(L, 2))}
	if L.GetTop() >= 3 {
		parts = append(parts, fmt.Sprintf("target(%d)", positive(L, 3)))
	}
	L.Push(lua.LString(strings.Join(parts, ".")))
	return 1
}

// summon builds summon(N) followed by the given chain modifiers.
func summon(L *lua.LState) int {
	parts := append([]string{fmt.Sprintf("summon(%d)", positive(L, 1))}, tokens(L, 2)...)
	L.Push(lua.LString(strings.Join(parts, ".")))
	return 1
}
