package script

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a script line that cannot be interpreted safely.
// It is fatal for the combat session that loaded the script.
type ParseError struct {
	// Line is the 1-based line number.
	Line int
	// Text is the line as written.
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("script line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts raw script lines into a Program.
//
// Precondition: lines is the script split on newlines.
// Postcondition: Returns the commands in source order with comments removed,
// or a *ParseError for the first malformed turn marker.
func Parse(lines []string) (Program, error) {
	var prog Program
	for i, line := range lines {
		cmds, err := ParseLine(i+1, line)
		if err != nil {
			return nil, err
		}
		for _, c := range cmds {
			if c.Kind == KindComment {
				continue
			}
			prog = append(prog, c)
		}
	}
	return prog, nil
}

// ParseText splits text on newlines and parses it.
func ParseText(text string) (Program, error) {
	return Parse(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
}

// ParseLine classifies a single script line.
// A line may yield several commands: a turn marker followed by commands on
// the same line, or several characterN groups.
//
// Precondition: n is the 1-based line number used in errors.
// Postcondition: Returns nil for blank lines and a single KindComment command
// for comment lines.
func ParseLine(n int, line string) ([]Command, error) {
	text := strings.ToLower(strings.TrimSpace(line))
	if text == "" {
		return nil, nil
	}
	if strings.HasPrefix(text, "//") || strings.HasPrefix(text, "#") {
		return []Command{{Kind: KindComment, Line: n, Raw: text}}, nil
	}
	if i := strings.IndexAny(text, "/#"); i >= 0 {
		text = strings.TrimSpace(text[:i])
		if text == "" {
			return []Command{{Kind: KindComment, Line: n}}, nil
		}
	}

	if strings.Contains(text, "turn") {
		return parseTurn(n, line, text)
	}
	return parseBody(n, text), nil
}

func parseTurn(n int, line, text string) ([]Command, error) {
	head, rest, _ := strings.Cut(text, ":")
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return nil, &ParseError{Line: n, Text: line, Err: fmt.Errorf("missing turn number")}
	}
	turn, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, &ParseError{Line: n, Text: line, Err: fmt.Errorf("malformed turn number %q: %w", fields[1], err)}
	}
	if turn < 1 {
		return nil, &ParseError{Line: n, Text: line, Err: fmt.Errorf("turn number %d is not positive", turn)}
	}

	cmds := []Command{{Kind: KindTurnMarker, Line: n, Raw: fmt.Sprintf("turn %d:", turn), Turn: turn}}
	if rest = strings.TrimSpace(rest); rest != "" {
		cmds = append(cmds, parseBody(n, rest)...)
	}
	return cmds, nil
}

// splitTokens splits on '.' and rejoins decimal arguments such as wait(1.5).
func splitTokens(text string) []string {
	parts := strings.Split(text, ".")
	var tokens []string
	for i := 0; i < len(parts); i++ {
		tok := strings.TrimSpace(parts[i])
		for strings.Contains(tok, "(") && !strings.Contains(tok, ")") && i+1 < len(parts) {
			i++
			tok += "." + strings.TrimSpace(parts[i])
		}
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// callArg returns the argument of a token of the form name(arg).
func callArg(tok, name string) (string, bool) {
	if !strings.HasPrefix(tok, name+"(") || !strings.HasSuffix(tok, ")") {
		return "", false
	}
	return strings.TrimSpace(tok[len(name)+1 : len(tok)-1]), true
}

// intArg parses name(k) with lo <= k <= hi.
func intArg(tok, name string, lo, hi int) (int, bool) {
	arg, ok := callArg(tok, name)
	if !ok {
		return 0, false
	}
	k, err := strconv.Atoi(arg)
	if err != nil || k < lo || k > hi {
		return 0, false
	}
	return k, true
}

func waitArg(tok string) (Wait, bool) {
	arg, ok := callArg(tok, "wait")
	if !ok {
		return Wait{}, false
	}
	secs, err := strconv.ParseFloat(arg, 64)
	return newWait(arg, secs, err), true
}

func characterIndex(tok string) (int, bool) {
	if len(tok) != len("character1") || !strings.HasPrefix(tok, "character") {
		return 0, false
	}
	k := int(tok[len(tok)-1] - '0')
	if k < 1 || k > 4 {
		return 0, false
	}
	return k, true
}

var literalKinds = map[string]Kind{
	"attackback":                  KindAttackBack,
	"back":                        KindBack,
	"reload":                      KindReload,
	"requestbackup":               KindRequestBackup,
	"tweetbackup":                 KindTweetBackup,
	"end":                         KindEnd,
	"exit":                        KindExit,
	"repeatmanualattackandreload": KindRepeatManualAttackAndReload,
}

func parseBody(n int, text string) []Command {
	tokens := splitTokens(text)
	if len(tokens) == 0 {
		return nil
	}
	if _, ok := characterIndex(tokens[0]); ok {
		return parseCharacters(n, tokens)
	}
	return []Command{parseSimple(n, tokens)}
}

func parseSimple(n int, tokens []string) Command {
	primary, mods := tokens[0], tokens[1:]
	cmd := Command{Line: n, Raw: strings.Join(tokens, ".")}
	unknown := Command{Kind: KindUnknown, Line: n, Raw: cmd.Raw}

	if kind, ok := literalKinds[primary]; ok {
		if len(mods) > 0 {
			return unknown
		}
		cmd.Kind = kind
		return cmd
	}

	switch primary {
	case "enablesemiauto", "enablefullauto":
		if len(mods) > 0 {
			return unknown
		}
		cmd.Kind = KindEnableAuto
		cmd.Mode = AutoSemi
		if primary == "enablefullauto" {
			cmd.Mode = AutoFull
		}
		return cmd
	case "attack":
		chain, ok := parseChain(mods)
		if !ok || chain.Attack {
			return unknown
		}
		cmd.Kind = KindAttack
		cmd.Chain = chain
		return cmd
	case "quicksummon":
		chain, ok := parseChain(mods)
		if !ok {
			return unknown
		}
		cmd.Kind = KindQuickSummon
		cmd.Chain = chain
		return cmd
	}

	if k, ok := intArg(primary, "summon", 1, 6); ok {
		chain, ok := parseChain(mods)
		if !ok {
			return unknown
		}
		cmd.Kind = KindSummon
		cmd.Summon = k
		cmd.Chain = chain
		return cmd
	}
	if k, ok := intArg(primary, "targetenemy", 1, 3); ok {
		if len(mods) > 0 {
			return unknown
		}
		cmd.Kind = KindTargetEnemy
		cmd.Enemy = k
		return cmd
	}
	if w, ok := waitArg(primary); ok {
		if len(mods) > 0 {
			return unknown
		}
		cmd.Kind = KindWait
		cmd.Wait = w
		return cmd
	}
	for item, tok := range itemTokens {
		if primary != tok {
			continue
		}
		cmd.Kind = KindHealingItem
		cmd.Item = item
		switch {
		case len(mods) == 0:
		case len(mods) == 1 && item.NeedsTarget():
			k, ok := intArg(mods[0], "target", 1, 4)
			if !ok {
				return unknown
			}
			cmd.Target = k
		default:
			return unknown
		}
		return cmd
	}
	return unknown
}

// parseChain interprets the modifiers after a summon, quick summon or attack.
func parseChain(mods []string) (Chain, bool) {
	var chain Chain
	for _, m := range mods {
		if m == "attack" && !chain.Attack {
			chain.Attack = true
			continue
		}
		if w, ok := waitArg(m); ok && chain.Wait == nil {
			chain.Wait = &w
			continue
		}
		return Chain{}, false
	}
	return chain, true
}

// parseCharacters splits tokens into one command per characterN group.
func parseCharacters(n int, tokens []string) []Command {
	var cmds []Command
	var cur *Command
	var raw []string
	flush := func() {
		if cur != nil {
			cur.Raw = strings.Join(raw, ".")
			cmds = append(cmds, *cur)
		}
	}
	for _, tok := range tokens {
		if k, ok := characterIndex(tok); ok {
			flush()
			cur = &Command{Kind: KindCharacterSkill, Line: n, Character: k}
			raw = []string{tok}
			continue
		}
		cur.Steps = append(cur.Steps, parseStep(tok))
		raw = append(raw, tok)
	}
	flush()
	return cmds
}

func parseStep(tok string) Step {
	if tok == "attack" {
		return Step{Kind: StepAttack, Raw: tok}
	}
	if k, ok := intArg(tok, "useskill", 1, 4); ok {
		return Step{Kind: StepSkill, N: k, Raw: tok}
	}
	if k, ok := intArg(tok, "target", 1, 6); ok {
		return Step{Kind: StepTarget, N: k, Raw: tok}
	}
	if w, ok := waitArg(tok); ok {
		return Step{Kind: StepWait, Wait: w, Raw: tok}
	}
	return Step{Kind: StepInvalid, Raw: tok}
}
