package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
	"github.com/cory-johannsen/autocombat/internal/scripting"
)

// scriptPath returns the --script flag, falling back to fallback.
func scriptPath(cmd *cobra.Command, fallback string) (string, error) {
	path, _ := cmd.Flags().GetString("script")
	if path == "" {
		path = fallback
	}
	if path == "" {
		return "", fmt.Errorf("no combat script given: set bot.script or pass --script")
	}
	return path, nil
}

// loadScript reads script lines from a text file, or renders them from a Lua
// generator file or directory.
func loadScript(path string, logger *zap.Logger) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %q: %w", path, err)
	}
	if info.IsDir() || filepath.Ext(path) == ".lua" {
		return scripting.NewGenerator(scripting.DefaultInstructionLimit, logger).RenderFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %q: %w", path, err)
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}

// parseScript loads and parses the script at path.
func parseScript(path string, logger *zap.Logger) (script.Program, error) {
	lines, err := loadScript(path, logger)
	if err != nil {
		return nil, err
	}
	prog, err := script.Parse(lines)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return prog, nil
}
