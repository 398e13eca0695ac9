package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

var validateCmd = &cobra.Command{
	Use:   "validate [script]",
	Short: "Parse a combat script and report its turn blocks",
	Long:  `Parses the script, failing on malformed turn markers and listing commands the interpreter will skip as unknown.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := argOrScript(cmd, args)
		if err != nil {
			return err
		}
		prog, err := parseScript(path, zap.NewNop())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		unknown := 0
		for _, c := range prog {
			if c.Kind == script.KindUnknown {
				unknown++
				fmt.Fprintf(out, "line %d: unknown command %q will be skipped\n", c.Line, c.Raw)
			}
		}
		fmt.Fprintf(out, "%s: %d commands, turns %v, %d unknown\n", path, len(prog), prog.Turns(), unknown)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// argOrScript prefers a positional script argument over --script.
func argOrScript(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return scriptPath(cmd, "")
}
