package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [script]",
	Short: "Print a combat script in canonical form",
	Long:  `Parses the script and prints one command per line in lower case, dropping comments. Lua generators are rendered first.`,
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
		for _, line := range script.Format(prog) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fmtCmd)
}
