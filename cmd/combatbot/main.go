// Package main provides the combat bot binary: it runs combat scripts
// against a device, validates scripts and prints them in canonical form.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "combatbot",
	Short:         "Run turn-based combat scripts",
	Long:          `combatbot interprets combat scripts turn by turn, driving the game's battle screen until the battle ends.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs/dev.yaml", "path to configuration file")
	rootCmd.PersistentFlags().String("script", "", "combat script (.txt, .lua or a directory of .lua files); overrides bot.script")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
