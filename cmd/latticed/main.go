// Command latticed runs one node of a replicated key/value store.
// Grounded on the wider pack's cobra command shape (one root command,
// flags bound into viper via internal/config); the teacher itself
// ships no binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/latticedb/lattice/internal/config"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latticed",
		Short: "latticed runs one replicated key/value store node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	config.Flags(cmd.Flags())
	return cmd
}
