package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"promptlab/internal/modes"
)

// NewModesCmd creates the modes command.
func NewModesCmd(opts *globalOptions) *cobra.Command {
	var popularOnly, showInstructions bool

	cmd := &cobra.Command{
		Use:   "modes",
		Short: "List the available rewriting modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			ids := a.catalog.ListAll()
			if popularOnly {
				ids = a.catalog.ListPopular()
			}

			for _, id := range ids {
				line := fmt.Sprintf("  %-22s %s", id, info(modes.Label(id)))
				if a.catalog.IsPopular(id) {
					line += " " + success("★")
				}
				if id == a.catalog.Default() {
					line += " " + dim("(default)")
				}
				fmt.Fprintln(out, line)
				if showInstructions {
					instruction, _ := a.catalog.InstructionFor(id)
					fmt.Fprintf(out, "      %s\n", dim(instruction))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&popularOnly, "popular", false, "Only list the popular modes, in curated order")
	cmd.Flags().BoolVar(&showInstructions, "instructions", false, "Print each mode's instruction")

	return cmd
}
