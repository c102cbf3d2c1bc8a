package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent optimizations",
		Long: `Lists optimizations recorded in the Supabase project saved with
'promptlab configure --aux-url --aux-key', newest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if !a.history.Enabled(cmd.Context()) {
				printWarning(out, "History is disabled; configure a Supabase URL and key to enable it")
				return nil
			}

			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.HistoryLimit
			}
			records, err := a.history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, dim("No history yet"))
				return nil
			}

			for _, rec := range records {
				fmt.Fprintf(out, "%s  %s\n", heading(rec.CreatedAt.Local().Format(time.DateTime)), info(rec.Mode))
				printInfo(out, "Original", rec.OriginalPrompt)
				printInfo(out, "Optimized", rec.OptimizedPrompt)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of records to show")

	return cmd
}
