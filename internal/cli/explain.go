package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"promptlab/internal/explainer"
)

// NewExplainCmd creates the explain command.
func NewExplainCmd(opts *globalOptions) *cobra.Command {
	var original, optimized, mode string

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain what a rewrite changed",
		Example: `  promptlab explain --original "Tell me about cats" \
      --optimized "Write a 300-word overview of domestic cats..." --mode clarity`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.explainer.Explain(cmd.Context(), explainer.Input{
				OriginalPrompt:  original,
				OptimizedPrompt: optimized,
				Mode:            mode,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSection(out, "Strengths", result.Strengths)
			printSection(out, "Weaknesses", result.Weaknesses)
			printSection(out, "Improvements", result.Improvements)
			printSection(out, "Tips", result.Tips)
			return nil
		},
	}

	cmd.Flags().StringVar(&original, "original", "", "The prompt before optimization")
	cmd.Flags().StringVar(&optimized, "optimized", "", "The optimized prompt")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Mode used for the rewrite")

	return cmd
}

func printSection(w io.Writer, title string, items []string) {
	fmt.Fprintln(w, heading(title))
	if len(items) == 0 {
		fmt.Fprintf(w, "  %s\n", dim("(none)"))
	}
	for _, item := range items {
		fmt.Fprintf(w, "  • %s\n", item)
	}
	fmt.Fprintln(w)
}
