package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"promptlab/internal/history"
	"promptlab/internal/modes"
	"promptlab/internal/optimizer"
)

// NewOptimizeCmd creates the optimize command.
func NewOptimizeCmd(opts *globalOptions) *cobra.Command {
	var mode, style string

	cmd := &cobra.Command{
		Use:   "optimize [prompt]",
		Short: "Rewrite a prompt and print it as it arrives",
		Long: `Sends the prompt to Gemini with the instruction of the selected mode and
prints the rewrite one character at a time. A custom style replaces the mode
instruction. Ctrl-C stops the output; an interrupted rewrite is not recorded.`,
		Example: `  promptlab optimize "Tell me about cats"
  promptlab optimize --mode deep_research "Compare solar and wind power"
  promptlab optimize --style "Answer like a pirate" "Explain recursion"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runOptimize(ctx, cmd, a, optimizer.Input{
				Prompt:      strings.Join(args, " "),
				Mode:        mode,
				CustomStyle: style,
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Rewriting mode (see 'promptlab modes')")
	cmd.Flags().StringVarP(&style, "style", "s", "", "Custom style instruction; overrides --mode")

	return cmd
}

func runOptimize(ctx context.Context, cmd *cobra.Command, a *app, in optimizer.Input) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	stream, err := a.optimizer.Optimize(ctx, in)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printWarning(errOut, "Cancelled")
			return nil
		}
		return err
	}
	defer stream.Cancel()

	req := stream.Request()
	label := modes.Label(req.ModeID)
	if strings.TrimSpace(in.CustomStyle) != "" {
		label = "custom style"
	}
	fmt.Fprintf(errOut, "%s\n", dim("mode: "+label))

	for chunk := range stream.Chunks() {
		fmt.Fprint(out, chunk)
	}
	fmt.Fprintln(out)

	result, err := stream.Wait()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printWarning(errOut, "Cancelled")
			return nil
		}
		return err
	}

	if err := a.history.Record(context.WithoutCancel(ctx), history.Record{
		OriginalPrompt:  req.OriginalPrompt,
		OptimizedPrompt: result.Text,
		Mode:            req.ModeID,
		Instruction:     req.EffectiveInstruction,
	}); err != nil {
		printWarning(errOut, "History not saved: %v", err)
	}
	return nil
}
