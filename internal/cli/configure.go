package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"promptlab/internal/configstore"
)

// NewConfigureCmd creates the configure command.
func NewConfigureCmd(opts *globalOptions) *cobra.Command {
	var apiKey, auxURL, auxKey string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Save the Google API key and optional history endpoint",
		Long: `Saves the credential record used for every optimization. The whole record is
replaced on each save. Without --api-key, prints whether a record is stored.

The optional Supabase URL and key enable prompt history.`,
		Example: `  promptlab configure --api-key AIza...
  promptlab configure --api-key AIza... --aux-url https://xyz.supabase.co --aux-key eyJ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if !cmd.Flags().Changed("api-key") {
				stored, ok := a.store.Load(cmd.Context())
				printInfo(out, "Location", a.location)
				printInfo(out, "API key", yesNo(ok && stored.Configured()))
				printInfo(out, "History", yesNo(ok && stored.HasAuxiliary()))
				return nil
			}

			cfg := configstore.Configuration{
				APIKey:            strings.TrimSpace(apiKey),
				AuxiliaryEndpoint: strings.TrimSpace(auxURL),
				AuxiliaryKey:      strings.TrimSpace(auxKey),
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := a.store.Save(cmd.Context(), cfg); err != nil {
				return err
			}

			printSuccess(out, "Configuration saved to %s", a.location)
			if !cfg.HasAuxiliary() {
				printInfo(out, "History", "disabled")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Google API key")
	cmd.Flags().StringVar(&auxURL, "aux-url", "", "Supabase project URL for prompt history")
	cmd.Flags().StringVar(&auxKey, "aux-key", "", "Supabase API key for prompt history")

	return cmd
}

func yesNo(v bool) string {
	if v {
		return success("yes")
	}
	return "no"
}
