package cli

import (
	"github.com/spf13/cobra"

	"github.com/vnykmshr/goexec/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration goexec would use, after merging defaults, the
config file, GOEXEC_* environment variables and flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			return config.Render(cmd.OutOrStdout(), cfg)
		},
	}
}
