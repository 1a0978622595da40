package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/goexec/internal/output"
	"github.com/vnykmshr/goexec/internal/version"
)

func newVersionCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			info := version.Get()
			if f == output.FormatText {
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return nil
			}
			return output.Encode(cmd.OutOrStdout(), f, info)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format (text, json, yaml)")
	return cmd
}
