package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/defectset/pkg/config"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the configuration as TOML",
		Long: `Print the configuration as TOML.

Without --config, prints every default; the output is a valid starting point
for a configuration file. With --config, prints the file merged over the
defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd, nil, nil)
			if err != nil {
				return err
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			return config.FromOptions(opts).Encode(c.Out)
		},
	}
	return cmd
}
