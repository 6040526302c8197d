package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/defectset/pkg/enhance"
	"github.com/matzehuels/defectset/pkg/noise"
)

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for defectset.

  $ source <(defectset completion bash)
  $ defectset completion zsh > "${fpath[1]}/_defectset"
  $ defectset completion fish > ~/.config/fish/completions/defectset.fish
  PS> defectset completion powershell | Out-String | Invoke-Expression

Flag values with a fixed vocabulary (--enhance, --levels) and
the --config file are completed as well.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

// flagValues lists the accepted values of the option flags with a fixed
// vocabulary.
func flagValues() map[string][]string {
	levels := make([]string, len(noise.Levels))
	for i, l := range noise.Levels {
		levels[i] = l.Name
	}
	return map[string][]string{
		"enhance": enhance.PresetNames(),
		"levels":  levels,
	}
}

// registerCompletions attaches value completions to every command of the
// tree rooted at root that defines one of the vocabulary flags.
func registerCompletions(root *cobra.Command) {
	_ = root.RegisterFlagCompletionFunc("config", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"toml"}, cobra.ShellCompDirectiveFilterFileExt
	})

	values := flagValues()
	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		for name, vals := range values {
			if cmd.LocalNonPersistentFlags().Lookup(name) == nil {
				continue
			}
			_ = cmd.RegisterFlagCompletionFunc(name, cobra.FixedCompletions(vals, cobra.ShellCompDirectiveNoFileComp))
		}
		for _, sub := range cmd.Commands() {
			walk(sub)
		}
	}
	walk(root)
}
