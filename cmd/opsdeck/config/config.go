// Package configcmder provides the config command for managing persistent
// opsdeck configuration stored in the .opsdeck/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/opsdeck/pkg/cliui"
	"github.com/papercomputeco/opsdeck/pkg/config"
)

const configLongDesc string = `Manage persistent opsdeck configuration.

Configuration is stored as config.toml in the .opsdeck/ directory and provides
default values for command flags. CLI flags and OPSDECK_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  backend.target, backend.stream_path, backend.complete_path, backend.timeout,
  render.frame_interval, render.strict,
  api.listen, storage.sqlite_path,
  events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  opsdeck config set <key> <value>    Set a configuration value
  opsdeck config get <key>            Get a configuration value
  opsdeck config list                 List all configuration values

Examples:
  opsdeck config set backend.target https://ops.internal:8080
  opsdeck config set render.strict true
  opsdeck config get backend.target
  opsdeck config list`

const configShortDesc string = "Manage persistent opsdeck configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, target string) {
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
}
