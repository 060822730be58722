// Package opsdeckcmder
package opsdeckcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/opsdeck/cmd/opsdeck/chat"
	configcmder "github.com/papercomputeco/opsdeck/cmd/opsdeck/config"
	historycmder "github.com/papercomputeco/opsdeck/cmd/opsdeck/history"
	rendercmder "github.com/papercomputeco/opsdeck/cmd/opsdeck/render"
	servecmder "github.com/papercomputeco/opsdeck/cmd/opsdeck/serve"
	versioncmder "github.com/papercomputeco/opsdeck/cmd/version"
)

const opsdeckLongDesc string = `opsdeck renders AI-ops assistant answers for the dashboard.

Markdown from the assistant is turned into a fixed, escaped subset of HTML,
streamed answers are re-rendered as they arrive, and every answer can be
kept for later.

Commands:
  opsdeck render       Render markdown to HTML
  opsdeck chat         Ask the backend a question from the terminal
  opsdeck serve        Run the API server for the dashboard
  opsdeck history      Show stored responses
  opsdeck config       Manage persistent configuration`

const opsdeckShortDesc string = "opsdeck - AI-ops response rendering"

func NewOpsdeckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "opsdeck",
		Short:        opsdeckShortDesc,
		Long:         opsdeckLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.opsdeck or ~/.opsdeck)")

	// Add subcommands
	cmd.AddCommand(rendercmder.NewRenderCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
