// Package historycmder provides the history command for reading responses
// stored by "opsdeck serve".
package historycmder

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/opsdeck/cmd/opsdeck/sqlitepath"
	"github.com/papercomputeco/opsdeck/pkg/cliui"
	"github.com/papercomputeco/opsdeck/pkg/config"
	"github.com/papercomputeco/opsdeck/pkg/eventstream"
	"github.com/papercomputeco/opsdeck/pkg/markdown"
	"github.com/papercomputeco/opsdeck/pkg/storage"
	"github.com/papercomputeco/opsdeck/pkg/storage/sqlite"
	"github.com/papercomputeco/opsdeck/pkg/utils"
)

const historyLongDesc string = `Show stored responses.

Without an ID, lists the most recent responses stored in the SQLite history
database. With an ID, prints that response's markdown, or its rendered HTML
with --html.

The database is taken from --sqlite or storage.sqlite_path, then searched
for in ./.opsdeck/, the working directory, ~/.opsdeck/ and
$XDG_DATA_HOME/opsdeck/.

Examples:
  opsdeck history
  opsdeck history --client 5f0c... --limit 5
  opsdeck history 2b7e... --html`

const historyShortDesc string = "Show stored responses"

const promptPreviewLen = 48

type historyCommander struct {
	sqlitePath string
	clientID   string
	limit      int
	html       bool
	strict     bool
}

var historyFlags = []string{
	config.FlagSQLite,
	config.FlagStrict,
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	var (
		sqlitePath string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, historyFlags)
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.strict = v.GetBool("render.strict")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sqlitepath.ResolveSQLitePath(cmder.sqlitePath)
			if err != nil {
				return err
			}

			driver, err := sqlite.NewDriver(path)
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer driver.Close()

			if len(args) == 1 {
				return cmder.show(cmd, driver, args[0])
			}
			return cmder.list(cmd, driver)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &sqlitePath)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &strict)
	cmd.Flags().StringVar(&cmder.clientID, "client", "", "Only list responses of this client ID")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of responses to list")
	cmd.Flags().BoolVar(&cmder.html, "html", false, "Print the rendered HTML of the response")

	return cmd
}

func (c *historyCommander) list(cmd *cobra.Command, driver storage.Driver) error {
	records, err := driver.List(cmd.Context(), storage.ListOptions{
		ClientID: c.clientID,
		Limit:    c.limit,
	})
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No stored responses."))
		return nil
	}

	fmt.Fprintln(w)
	for _, rec := range records {
		fmt.Fprintf(w, "  %s %s %s  %s\n",
			cliui.KeyStyle.Render(rec.ID),
			statusLabel(rec.Status),
			cliui.DimStyle.Render(rec.CreatedAt.Local().Format(time.DateTime)),
			cliui.ValueStyle.Render(utils.Truncate(rec.Prompt, promptPreviewLen)),
		)
	}
	fmt.Fprintln(w)

	return nil
}

func (c *historyCommander) show(cmd *cobra.Command, driver storage.Driver, id string) error {
	rec, err := driver.Get(cmd.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("no stored response with id %q", id)
		}
		return fmt.Errorf("reading history: %w", err)
	}

	w := cmd.OutOrStdout()
	if !c.html {
		_, err := io.WriteString(w, rec.Text+"\n")
		return err
	}

	html := markdown.Render(rec.Text)
	if c.strict {
		html = markdown.Policy().Sanitize(html)
	}
	_, err = fmt.Fprintln(w, html)
	return err
}

func statusLabel(status string) string {
	switch status {
	case eventstream.StatusDone:
		return cliui.SuccessMark
	case eventstream.StatusError:
		return cliui.FailMark
	default:
		return cliui.DimStyle.Render("-")
	}
}
