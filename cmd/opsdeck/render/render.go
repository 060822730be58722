// Package rendercmder provides the render command, which converts markdown
// to the HTML the dashboard displays.
package rendercmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/opsdeck/pkg/config"
	"github.com/papercomputeco/opsdeck/pkg/logger"
	"github.com/papercomputeco/opsdeck/pkg/markdown"
)

const renderLongDesc string = `Render markdown to HTML.

Reads markdown from the given file, or from stdin when no file is given,
and writes the rendered HTML to stdout. The output contains only the fixed
set of tags the dashboard renderer emits; every piece of input text is
escaped.

With --strict the HTML is additionally passed through the strict
sanitizing policy. With --watch the file is rendered again each time it
changes until interrupted.

Examples:
  opsdeck render notes.md
  cat reply.md | opsdeck render --strict
  opsdeck render --watch notes.md`

const renderShortDesc string = "Render markdown to HTML"

// watchDebounce collapses the burst of events editors produce on save.
const watchDebounce = 100 * time.Millisecond

type renderCommander struct {
	configDir string
	strict    bool
	watch     bool
	debug     bool

	logger *slog.Logger
}

var renderFlags = []string{
	config.FlagStrict,
}

func NewRenderCmd() *cobra.Command {
	cmder := &renderCommander{}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: renderShortDesc,
		Long:  renderLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, renderFlags)
			cmder.strict = v.GetBool("render.strict")
			cmder.configDir = configDir
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.logger = logger.New(
				logger.WithDebug(cmder.debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
				logger.WithComponent("render"),
			)

			if len(args) == 0 {
				if cmder.watch {
					return errors.New("--watch requires a file")
				}
				return cmder.renderReader(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			if err := cmder.renderFile(args[0], cmd.OutOrStdout()); err != nil {
				return err
			}
			if !cmder.watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.watchFile(ctx, args[0], func() {
				if err := cmder.renderFile(args[0], cmd.OutOrStdout()); err != nil {
					cmder.logger.Error("render failed", "path", args[0], "error", err)
				}
			})
		},
	}

	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &cmder.strict)
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Render again whenever the file changes")

	return cmd
}

func (c *renderCommander) renderFile(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return c.renderReader(f, out)
}

func (c *renderCommander) renderReader(r io.Reader, out io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading markdown: %w", err)
	}

	var html string
	if c.strict {
		html = markdown.RenderStrict(string(data))
	} else {
		html = markdown.Render(string(data))
	}

	if _, err := fmt.Fprintln(out, html); err != nil {
		return fmt.Errorf("writing html: %w", err)
	}
	return nil
}

// watchFile calls onChange after path is written or replaced, until ctx is
// done. The parent directory is watched since many editors save by renaming
// a new file over the old one.
func (c *renderCommander) watchFile(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	c.logger.Debug("watching for changes", "path", abs)

	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(watchDebounce)

		case <-debounce.C:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watcher error", "error", err)
		}
	}
}
