// Package servecmder provides the serve command, which runs the opsdeck API
// server.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/opsdeck/api"
	"github.com/papercomputeco/opsdeck/api/worker"
	"github.com/papercomputeco/opsdeck/pkg/config"
	"github.com/papercomputeco/opsdeck/pkg/eventstream"
	"github.com/papercomputeco/opsdeck/pkg/eventstream/kafka"
	"github.com/papercomputeco/opsdeck/pkg/eventstream/nop"
	"github.com/papercomputeco/opsdeck/pkg/logger"
	"github.com/papercomputeco/opsdeck/pkg/storage"
	"github.com/papercomputeco/opsdeck/pkg/storage/inmemory"
	"github.com/papercomputeco/opsdeck/pkg/storage/sqlite"
	"github.com/papercomputeco/opsdeck/pkg/stream"
)

const serveLongDesc string = `Run the opsdeck API server.

The server renders markdown, bridges chat streams from the AI-ops backend
to browsers as server-sent events and keeps a history of every response:
  POST   /render         Render markdown to HTML
  POST   /stream         Stream a chat answer as rendered HTML frames
  DELETE /stream         Cancel the caller's live stream
  GET    /history        List stored responses
  GET    /history/:id    Get one stored response with its HTML

History is kept in memory unless --sqlite is set. When --brokers is set a
completion event is published to Kafka for every stored response.

Logs are written to stderr as JSON. With --log-file they are appended to
the file as JSON and shown on stderr in a readable form.`

const serveShortDesc string = "Run the opsdeck API server"

// writeTimeout bounds one Kafka publish.
const writeTimeout = 10 * time.Second

type serveCommander struct {
	listen     string
	sqlitePath string
	brokers    []string
	topic      string
	logFile    string
	debug      bool

	api       api.Config
	transport stream.HTTPTransportConfig

	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagSQLite,
	config.FlagBrokers,
	config.FlagTopic,
	config.FlagTarget,
	config.FlagStreamPath,
	config.FlagCompletePath,
	config.FlagTimeout,
	config.FlagFrameInterval,
	config.FlagStrict,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	var (
		listen, sqlitePath, brokers, topic string
		target, streamPath, completePath   string
		timeout, frameInterval             string
		strict                             bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)

			cmder.listen = v.GetString("api.listen")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.brokers = config.EventsConfig{Brokers: v.GetString("events.brokers")}.BrokerList()
			cmder.topic = v.GetString("events.topic")

			cmder.api = api.Config{
				ListenAddr:    cmder.listen,
				Strict:        v.GetBool("render.strict"),
				FrameInterval: v.GetDuration("render.frame_interval"),
			}
			cmder.transport = stream.HTTPTransportConfig{
				Target:       v.GetString("backend.target"),
				StreamPath:   v.GetString("backend.stream_path"),
				CompletePath: v.GetString("backend.complete_path"),
				Timeout:      v.GetDuration("backend.timeout"),
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			l, closeLog, err := cmder.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()
			cmder.logger = l

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &topic)
	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &target)
	config.AddStringFlag(cmd, config.Flags, config.FlagStreamPath, &streamPath)
	config.AddStringFlag(cmd, config.Flags, config.FlagCompletePath, &completePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagFrameInterval, &frameInterval)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &strict)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

// newLogger returns the server logger and a func that closes its log file.
func (c *serveCommander) newLogger(stderr io.Writer) (*slog.Logger, func(), error) {
	if c.logFile == "" {
		return logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(stderr),
			logger.WithComponent("serve"),
		), func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	l := logger.Multi(
		logger.New(
			logger.WithDebug(c.debug),
			logger.WithPretty(true),
			logger.WithWriter(stderr),
		),
		logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
			logger.WithSource(c.debug),
		),
	).With("component", "serve")

	return l, func() { f.Close() }, nil
}

// run serves until ctx is done or the server fails.
func (c *serveCommander) run(ctx context.Context) error {
	driver, err := c.newStorageDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	server := api.NewServer(c.api, stream.NewHTTPTransport(c.transport), driver, pool, c.logger)

	c.logger.Debug("proxying chat streams", "backend", c.transport.Target)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down", "reason", context.Cause(ctx))
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

func (c *serveCommander) newStorageDriver() (storage.Driver, error) {
	if c.sqlitePath != "" {
		driver, err := sqlite.NewDriver(c.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		c.logger.Info("using SQLite storage", "path", c.sqlitePath)
		return driver, nil
	}

	c.logger.Info("using in-memory storage")
	return inmemory.NewDriver(), nil
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	if len(c.brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers:      c.brokers,
		Topic:        c.topic,
		WriteTimeout: writeTimeout,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	c.logger.Info("publishing completion events", "brokers", c.brokers, "topic", c.topic)
	return publisher, nil
}
