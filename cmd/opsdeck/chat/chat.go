// Package chatcmder provides the chat command, which sends one prompt to the
// AI-ops backend and shows the streamed answer.
package chatcmder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/opsdeck/pkg/cliui"
	"github.com/papercomputeco/opsdeck/pkg/config"
	"github.com/papercomputeco/opsdeck/pkg/dotdir"
	"github.com/papercomputeco/opsdeck/pkg/llm"
	"github.com/papercomputeco/opsdeck/pkg/logger"
	"github.com/papercomputeco/opsdeck/pkg/markdown"
	"github.com/papercomputeco/opsdeck/pkg/stream"
	"github.com/papercomputeco/opsdeck/pkg/utils"
)

const chatLongDesc string = `Ask the AI-ops backend a question.

Sends the prompt to the backend's streaming chat endpoint and renders the
answer as it arrives. When stdout is a terminal the final answer is shown
as styled terminal markdown; otherwise the rendered HTML is written to
stdout. If the stream cannot be opened the request is retried once against
the non-streaming endpoint.

The prompt is read from the arguments, or from stdin when none are given.
Each successful exchange is saved in the .opsdeck/ directory and --continue
sends the next prompt as part of the same conversation. --clear forgets the
saved conversation.

Examples:
  opsdeck chat "why is checkout latency up?"
  opsdeck chat --continue "show me the slowest endpoints"
  opsdeck chat --clear
  echo "summarize last night's alerts" | opsdeck chat > answer.html`

const chatShortDesc string = "Ask the AI-ops backend a question"

type chatCommander struct {
	configDir string

	target        string
	streamPath    string
	completePath  string
	timeout       time.Duration
	frameInterval time.Duration
	strict        bool

	model      string
	resume     bool
	clear      bool
	transcript string
	debug      bool

	// interactive overrides terminal detection when set.
	interactive *bool

	logger *slog.Logger
}

var chatFlags = []string{
	config.FlagTarget,
	config.FlagStreamPath,
	config.FlagCompletePath,
	config.FlagTimeout,
	config.FlagFrameInterval,
	config.FlagStrict,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	var (
		target, streamPath, completePath string
		timeout, frameInterval           string
		strict                           bool
	)

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)

			cmder.configDir = configDir
			cmder.target = v.GetString("backend.target")
			cmder.streamPath = v.GetString("backend.stream_path")
			cmder.completePath = v.GetString("backend.complete_path")
			cmder.timeout = v.GetDuration("backend.timeout")
			cmder.frameInterval = v.GetDuration("render.frame_interval")
			cmder.strict = v.GetBool("render.strict")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.logger = logger.New(
				logger.WithDebug(cmder.debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
				logger.WithComponent("chat"),
			)

			if cmder.clear {
				if err := dotdir.NewManager().ClearConversation(cmder.configDir); err != nil {
					return err
				}
				if len(args) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s Conversation cleared\n", cliui.SuccessMark)
					return nil
				}
			}

			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			return cmder.run(cmd, prompt)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &target)
	config.AddStringFlag(cmd, config.Flags, config.FlagStreamPath, &streamPath)
	config.AddStringFlag(cmd, config.Flags, config.FlagCompletePath, &completePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagFrameInterval, &frameInterval)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &strict)

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name passed to the backend")
	cmd.Flags().BoolVarP(&cmder.resume, "continue", "c", false, "Continue the last saved conversation")
	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Forget the saved conversation before sending")
	cmd.Flags().StringVar(&cmder.transcript, "transcript", "", "Append the raw response stream to this file")

	return cmd
}

// readPrompt joins args, or reads all of stdin when there are none.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}

	if prompt == "" {
		return "", errors.New("a prompt is required")
	}
	return prompt, nil
}

func (c *chatCommander) run(cmd *cobra.Command, prompt string) error {
	ddm := dotdir.NewManager()

	conv := &dotdir.Conversation{}
	if c.resume {
		saved, err := ddm.LoadConversation(c.configDir)
		if err != nil {
			return fmt.Errorf("loading conversation: %w", err)
		}
		if saved != nil {
			conv = saved
		}
	}

	req := llm.ChatRequest{
		Model:          c.model,
		Messages:       append(conv.Messages, llm.NewTextMessage(llm.RoleUser, prompt)),
		ConversationID: conv.ID,
	}

	c.logger.Debug("sending chat request",
		"target", c.target,
		"model", c.model,
		"message_count", len(req.Messages),
	)

	opts := []stream.Option{
		stream.WithFrames(stream.TimerFrames{Interval: c.frameInterval}),
		stream.WithLogger(c.logger),
	}
	if c.transcript != "" {
		f, err := os.OpenFile(c.transcript, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening transcript: %w", err)
		}
		defer f.Close()
		opts = append(opts, stream.WithTranscript(f))
	}

	ctrl := stream.NewController(stream.NewHTTPTransport(stream.HTTPTransportConfig{
		Target:       c.target,
		StreamPath:   c.streamPath,
		CompletePath: c.completePath,
		Timeout:      c.timeout,
	}), opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var lastHTML string
	handlers := stream.Handlers{
		OnRender: func(html string) {
			lastHTML = html
		},
	}

	out := cmd.OutOrStdout()
	interactive := c.isTerminal(out)

	var (
		text    string
		sendErr error
	)
	send := func() error {
		text, sendErr = ctrl.Send(ctx, req, handlers)
		return sendErr
	}

	if interactive {
		_ = cliui.Step(cmd.ErrOrStderr(), "Asking: "+utils.Truncate(prompt, 40), send)
	} else {
		_ = send()
	}

	if errors.Is(sendErr, stream.ErrCanceled) {
		return nil
	}

	if interactive {
		if text != "" {
			rendered, err := cliui.RenderMarkdown(text, terminalWidth(out))
			if err != nil {
				c.logger.Debug("terminal markdown failed, printing raw text", "error", err)
			}
			fmt.Fprintln(out, rendered)
		}
	} else if lastHTML != "" {
		if c.strict {
			lastHTML = markdown.Policy().Sanitize(lastHTML)
		}
		fmt.Fprintln(out, lastHTML)
	}

	if sendErr != nil {
		return fmt.Errorf("chat failed: %w", sendErr)
	}

	conv.Messages = append(req.Messages, llm.NewTextMessage(llm.RoleAssistant, text))
	if err := ddm.SaveConversation(conv, c.configDir); err != nil {
		c.logger.Warn("could not save conversation", "error", err)
	}

	return nil
}

func (c *chatCommander) isTerminal(w io.Writer) bool {
	if c.interactive != nil {
		return *c.interactive
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
