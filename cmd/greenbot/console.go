package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"greenbot/pkg/api"
	"greenbot/pkg/api/apitest"
	"greenbot/pkg/config"
	"greenbot/pkg/event"
	"greenbot/pkg/logger"
	"greenbot/pkg/replies"
	"greenbot/pkg/router"
	"greenbot/pkg/state"
)

var (
	consoleChat   string
	consoleSender string
	consoleName   string
	liveSend      bool
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the configured replies locally",
	Long: `Type messages as if they came from a WhatsApp chat. Each line is routed
as an incoming text message through the configured replies and the
configured state store. Answers are printed instead of sent unless --live
is given.

Examples:
  greenbot console
  greenbot console --sender 79001234567@c.us --name Neo`,
	RunE: runConsole,
}

func init() {
	for _, cmd := range []*cobra.Command{consoleCmd, routeCmd} {
		cmd.Flags().BoolVar(&liveSend, "live", false, "send answers through the instance instead of printing them")
	}
	consoleCmd.Flags().StringVar(&consoleChat, "chat", "", "chat id (defaults to the sender)")
	consoleCmd.Flags().StringVar(&consoleSender, "sender", "70000000000@c.us", "sender id")
	consoleCmd.Flags().StringVar(&consoleName, "name", "Console", "sender display name")
}

// localRouter builds a router with the configured replies and store. In
// dry-run mode sends go to a recorder that prints them.
func localRouter(ctx context.Context, cfg *config.Config, log *logger.Logger, out io.Writer) (*router.Router, func(), error) {
	var sender api.Sender
	if liveSend {
		client, err := api.ProvideClient(log, cfg)
		if err != nil {
			return nil, nil, err
		}
		sender = client
	} else {
		sender = &apitest.Recorder{OnSend: func(call apitest.Call) { printCall(out, call) }}
	}

	store, err := state.New(ctx, log, state.ConfigFrom(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("creating state store: %w", err)
	}
	cleanup := func() {
		if closer, ok := store.(io.Closer); ok {
			closer.Close()
		}
	}

	r := router.New(sender, store, router.WithLogger(log))
	if _, err := replies.Register(log, r, cfg.Replies); err != nil {
		cleanup()
		return nil, nil, err
	}
	return r, cleanup, nil
}

func printCall(out io.Writer, call apitest.Call) {
	switch req := call.Request.(type) {
	case *api.SendMessageRequest:
		fmt.Fprintf(out, "🤖 %s\n", req.Message)
	case *api.SendFileByURLRequest:
		fmt.Fprintf(out, "🤖 [%s] %s\n", req.FileName, req.URLFile)
		if req.Caption != "" {
			fmt.Fprintf(out, "   %s\n", req.Caption)
		}
	default:
		body, _ := json.Marshal(call.Request)
		fmt.Fprintf(out, "🤖 %s %s\n", call.Method, body)
	}
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := cliLogger(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r, cleanup, err := localRouter(ctx, cfg, log, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer cleanup()

	chat := consoleChat
	if chat == "" {
		chat = consoleSender
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Chatting as %s in %s (exit or Ctrl+D to quit)\n\n", consoleName, chat)
	return consoleLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), func(text string) error {
		return r.Route(ctx, event.NewTextMessage(chat, consoleSender, consoleName, text))
	})
}

// consoleLoop reads lines until exit and hands each one to route.
func consoleLoop(ctx context.Context, in io.Reader, out io.Writer, route func(string) error) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".greenbot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           io.NopCloser(in),
		Stdout:          out,
	})
	if err != nil {
		return simpleConsoleLoop(ctx, in, out, route)
	}
	defer rl.Close()

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		if done := handleLine(out, line, route); done {
			return nil
		}
	}
	return nil
}

func simpleConsoleLoop(ctx context.Context, in io.Reader, out io.Writer, route func(string) error) error {
	scanner := bufio.NewScanner(in)
	for ctx.Err() == nil {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if done := handleLine(out, scanner.Text(), route); done {
			return nil
		}
	}
	return nil
}

// handleLine routes one input line and reports whether the user quit.
func handleLine(out io.Writer, line string, route func(string) error) bool {
	input := strings.TrimSpace(line)
	switch input {
	case "":
		return false
	case "exit", "quit":
		return true
	}
	if err := route(input); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	return false
}
