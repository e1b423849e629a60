// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/config"
	"github.com/jeranaias/folio-chat/internal/engine"
	"github.com/jeranaias/folio-chat/internal/model"
)

const historyFileName = "repl_history"

// lineReader is the subset of liner used by the REPL.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// prompter wraps liner with a history file in the config directory.
type prompter struct {
	line        *liner.State
	historyFile string
}

func newPrompter() *prompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	p := &prompter{line: line, historyFile: filepath.Join(dir, historyFileName)}
	if f, err := os.Open(p.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return p
}

func (p *prompter) Prompt(prompt string) (string, error) { return p.line.Prompt(prompt) }
func (p *prompter) AppendHistory(item string)            { p.line.AppendHistory(item) }

// Close saves history with owner-only permissions and restores the terminal.
func (p *prompter) Close() error {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = p.line.WriteHistory(f)
			f.Close()
		}
	}
	return p.line.Close()
}

func newReplCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Line-based chat without the full-screen widget",
		Long: `Start a line-based chat session.

Commands:
  /clear     clear the conversation and start a new session
  /history   show the conversation so far
  /delete    delete the last message
  /quit      exit (also: exit, quit, Ctrl+D)

Ctrl+C while a reply is streaming cancels it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.close()

			events, unsubscribe := a.engine.Subscribe()
			defer unsubscribe()
			if err := a.engine.Start(); err != nil {
				return err
			}

			p := newPrompter()
			defer p.Close()

			r := &repl{
				eng:      a.engine,
				in:       p,
				out:      cmd.OutOrStdout(),
				errOut:   cmd.ErrOrStderr(),
				events:   events,
				markdown: a.cfg.UI.Markdown,
				logger:   a.logger.Named("repl"),
			}
			// Ctrl+C cancels the current reply only; the session ends on
			// /quit, Ctrl+D, an aborted prompt or SIGTERM.
			ctx, stop := signal.NotifyContext(context.WithoutCancel(cmd.Context()), syscall.SIGTERM)
			defer stop()
			return r.run(ctx)
		},
	}
}

// repl is a line-oriented chat loop.
type repl struct {
	eng      *engine.Engine
	in       lineReader
	out      io.Writer
	errOut   io.Writer
	events   <-chan engine.Event
	markdown bool
	logger   *zap.Logger
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, dimStyle.Render("Type a question, /quit to exit."))
	for {
		drainNotices(r.errOut, r.events)

		input, err := r.in.Prompt(promptStyle.Render("you> "))
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				r.logger.Debug("prompt ended", zap.Error(err))
			}
			fmt.Fprintln(r.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.in.AppendHistory(input)

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}
		if strings.HasPrefix(input, "/") {
			if !r.command(input) {
				return nil
			}
			continue
		}

		if err := r.send(ctx, input); err != nil {
			if errors.Is(err, engine.ErrClosed) {
				return err
			}
			fmt.Fprintf(r.errOut, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// send submits one message. Ctrl+C cancels just this reply.
func (r *repl) send(ctx context.Context, text string) error {
	msgCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := r.eng.Submit(msgCtx, text)
	if err != nil {
		return err
	}
	if !res.Accepted {
		drainNotices(r.errOut, r.events)
		return nil
	}

	awaitReply(msgCtx, r.eng)
	reply, ok := findMessage(r.eng, res.ReplyID)
	if !ok {
		return nil
	}
	fmt.Fprintln(r.out, assistantLabelStyle.Render(model.RoleAssistant.DisplayName()+":"))
	fmt.Fprintln(r.out, renderReply(reply.Text(), r.markdown))
	fmt.Fprintln(r.out)
	return nil
}

// command runs a slash command and reports whether to keep going.
func (r *repl) command(input string) bool {
	name := strings.ToLower(strings.Fields(input)[0])
	switch name {
	case "/quit", "/exit", "/q":
		return false
	case "/clear":
		if err := r.eng.ClearAll(); err != nil {
			fmt.Fprintf(r.errOut, "%s %v\n", errorStyle.Render("[Error]"), err)
			break
		}
		fmt.Fprintln(r.out, infoStyle.Render("Conversation cleared."))
	case "/history":
		printTranscript(r.out, r.eng.Messages())
	case "/delete":
		last, ok := lastMessage(r.eng.Messages())
		if !ok {
			fmt.Fprintln(r.out, dimStyle.Render("Nothing to delete."))
			break
		}
		if _, err := r.eng.DeleteMessage(last.ID); err != nil {
			fmt.Fprintf(r.errOut, "%s %v\n", errorStyle.Render("[Error]"), err)
			break
		}
		fmt.Fprintln(r.out, infoStyle.Render("Deleted last message."))
	case "/help", "/?":
		fmt.Fprintln(r.out, "/clear  /history  /delete  /quit")
	default:
		fmt.Fprintf(r.errOut, "%s unknown command %s (try /help)\n", warningStyle.Render("[Warning]"), name)
	}
	return true
}

func lastMessage(msgs []model.Message) (model.Message, bool) {
	if len(msgs) == 0 {
		return model.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// printTranscript writes msgs as labeled plain text.
func printTranscript(w io.Writer, msgs []model.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No messages yet."))
		return
	}
	for _, m := range msgs {
		label := assistantLabelStyle
		if m.IsUser() {
			label = userLabelStyle
		}
		fmt.Fprintf(w, "%s %s\n", label.Render(m.Role.DisplayName()), dimStyle.Render(m.Timestamp))
		fmt.Fprintln(w, m.Text())
		fmt.Fprintln(w)
	}
}
