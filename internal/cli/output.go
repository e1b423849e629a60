// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/folio-chat/internal/engine"
	"github.com/jeranaias/folio-chat/internal/guard"
	"github.com/jeranaias/folio-chat/internal/model"
)

// JSONResponse is the envelope for --json output.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Command   string      `json:"command"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	Timestamp string      `json:"timestamp"`
}

func writeJSON(w io.Writer, command string, data interface{}, err error) error {
	resp := JSONResponse{
		Success:   err == nil,
		Command:   command,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		msg := err.Error()
		resp.Error = &msg
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// drainNotices prints any queued notices without blocking.
func drainNotices(w io.Writer, events <-chan engine.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == engine.EventNotice {
				printNotice(w, ev.Notice)
			}
		default:
			return
		}
	}
}

func printNotice(w io.Writer, n guard.Notice) {
	if n.IsZero() {
		return
	}
	fmt.Fprintln(w, noticeStyle(n.Level).Render(n.Text))
}

// awaitReply blocks until the in-flight reply finishes. Canceling ctx
// cancels the request.
func awaitReply(ctx context.Context, eng *engine.Engine) {
	done := make(chan struct{})
	go func() {
		eng.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		eng.CancelPending()
		<-done
	}
}

// findMessage returns the message with id from the engine's log.
func findMessage(eng *engine.Engine, id string) (model.Message, bool) {
	for _, m := range eng.Messages() {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// renderReply formats an assistant reply for a terminal, falling back to
// plain text when glamour is unavailable or disabled.
func renderReply(text string, markdown bool) string {
	if !markdown || !IsStdoutTTY() {
		return text
	}
	width := GetTerminalWidth()
	if width > 100 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// messageJSON is the --json form of a message.
type messageJSON struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Pending   bool   `json:"pending"`
}

func toMessageJSON(m model.Message) messageJSON {
	return messageJSON{
		ID:        m.ID,
		Role:      string(m.Role),
		Text:      m.Text(),
		Timestamp: m.Timestamp,
		Pending:   m.Pending,
	}
}
