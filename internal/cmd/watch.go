package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	adapterchannel "github.com/renato0307/sessiond/internal/adapters/channel"
	"github.com/renato0307/sessiond/internal/client"
	"github.com/renato0307/sessiond/internal/config"
	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/theme"
)

// WatchCmd follows one session over the channel
type WatchCmd struct {
	Addr  string `help:"Server address" env:"SESSIOND_LISTEN_ADDR"`
	Codec string `help:"Frame encoding" enum:"json,cbor" default:"json"`
	ID    string `arg:"" help:"ID of the session to watch"`
	Send  string `help:"Send this message once subscribed, then exit when the run ends"`
}

// Run executes the watch command until interrupted
func (w *WatchCmd) Run(cli *CLI) error {
	addr := w.Addr
	if addr == "" {
		addr = cli.Settings().ListenAddr
	}
	if addr == "" {
		addr = config.DefaultListenAddr
	}
	codec := adapterchannel.JSONCodec
	if w.Codec == "cbor" {
		codec = adapterchannel.CBORCodec
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := adapterchannel.Dial(ctx, "ws://"+addr+"/ws", codec)
	if err != nil {
		return err
	}
	defer conn.Close()

	printer := newTranscriptPrinter(os.Stdout)
	finished := make(chan struct{})
	var (
		sent     bool
		sawWork  bool
		doneOnce bool
	)

	var sub *client.Subscription
	sub = client.NewSubscription(w.ID, conn.Events(),
		client.OnChange(func(view client.SessionView, ev domain.Event) {
			printer.print(view, ev)

			if w.Send == "" {
				return
			}
			if !sent && view.LoadingState == client.LoadingStateLoaded {
				sent = true
				sub.AddOptimisticUserMessage(w.Send)
				if err := conn.Send(domain.Command{Type: domain.CommandSendMessage, SessionID: w.ID, Text: w.Send}); err != nil {
					logging.Logger.Warn("Failed to send message", "error", err)
				}
				return
			}
			if view.State == domain.StateWorking {
				sawWork = true
			}
			// An error event covers a send rejected before any run started
			runEnded := sawWork && view.State != domain.StateWorking
			if sent && !doneOnce && (runEnded || ev.Type == domain.EventError) {
				doneOnce = true
				close(finished)
			}
		}),
	)
	sub.Start()
	defer sub.Stop()

	if err := conn.Subscribe(w.ID); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-finished:
	case <-sub.Done():
		return fmt.Errorf("connection closed")
	}

	if view := sub.View(); view.State == domain.StateError {
		return fmt.Errorf("session failed: %s", view.Error)
	}
	return nil
}

// transcriptPrinter writes the parts of each message that have not been
// printed yet. Snapshots replace content, so a snapshot that does not
// extend the printed text is reprinted in full.
type transcriptPrinter struct {
	out     io.Writer
	printed map[string]string
	open    string
}

func newTranscriptPrinter(out io.Writer) *transcriptPrinter {
	return &transcriptPrinter{out: out, printed: make(map[string]string)}
}

func (p *transcriptPrinter) print(view client.SessionView, ev domain.Event) {
	switch payload := ev.Payload.(type) {
	case domain.SubscribeSuccessPayload:
		fmt.Fprintf(p.out, "%s %s\n", theme.HeaderStyle.Render(view.SessionID), theme.RenderState(view.State))
		for _, msg := range payload.Messages {
			p.message(msg)
		}
	case domain.StreamOutputPayload:
		p.message(payload.Message)
	case domain.MessageCompletePayload:
		p.closeLine()
		if payload.Usage != nil {
			fmt.Fprintln(p.out, theme.MutedStyle.Render(fmt.Sprintf("  [%d tokens]", payload.Usage.Total())))
		}
	case domain.SessionUpdatedPayload:
		p.closeLine()
		line := theme.RenderState(payload.State)
		if view.Error != "" {
			line += " " + view.Error
		}
		fmt.Fprintln(p.out, theme.LabelStyle.Render("state: ")+line)
	case domain.ErrorPayload:
		p.closeLine()
		fmt.Fprintln(p.out, theme.SystemStyle.Render("error: ")+payload.Message)
	}
}

func (p *transcriptPrinter) message(msg domain.UnifiedMessage) {
	text := messageText(msg)
	prev, seen := p.printed[msg.ID]
	p.printed[msg.ID] = text

	if seen && p.open == msg.ID && strings.HasPrefix(text, prev) {
		fmt.Fprint(p.out, text[len(prev):])
		return
	}
	p.closeLine()
	fmt.Fprint(p.out, theme.RoleStyle(msg.Role).Render(msg.Role+": ")+text)
	p.open = msg.ID
}

func (p *transcriptPrinter) closeLine() {
	if p.open != "" {
		fmt.Fprintln(p.out)
		p.open = ""
	}
}

// printMessage prints a stored message on one line
func printMessage(msg domain.UnifiedMessage) {
	fmt.Println(theme.RoleStyle(msg.Role).Render(msg.Role+": ") + messageText(msg))
}

// messageText joins the text blocks of a message and names the other blocks
func messageText(msg domain.UnifiedMessage) string {
	parts := make([]string, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case domain.BlockText:
			parts = append(parts, block.Text)
		case domain.BlockToolUse:
			parts = append(parts, "["+block.Name+"]")
		case domain.BlockThinking:
			// not shown
		default:
			parts = append(parts, "["+block.Type+"]")
		}
	}
	return strings.Join(parts, " ")
}
