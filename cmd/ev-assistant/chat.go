package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/ev-assistant/internal/assistant"
	"github.com/spherical-ai/ev-assistant/internal/session"
)

// answerer is the part of the engine the chat loop needs.
type answerer interface {
	Answer(ctx context.Context, text string) assistant.Reply
}

// newChatCmd creates the chat subcommand.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Chat answers one question per line until you type quit, exit or q.
Type history to print the transcript so far.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			ui := newUI(cmd)
			if !app.Model.Available() {
				ui.Warning("Price model not loaded: %s", app.Model.Reason())
			}
			ui.Info("Loaded %d EVs. Ask about prices, budgets, recommendations or a model.", app.Table.Len())

			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), ui, app.Engine, app.Sessions)
		},
	}
}

// runChat reads questions from in until EOF or a quit command and records
// every exchange in a fresh session.
func runChat(ctx context.Context, in io.Reader, out io.Writer, ui *UI, engine answerer, store *session.Store) error {
	id := store.Create()
	defer store.Delete(id)

	scanner := bufio.NewScanner(in)
	for {
		if !outputJSON {
			fmt.Fprint(out, "You: ")
		}
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "quit", "exit", "q":
			return finishChat(out, store, id)
		case "history":
			if err := printHistory(out, ui, store, id); err != nil {
				return err
			}
			continue
		}

		spin := ui.NewSpinner("Thinking...")
		spin.Start()
		reply := engine.Answer(ctx, question)
		spin.Stop()

		if err := store.Exchange(id, question, reply.Text); err != nil {
			return fmt.Errorf("record exchange: %w", err)
		}
		ui.Reply(reply.Text)
		if !outputJSON {
			fmt.Fprintln(out)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return finishChat(out, store, id)
}

func finishChat(out io.Writer, store *session.Store, id string) error {
	if !outputJSON {
		return nil
	}
	entries, err := store.Transcript(id)
	if err != nil {
		return err
	}
	return writeJSON(out, entries)
}

func printHistory(out io.Writer, ui *UI, store *session.Store, id string) error {
	entries, err := store.Transcript(id)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(out, entries)
	}
	if len(entries) == 0 {
		ui.Info("No messages yet.")
		return nil
	}

	ui.Section("History")
	for _, e := range entries {
		name := "You"
		if e.Role == session.RoleAssistant {
			name = "Assistant"
		}
		fmt.Fprintf(out, "%s: %s\n", name, e.Text)
	}
	fmt.Fprintln(out)
	return nil
}

