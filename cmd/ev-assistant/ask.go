package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/ev-assistant/pkg/client"
)

type answerJSON struct {
	SessionID string `json:"sessionId,omitempty"`
	Question  string `json:"question"`
	Intent    string `json:"intent"`
	Reply     string `json:"reply"`
}

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Answer one question and exit",
		Example: `  ev-assistant ask "EVs under 20 lakh"
  ev-assistant ask estimate price for 40 kwh and 300 km
  ev-assistant ask --server http://localhost:8090 "tell me about Tata Nexon"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("question is required")
			}

			var out answerJSON
			if server != "" {
				resp, err := client.New(client.Config{BaseURL: server}).Chat(ctx, "", question)
				if err != nil {
					return fmt.Errorf("ask server: %w", err)
				}
				out = answerJSON{SessionID: resp.SessionID, Question: question, Intent: resp.Intent, Reply: resp.Reply}
			} else {
				app, err := loadApp(ctx)
				if err != nil {
					return err
				}
				defer app.Close()

				reply := app.Engine.Answer(ctx, question)
				out = answerJSON{Question: question, Intent: string(reply.Intent), Reply: reply.Text}
			}

			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			newUI(cmd).Reply(out.Reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "send the question to a running ev-assistant-api at this URL")

	return cmd
}
