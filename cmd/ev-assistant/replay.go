package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
)

// replayResult is one answered line of a replay file.
type replayResult struct {
	Line     int    `json:"line"`
	Question string `json:"question"`
	Intent   string `json:"intent"`
	Reply    string `json:"reply"`
}

// newReplayCmd creates the replay subcommand.
func newReplayCmd() *cobra.Command {
	var (
		file    string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Answer every question in a file",
		Long: `Replay answers one question per line of a text file. Blank lines and lines
starting with # are skipped. Answers are printed in file order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open replay file: %w", err)
			}
			defer f.Close()

			questions, err := readQuestions(f)
			if err != nil {
				return err
			}

			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			ui := newUI(cmd)
			progress := ui.NewProgress()
			results := runReplay(ctx, app.Engine, questions, workers, progress)
			if progress != nil {
				progress.Wait()
			}

			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			for _, r := range results {
				ui.Section(fmt.Sprintf("Line %d", r.Line))
				ui.KeyValue("Question", r.Question)
				ui.KeyValue("Intent", r.Intent)
				ui.Reply(r.Reply)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one question per line (required)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 2, "number of concurrent workers")
	cmd.MarkFlagRequired("file")

	return cmd
}

type question struct {
	line int
	text string
}

func readQuestions(r io.Reader) ([]question, error) {
	var out []question
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		out = append(out, question{line: n, text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}
	return out, nil
}

// runReplay answers questions on a fixed pool of workers. Each worker owns
// one progress bar; results keep input order.
func runReplay(ctx context.Context, engine answerer, questions []question, workers int, progress *mpb.Progress) []replayResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(questions) && len(questions) > 0 {
		workers = len(questions)
	}

	results := make([]replayResult, len(questions))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		var share int64
		for i := w; i < len(questions); i += workers {
			share++
		}
		if share == 0 {
			continue
		}
		bar := AddBar(progress, fmt.Sprintf("worker %d", w+1), share)

		wg.Add(1)
		go func(w int, bar *mpb.Bar) {
			defer wg.Done()
			for i := w; i < len(questions); i += workers {
				q := questions[i]
				reply := engine.Answer(ctx, q.text)
				results[i] = replayResult{
					Line:     q.line,
					Question: q.text,
					Intent:   string(reply.Intent),
					Reply:    reply.Text,
				}
				if bar != nil {
					bar.Increment()
				}
			}
		}(w, bar)
	}
	wg.Wait()

	return results
}
