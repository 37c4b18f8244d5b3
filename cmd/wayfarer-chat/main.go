// README: Terminal trip-planning chat on one in-memory session; renders the plan panel after updates.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wayfarer/internal/ai"
	"wayfarer/internal/config"
	"wayfarer/internal/conversation"
	"wayfarer/internal/logger"
	"wayfarer/internal/plan"
	"wayfarer/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(cfg.Log.Level, "console"); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	completer, closeCompleter, err := ai.NewCompleter(ctx, ai.Settings{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		BaseURL:   cfg.LLM.BaseURL,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer closeCompleter()

	planner := service.NewTripPlanner(nil, completer, service.WithTimeout(cfg.LLM.Timeout))
	if err := runChat(ctx, os.Stdin, os.Stdout, planner); err != nil {
		logger.Log.Error("chat ended", zap.Error(err))
	}
}

// runChat reads one message per line until EOF, /quit, or ctx is done.
func runChat(ctx context.Context, in io.Reader, out io.Writer, planner *service.TripPlanner) error {
	snap := planner.Snapshot()
	fmt.Fprintf(out, "Assistant: %s\n", snap.Transcript[0].Content)
	printSuggestions(out, snap)
	fmt.Fprintln(out, "Commands: /plan, /clear, /export <file>, /quit")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(out, "You: ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-scanErr
			}
			line = l
		}

		text := strings.TrimSpace(line)
		switch {
		case text == "/quit":
			return nil
		case text == "/plan":
			if err := plan.WriteText(out, planner.Snapshot().Plan); err != nil {
				return err
			}
			continue
		case text == "/clear":
			planner.ClearPlan()
			fmt.Fprintln(out, "Plan cleared.")
			continue
		case text == "/export" || strings.HasPrefix(text, "/export "):
			path := strings.TrimSpace(strings.TrimPrefix(text, "/export"))
			if path == "" {
				fmt.Fprintln(out, "usage: /export <file>")
				continue
			}
			if err := exportTranscript(path, planner.Snapshot(), time.Now()); err != nil {
				fmt.Fprintf(out, "export failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Saved conversation to %s\n", path)
			continue
		}

		ex, err := planner.Submit(ctx, text)
		switch {
		case errors.Is(err, conversation.ErrEmptyInput):
			continue
		case errors.Is(err, service.ErrBusy):
			fmt.Fprintln(out, "Still working on the last message...")
			continue
		case err != nil:
			return err
		}

		fmt.Fprintf(out, "Assistant: %s\n", ex.Reply.Content)
		if ex.PlanUpdated {
			fmt.Fprintln(out)
			if err := plan.WriteText(out, ex.Plan); err != nil {
				return err
			}
		}
	}
}

func printSuggestions(out io.Writer, snap conversation.Snapshot) {
	suggestions := snap.Suggestions()
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(out, "Try one of these:")
	for _, s := range suggestions {
		fmt.Fprintf(out, "  - %s\n", s)
	}
}

type exportFile struct {
	ExportedAt time.Time           `json:"exported_at"`
	Transcript []conversation.Turn `json:"transcript"`
	Plan       *plan.TripPlan      `json:"plan"`
}

// exportTranscript writes snap as indented JSON via a temp file and rename.
func exportTranscript(path string, snap conversation.Snapshot, now time.Time) error {
	payload, err := json.MarshalIndent(exportFile{
		ExportedAt: now.UTC(),
		Transcript: snap.Transcript,
		Plan:       snap.Plan,
	}, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wayfarer-export-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
