package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"cbind/internal/pipeline"
	"cbind/internal/ui"
)

type batchOutcome struct {
	results []*pipeline.Result
	err     error
}

// runBatchWithUI runs reqs while a progress view follows their events.
// Quitting the view cancels the runs still in flight.
func runBatchWithUI(ctx context.Context, title string, reqs []*pipeline.Request, jobs int) ([]*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)
	names := make([]string, len(reqs))
	for i, req := range reqs {
		names[i] = req.Name
		req.Progress = pipeline.ChannelSink{Ch: events}
	}

	go func() {
		results, err := pipeline.RunAll(ctx, reqs, jobs)
		outcomeCh <- batchOutcome{results: results, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	cancel()
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
