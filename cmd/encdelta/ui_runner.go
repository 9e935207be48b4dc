package main

import (
	"context"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"encdelta/internal/driver"
	"encdelta/internal/ui"
)

// stepSink tags driver events with the scenario step that produced them. A
// step starts with the generation-level working event of its EmitDifference
// call, and steps run one at a time.
type stepSink struct {
	mu      sync.Mutex
	step    int
	updates chan ui.Update
}

func newStepSink(steps int) *stepSink {
	return &stepSink{updates: make(chan ui.Update, 64*max(steps, 1))}
}

func (s *stepSink) OnEvent(ev driver.Event) {
	s.mu.Lock()
	if ev.Method == "" && ev.Stage == driver.StageGeneration && ev.Status == driver.StatusWorking {
		s.step++
	}
	step := s.step
	s.mu.Unlock()
	s.updates <- ui.Update{Step: step, Event: ev}
}

func runReplayWithUI(ctx context.Context, title string, steps []string, sink *stepSink, run func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		err := run(ctx)
		close(sink.updates)
		done <- err
	}()

	model := ui.NewProgressModel(title, steps, sink.updates)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	for range sink.updates {
	}
	err := <-done
	if uiErr != nil {
		return uiErr
	}
	return err
}
