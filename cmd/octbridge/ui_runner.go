package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"octbridge/internal/ui"
)

// runWithUI runs work while a progress view follows its events. work must
// not write to stdout.
func runWithUI(title string, files []string, work func(ui.ProgressSink) error) error {
	events := make(chan ui.Event, 256)
	outcome := make(chan error, 1)

	go func() {
		err := work(ui.ChannelSink{Ch: events})
		outcome <- err
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	err := <-outcome
	if uiErr != nil {
		return uiErr
	}
	return err
}
