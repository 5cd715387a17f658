package ui

import "time"

// Stage describes where a script is in a run.
type Stage string

const (
	// StageRead is reading the script file.
	StageRead Stage = "read"
	// StageLoad is sending workspace variables.
	StageLoad Stage = "load"
	// StageEval is evaluating the script.
	StageEval Stage = "eval"
	// StageCollect is reading results back.
	StageCollect Stage = "collect"
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for a script (or for the whole run when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) OnEvent(Event) {}
