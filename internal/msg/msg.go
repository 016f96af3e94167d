// Package msg defines the message-passing boundary between the worker and
// any presentation layer: commands flow in, status events flow out. The two
// queues are the only interface a presentation layer may use.
package msg

import "backupd/internal/analyzer"

// Command is a request sent from the presentation layer to the worker.
type Command interface {
	isCommand()
}

// RunNow forces a backup to be treated as due regardless of its schedule.
type RunNow struct {
	Config string
}

// Quit asks the worker to stop. Any in-flight run finishes first; no new
// runs are started.
type Quit struct{}

func (RunNow) isCommand() {}
func (Quit) isCommand()   {}

// Event is a status notification sent from the worker to the presentation
// layer. Events are emitted in transition order: Started always precedes its
// matching Succeeded or Failed, and ReportReady follows the terminal event.
type Event interface {
	isEvent()
}

// Started signals that a backup run has begun.
type Started struct {
	Config string
}

// Succeeded signals that a backup run finished with exit status 0.
type Succeeded struct {
	Config string
}

// Failed signals that a backup run could not be started or exited nonzero.
// Summary is always non-empty.
type Failed struct {
	Config  string
	Summary string
}

// ReportReady carries the slow-path report generated after a run.
type ReportReady struct {
	Config string
	Report *analyzer.Report
	Path   string
}

// Terminated is the final event emitted before the worker loop exits.
type Terminated struct{}

func (Started) isEvent()     {}
func (Succeeded) isEvent()   {}
func (Failed) isEvent()      {}
func (ReportReady) isEvent() {}
func (Terminated) isEvent()  {}
