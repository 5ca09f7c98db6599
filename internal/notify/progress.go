package notify

import "log"

// ProgressNotifier receives per-recipient progress while a batch is
// executing. The platform binding (an OS notification with a cancel
// action in the original app) lives behind this interface.
type ProgressNotifier interface {
	Progress(total, current int, label string)
	Clear()
}

// LogNotifier writes progress to the process log
type LogNotifier struct{}

func (LogNotifier) Progress(total, current int, label string) {
	log.Printf("📨 Organizing %d/%d: %s", current, total, label)
}

func (LogNotifier) Clear() {}

// NopNotifier discards progress; used by tests
type NopNotifier struct{}

func (NopNotifier) Progress(total, current int, label string) {}
func (NopNotifier) Clear()                                    {}
