// Package event carries the optional observability hooks a Dispatcher can
// fire around a Write call: one CommandStartedEvent before the batch is
// handed to its executor, followed by exactly one of CommandSucceededEvent
// or CommandFailedEvent once the batch finalizes.
package event

import "go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

// CommandStartedEvent is fired once per Write call, immediately before the
// batch is handed to the command or legacy executor.
type CommandStartedEvent struct {
	Command      bsoncore.Document
	DatabaseName string
	CommandName  string
	RequestID    int32
}

// CommandFinishedEvent carries the fields common to success and failure.
type CommandFinishedEvent struct {
	DurationNanos int64
	CommandName   string
	RequestID     int32
}

// CommandSucceededEvent is fired when the finalized batch result reports
// success. Reply is the finalized result document.
type CommandSucceededEvent struct {
	CommandFinishedEvent
	Reply bsoncore.Document
}

// CommandFailedEvent is fired when the finalized batch result does not
// report success: a transport failure, a write error, or a write concern
// error. Failure is the terminal error record's text, empty when there is
// none.
type CommandFailedEvent struct {
	CommandFinishedEvent
	Failure string
}

// CommandMonitor is an optional set of callbacks a Dispatcher invokes around
// each Write call that reaches an executor. Any field may be left nil.
type CommandMonitor struct {
	Started   func(*CommandStartedEvent)
	Succeeded func(*CommandSucceededEvent)
	Failed    func(*CommandFailedEvent)
}
