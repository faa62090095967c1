// Package dispatch selects a node, decides between the command and legacy
// write paths, and drives one Buffer's execution to a finalized result.
package dispatch

import (
	"context"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ikmak/mongo-write-core/command"
	"github.com/ikmak/mongo-write-core/description"
	"github.com/ikmak/mongo-write-core/event"
	"github.com/ikmak/mongo-write-core/result"
	"github.com/ikmak/mongo-write-core/wiremessage"
	"github.com/ikmak/mongo-write-core/writeconcern"
)

// Dispatcher drives Buffer executions against a Transport. The Monitor
// field is optional; when set, its callbacks fire around the top-level
// dispatch decision.
type Dispatcher struct {
	Transport command.Transport
	Monitor   *event.CommandMonitor
}

// New constructs a Dispatcher bound to the given Transport.
func New(tr command.Transport) *Dispatcher {
	return &Dispatcher{Transport: tr}
}

// Write executes buf to completion and returns the finalized result
// document, its terminal success boolean, and a terminal error record if
// one applies.
//
// hint, when non-zero, pins execution to an already-selected node; zero
// means "preselect a node for this operation". offset is the position in
// the caller's overall logical batch that buf's first entry corresponds to.
func (d *Dispatcher) Write(
	ctx context.Context,
	buf *command.Buffer,
	db, coll string,
	wc *writeconcern.WriteConcern,
	hint uint32,
	offset int64,
) (bsoncore.Document, bool, *result.Error) {
	res := &result.Accumulator{}

	if !wc.IsValid() {
		res.Failed = true
		res.Error = &result.Error{Kind: result.InvalidArg, Message: "the write concern is invalid"}
		doc, ok, err := res.Finalize()
		return doc, ok, err
	}

	if hint == 0 {
		hint = d.Transport.Preselect(ctx, wiremessage.OpInsert, wc)
		if hint == 0 {
			res.Failed = true
			doc, ok, err := res.Finalize()
			return doc, ok, err
		}
	}

	caps := d.Transport.NodeCapabilities(ctx, hint)
	if caps.MaxWireVersion == description.Unknown {
		doc, ok, err := res.Finalize()
		return doc, ok, err
	}

	grip.Debug(message.Fields{
		"message":    "dispatching write batch",
		"collection": coll,
		"kind":       buf.Kind.String(),
		"count":      buf.Len(),
		"commands":   caps.SupportsWriteCommands(),
	})

	requestID := wiremessage.NextRequestID()
	d.fireStarted(requestID, db, buf.Kind.CommandName())

	if caps.SupportsWriteCommands() {
		command.RunCommand(ctx, buf, d.Transport, db, coll, wc, hint, caps, offset, res)
	} else {
		command.RunLegacy(ctx, buf, d.Transport, db, coll, wc, hint, caps, offset, res)
	}

	doc, ok, err := res.Finalize()
	if !ok {
		grip.Error(message.Fields{
			"message":    "write batch finished with errors",
			"collection": coll,
			"failed":     res.Failed,
		})
		d.fireFailed(requestID, buf.Kind.CommandName(), err)
	} else {
		d.fireSucceeded(requestID, buf.Kind.CommandName(), doc)
	}
	return doc, ok, err
}

func (d *Dispatcher) fireStarted(requestID int32, db, cmdName string) {
	if d.Monitor == nil || d.Monitor.Started == nil {
		return
	}
	d.Monitor.Started(&event.CommandStartedEvent{
		DatabaseName: db,
		CommandName:  cmdName,
		RequestID:    requestID,
	})
}

func (d *Dispatcher) fireSucceeded(requestID int32, cmdName string, reply bsoncore.Document) {
	if d.Monitor == nil || d.Monitor.Succeeded == nil {
		return
	}
	d.Monitor.Succeeded(&event.CommandSucceededEvent{
		CommandFinishedEvent: event.CommandFinishedEvent{CommandName: cmdName, RequestID: requestID},
		Reply:                reply,
	})
}

func (d *Dispatcher) fireFailed(requestID int32, cmdName string, err *result.Error) {
	if d.Monitor == nil || d.Monitor.Failed == nil {
		return
	}
	d.Monitor.Failed(&event.CommandFailedEvent{
		CommandFinishedEvent: event.CommandFinishedEvent{CommandName: cmdName, RequestID: requestID},
		Failure:              err.Error(),
	})
}
