package command_test

import (
	"context"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ikmak/mongo-write-core/description"
	"github.com/ikmak/mongo-write-core/wiremessage"
	"github.com/ikmak/mongo-write-core/writeconcern"
)

// fakeTransport is a Transport test double that replays a queue of replies
// and records every message it was asked to send, without touching a real
// socket.
type fakeTransport struct {
	caps description.Node

	gleReplies     []bsoncore.Document
	commandReplies []bsoncore.Document

	sent     []wiremessage.Message
	commands []bsoncore.Document

	sendFails    bool
	commandErr   error
	preselectHit uint32
}

func (f *fakeTransport) Send(_ context.Context, msg wiremessage.Message, hint uint32, _ *writeconcern.WriteConcern) uint32 {
	if f.sendFails {
		return 0
	}
	f.sent = append(f.sent, msg)
	if hint == 0 {
		return 1
	}
	return hint
}

func (f *fakeTransport) RecvGetLastError(_ context.Context, _ uint32) (bsoncore.Document, error) {
	if len(f.gleReplies) == 0 {
		return bsoncore.Document{5, 0, 0, 0, 0}, nil
	}
	reply := f.gleReplies[0]
	f.gleReplies = f.gleReplies[1:]
	return reply, nil
}

func (f *fakeTransport) CommandSimple(_ context.Context, _ string, cmd bsoncore.Document, _ uint32) (bsoncore.Document, error) {
	f.commands = append(f.commands, cmd)
	if f.commandErr != nil {
		return nil, f.commandErr
	}
	if len(f.commandReplies) == 0 {
		return bsoncore.Document{5, 0, 0, 0, 0}, nil
	}
	reply := f.commandReplies[0]
	f.commandReplies = f.commandReplies[1:]
	return reply, nil
}

func (f *fakeTransport) Preselect(_ context.Context, _ wiremessage.OpCode, _ *writeconcern.WriteConcern) uint32 {
	if f.preselectHit != 0 {
		return f.preselectHit
	}
	return 1
}

func (f *fakeTransport) NodeCapabilities(_ context.Context, _ uint32) description.Node {
	return f.caps
}
