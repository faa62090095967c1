package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ikmak/mongo-write-core/command"
	"github.com/ikmak/mongo-write-core/description"
	"github.com/ikmak/mongo-write-core/result"
	"github.com/ikmak/mongo-write-core/writeconcern"
)

func commandReply(n int32) bsoncore.Document {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendInt32Element(dst, "n", n)
	dst = bsoncore.AppendInt32Element(dst, "ok", 1)
	out, _ := bsoncore.AppendDocumentEnd(dst, idx)
	return bsoncore.Document(out)
}

func writeCommandCaps() description.Node {
	return description.Node{
		MinWireVersion:      2,
		MaxWireVersion:      6,
		MaxBSONObjectSize:   16 * 1024 * 1024,
		MaxMessageSizeBytes: 48 * 1024 * 1024,
		MaxWriteBatchSize:   1000,
	}
}

func TestRunCommand_SingleBatchInsert(t *testing.T) {
	t.Parallel()

	doc := buildDoc(t, func(dst []byte) []byte {
		return bsoncore.AppendStringElement(dst, "name", "ember")
	})
	buf, err := command.NewInsert(true, true, doc)
	require.NoError(t, err)

	tr := &fakeTransport{
		caps:           writeCommandCaps(),
		commandReplies: []bsoncore.Document{commandReply(1)},
	}

	res := &result.Accumulator{}
	command.RunCommand(context.Background(), buf, tr, "db", "coll", nil, 1, tr.caps, 0, res)

	require.False(t, res.Failed)
	require.Equal(t, int64(1), res.NInserted)
	require.Len(t, tr.commands, 1)

	cmdName, err := tr.commands[0].LookupErr("insert")
	require.NoError(t, err)
	name, ok := cmdName.StringValueOK()
	require.True(t, ok)
	require.Equal(t, "coll", name)
}

func TestRunCommand_SplitsAcrossMaxWriteBatchSize(t *testing.T) {
	t.Parallel()

	docs := make([]bsoncore.Document, 5)
	for i := range docs {
		docs[i] = buildDoc(t, func(dst []byte) []byte {
			return bsoncore.AppendInt32Element(dst, "x", int32(i))
		})
	}
	buf, err := command.NewInsert(true, true, docs...)
	require.NoError(t, err)

	caps := writeCommandCaps()
	caps.MaxWriteBatchSize = 2

	tr := &fakeTransport{
		caps:           caps,
		commandReplies: []bsoncore.Document{commandReply(2), commandReply(2), commandReply(1)},
	}

	res := &result.Accumulator{}
	command.RunCommand(context.Background(), buf, tr, "db", "coll", nil, 1, caps, 0, res)

	require.False(t, res.Failed)
	require.Equal(t, int64(5), res.NInserted)
	require.Len(t, tr.commands, 3)
}

func TestRunCommand_OrderedStopsAfterTransportFailure(t *testing.T) {
	t.Parallel()

	docs := make([]bsoncore.Document, 3)
	for i := range docs {
		docs[i] = buildDoc(t, func(dst []byte) []byte {
			return bsoncore.AppendInt32Element(dst, "x", int32(i))
		})
	}
	buf, err := command.NewInsert(true, true, docs...)
	require.NoError(t, err)

	caps := writeCommandCaps()
	caps.MaxWriteBatchSize = 1

	tr := &fakeTransport{caps: caps, commandErr: errors.New("connection reset")}

	res := &result.Accumulator{}
	command.RunCommand(context.Background(), buf, tr, "db", "coll", nil, 1, caps, 0, res)

	require.True(t, res.Failed)
	require.Equal(t, result.TransportFailure, res.Error.Kind)
	require.Len(t, tr.commands, 1)
}

func TestRunCommand_DelegatesToLegacyWhenUnacknowledgedOnOldNode(t *testing.T) {
	t.Parallel()

	selector := buildDoc(t, func(dst []byte) []byte {
		return bsoncore.AppendInt32Element(dst, "x", 1)
	})
	buf, err := command.NewDelete(selector, true, true)
	require.NoError(t, err)

	caps := description.Node{
		MinWireVersion:      0,
		MaxWireVersion:      0,
		MaxBSONObjectSize:   16 * 1024 * 1024,
		MaxMessageSizeBytes: 48 * 1024 * 1024,
		MaxWriteBatchSize:   1000,
	}

	w0 := writeconcern.New(writeconcern.W(0))
	tr := &fakeTransport{caps: caps}

	res := &result.Accumulator{}
	command.RunCommand(context.Background(), buf, tr, "db", "coll", w0, 1, caps, 0, res)

	require.False(t, res.Failed)
	require.Empty(t, tr.commands)
	require.Len(t, tr.sent, 1)
}

func TestRunCommand_UnknownCapabilitiesNoOps(t *testing.T) {
	t.Parallel()

	buf, err := command.NewDelete(buildDoc(t, func(dst []byte) []byte {
		return bsoncore.AppendInt32Element(dst, "x", 1)
	}), false, true)
	require.NoError(t, err)

	tr := &fakeTransport{caps: description.Node{MinWireVersion: description.Unknown}}
	res := &result.Accumulator{}
	command.RunCommand(context.Background(), buf, tr, "db", "coll", nil, 1, tr.caps, 0, res)

	require.False(t, res.Failed)
	require.Empty(t, tr.commands)
	require.Empty(t, tr.sent)
}
