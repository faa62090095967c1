package command

import (
	"context"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ikmak/mongo-write-core/description"
	"github.com/ikmak/mongo-write-core/wiremessage"
	"github.com/ikmak/mongo-write-core/writeconcern"
)

// Transport is the full set of node operations the write-command core
// depends on. Implementations own connection selection, socket I/O, and
// error reporting; the core only reacts to the hint and reply values they
// return. A test double that replays fixed replies can satisfy this
// interface without any real sockets.
type Transport interface {
	// Send transmits a legacy opcode frame and returns the (possibly
	// updated) node hint, or 0 on failure.
	Send(ctx context.Context, msg wiremessage.Message, hint uint32, wc *writeconcern.WriteConcern) uint32

	// RecvGetLastError receives a single getLastError-shaped reply for the
	// node identified by hint.
	RecvGetLastError(ctx context.Context, hint uint32) (bsoncore.Document, error)

	// CommandSimple performs one command round trip against db and returns
	// its reply document.
	CommandSimple(ctx context.Context, db string, cmd bsoncore.Document, hint uint32) (bsoncore.Document, error)

	// Preselect chooses a node suitable for an operation of the given
	// opcode under the given write concern, returning its hint, or 0 on
	// failure.
	Preselect(ctx context.Context, opcode wiremessage.OpCode, wc *writeconcern.WriteConcern) uint32

	// NodeCapabilities reports the capability vector of the node
	// identified by hint. Any field is description.Unknown if the node is
	// invalid or unreachable.
	NodeCapabilities(ctx context.Context, hint uint32) description.Node
}
