package wiremessage

import "go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

// DeleteFlag is the int32 bit field carried by an OP_DELETE frame.
type DeleteFlag int32

// SingleRemove, when set, limits the delete to at most one matching
// document. When unset, every matching document is removed.
const SingleRemove DeleteFlag = 1 << 0

// Delete is an OP_DELETE frame: header, a reserved zero int32, full
// collection name, flags, and BSON selector.
type Delete struct {
	Header             Header
	FullCollectionName string
	Flags              DeleteFlag
	Selector           bsoncore.Document
}

// Code implements Message.
func (Delete) Code() OpCode { return OpDelete }
