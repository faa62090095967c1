package wiremessage

import "go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

// InsertFlag is the int32 bit field carried by an OP_INSERT frame.
type InsertFlag int32

// ContinueOnError is set on an OP_INSERT batch sent for an unordered insert
// buffer, so the server attempts every document in the batch even after one
// fails.
const ContinueOnError InsertFlag = 1 << 0

// Insert is an OP_INSERT frame: header, flags, full collection name, and one
// or more BSON documents concatenated back to back.
type Insert struct {
	Header             Header
	Flags              InsertFlag
	FullCollectionName string
	Documents          []bsoncore.Document
}

// Code implements Message.
func (Insert) Code() OpCode { return OpInsert }
