package wiremessage

import "go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

// UpdateFlag is the int32 bit field carried by an OP_UPDATE frame.
type UpdateFlag int32

const (
	Upsert      UpdateFlag = 1 << 0
	MultiUpdate UpdateFlag = 1 << 1
)

// Update is an OP_UPDATE frame: header, a reserved zero int32, full
// collection name, flags, BSON selector, and BSON update document.
type Update struct {
	Header             Header
	FullCollectionName string
	Flags              UpdateFlag
	Selector           bsoncore.Document
	Update             bsoncore.Document
}

// Code implements Message.
func (Update) Code() OpCode { return OpUpdate }
