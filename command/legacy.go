package command

import (
	"context"
	"fmt"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ikmak/mongo-write-core/description"
	"github.com/ikmak/mongo-write-core/result"
	"github.com/ikmak/mongo-write-core/wiremessage"
	"github.com/ikmak/mongo-write-core/writeconcern"
)

// legacyHeaderOverhead approximates the framing bytes an OP_INSERT carries
// beyond its documents: the message header, the flags field, and the
// NUL-terminated full collection name.
func legacyHeaderOverhead(ns string) int {
	const wireHeaderSize = 16
	return wireHeaderSize + 4 /* flags */ + len(ns) + 1
}

// RunLegacy drives buf's entries over the legacy opcode path, dispatching
// by kind.
func RunLegacy(
	ctx context.Context,
	buf *Buffer,
	tr Transport,
	db, coll string,
	wc *writeconcern.WriteConcern,
	hint uint32,
	caps description.Node,
	offset int64,
	res *result.Accumulator,
) {
	switch buf.Kind {
	case result.Delete:
		legacyDelete(ctx, buf, tr, db, coll, wc, hint, offset, res)
	case result.Insert:
		legacyInsert(ctx, buf, tr, db, coll, wc, hint, caps, offset, res)
	case result.Update:
		legacyUpdate(ctx, buf, tr, db, coll, wc, hint, offset, res)
	}
}

func emptyBatchError(res *result.Accumulator, kind result.Kind) {
	res.Failed = true
	res.Error = &result.Error{Kind: result.EmptyBatch, Message: "cannot do an empty " + kind.String()}
}

func invalidArgError(res *result.Accumulator, err error) {
	res.Failed = true
	res.Error = &result.Error{Kind: result.InvalidArg, Message: err.Error()}
}

func transportFailure(res *result.Accumulator, message string) {
	res.Failed = true
	res.Error = &result.Error{Kind: result.TransportFailure, Message: message}
}

func legacyDelete(
	ctx context.Context,
	buf *Buffer,
	tr Transport,
	db, coll string,
	wc *writeconcern.WriteConcern,
	hint uint32,
	offset int64,
	res *result.Accumulator,
) {
	if buf.Len() == 0 {
		emptyBatchError(res, result.Delete)
		return
	}
	ns, err := namespace(db, coll)
	if err != nil {
		invalidArgError(res, err)
		return
	}

	flags := wiremessage.DeleteFlag(0)
	if !buf.Multi {
		flags = wiremessage.SingleRemove
	}

	ack := writeconcern.AckWrite(wc)
	for i := 0; i < buf.Len(); i++ {
		selector, _ := lookupDocument(buf.At(i), "q")

		msg := wiremessage.Delete{
			Header:             wiremessage.Header{RequestID: wiremessage.NextRequestID()},
			FullCollectionName: ns,
			Flags:              flags,
			Selector:           selector,
		}

		newHint := tr.Send(ctx, msg, hint, wc)
		if newHint == 0 {
			transportFailure(res, "send failed for delete")
			return
		}
		hint = newHint

		if !ack {
			continue
		}

		reply, err := tr.RecvGetLastError(ctx, hint)
		if err != nil {
			transportFailure(res, err.Error())
			return
		}
		res.MergeLegacy(result.Delete, reply, offset+int64(i))
	}
}

func legacyUpdate(
	ctx context.Context,
	buf *Buffer,
	tr Transport,
	db, coll string,
	wc *writeconcern.WriteConcern,
	hint uint32,
	offset int64,
	res *result.Accumulator,
) {
	if buf.Len() == 0 {
		emptyBatchError(res, result.Update)
		return
	}

	for i := 0; i < buf.Len(); i++ {
		u, ok := lookupDocument(buf.At(i), "u")
		if !ok {
			res.Failed = true
			res.Error = &result.Error{Kind: result.MalformedUpdate, Message: "update entry missing 'u'"}
			return
		}
		elems, err := u.Elements()
		if err != nil || len(elems) == 0 {
			continue
		}
		if len(elems[0].Key()) > 0 && elems[0].Key()[0] == '$' {
			continue
		}
		if err := validateReplacementDocument(u); err != nil {
			res.Failed = true
			res.Error = &result.Error{Kind: result.MalformedUpdate, Message: err.Error()}
			return
		}
	}

	ns, err := namespace(db, coll)
	if err != nil {
		invalidArgError(res, err)
		return
	}

	ack := writeconcern.AckWrite(wc)
	for i := 0; i < buf.Len(); i++ {
		entry := buf.At(i)
		selector, _ := lookupDocument(entry, "q")
		update, _ := lookupDocument(entry, "u")
		multi := lookupBool(entry, "multi")
		isUpsert := lookupBool(entry, "upsert")

		var flags wiremessage.UpdateFlag
		if multi {
			flags |= wiremessage.MultiUpdate
		}
		if isUpsert {
			flags |= wiremessage.Upsert
		}

		msg := wiremessage.Update{
			Header:             wiremessage.Header{RequestID: wiremessage.NextRequestID()},
			FullCollectionName: ns,
			Flags:              flags,
			Selector:           selector,
			Update:             update,
		}

		newHint := tr.Send(ctx, msg, hint, wc)
		if newHint == 0 {
			transportFailure(res, "send failed for update")
			return
		}
		hint = newHint

		if !ack {
			continue
		}

		reply, err := tr.RecvGetLastError(ctx, hint)
		if err != nil {
			transportFailure(res, err.Error())
			return
		}

		reply = backfillUpsertID(reply, selector, update, isUpsert)

		res.MergeLegacy(result.Update, reply, offset+int64(i))
	}
}

// backfillUpsertID restores pre-2.6 behavior: servers that predate the
// "upserted" reply field still performed the upsert, signaled only by
// n == 1 with updatedExisting == false. In that case we synthesize the
// "upserted" field ourselves, reading the new document's _id from the
// update document, falling back to the selector.
func backfillUpsertID(reply, selector, update bsoncore.Document, isUpsert bool) bsoncore.Document {
	if !isUpsert || lookupInt32(reply, "n") <= 0 {
		return reply
	}
	if _, hasUpserted := lookupValue(reply, "upserted"); hasUpserted {
		return reply
	}
	ue, hasUE := lookupValue(reply, "updatedExisting")
	if !hasUE {
		return reply
	}
	if b, ok := ue.BooleanOK(); !ok || b {
		return reply
	}

	id, ok := lookupValue(update, "_id")
	if !ok {
		id, ok = lookupValue(selector, "_id")
		if !ok {
			return reply
		}
	}
	return withAppendedValue(reply, "upserted", id)
}

func legacyInsert(
	ctx context.Context,
	buf *Buffer,
	tr Transport,
	db, coll string,
	wc *writeconcern.WriteConcern,
	hint uint32,
	caps description.Node,
	offset int64,
	res *result.Accumulator,
) {
	if buf.Len() == 0 {
		emptyBatchError(res, result.Insert)
		return
	}
	ns, err := namespace(db, coll)
	if err != nil {
		invalidArgError(res, err)
		return
	}

	docs := buf.Documents()
	n := len(docs)
	index := 0
	currentOffset := offset
	ack := writeconcern.AckWrite(wc)

	var flags wiremessage.InsertFlag
	if !buf.Ordered {
		flags = wiremessage.ContinueOnError
	}

	stop := false
	for index < n && !stop {
		var batch []bsoncore.Document
		size := legacyHeaderOverhead(ns)

		for index < n {
			doc := docs[index]
			docLen := len(doc)

			if int32(docLen) > caps.MaxBSONObjectSize {
				errDoc := tooLargeErrorDoc(docLen, caps.MaxBSONObjectSize)
				res.MergeLegacy(result.Insert, errDoc, offset+int64(index))
				index++
				if buf.Ordered {
					// Send the batch accumulated so far, if any, then stop.
					stop = true
					break
				}
				continue
			}

			if len(batch) > 0 && size+docLen > int(caps.MaxMessageSizeBytes) {
				break
			}

			batch = append(batch, doc)
			size += docLen
			index++

			if !buf.AllowBulk {
				break
			}
		}

		if len(batch) == 0 {
			continue
		}

		msg := wiremessage.Insert{
			Header:             wiremessage.Header{RequestID: wiremessage.NextRequestID()},
			Flags:              flags,
			FullCollectionName: ns,
			Documents:          batch,
		}

		newHint := tr.Send(ctx, msg, hint, wc)
		if newHint == 0 {
			transportFailure(res, "send failed for insert")
			return
		}
		hint = newHint

		grip.Debug(message.Fields{
			"message":    "sent legacy insert batch",
			"collection": coll,
			"count":      len(batch),
		})

		if ack {
			reply, err := tr.RecvGetLastError(ctx, hint)
			if err != nil {
				transportFailure(res, err.Error())
				return
			}
			if _, hasErr := lookupValue(reply, "err"); !hasErr && lookupInt32(reply, "n") == 0 {
				reply = withInt32Field(reply, "n", int32(len(batch)))
			}
			res.MergeLegacy(result.Insert, reply, currentOffset)
		}

		currentOffset = offset + int64(index)
	}
}

func tooLargeErrorDoc(docLen int, maxBSON int32) bsoncore.Document {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendStringElement(dst, "err", fmt.Sprintf(
		"document too large, size %d exceeds maximum %d", docLen, maxBSON))
	dst = bsoncore.AppendInt32Element(dst, "code", 2)
	out, _ := bsoncore.AppendDocumentEnd(dst, idx)
	return bsoncore.Document(out)
}
