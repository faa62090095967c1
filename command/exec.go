package command

import (
	"context"
	"strconv"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ikmak/mongo-write-core/description"
	"github.com/ikmak/mongo-write-core/result"
	"github.com/ikmak/mongo-write-core/writeconcern"
)

// RunCommand drives buf's entries over the modern command path: an
// insert/update/delete command document per wire exchange, looping when the
// buffer doesn't fit in one.
//
// If the node's minimum wire version is 0 and the write concern does not
// require acknowledgement, this delegates to RunLegacy immediately rather
// than waiting on a reply that would go unused against a node that only
// speaks the legacy opcodes.
func RunCommand(
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
	if caps.MinWireVersion == description.Unknown {
		return
	}
	if caps.MinWireVersion == 0 && !writeconcern.AckWrite(wc) {
		RunLegacy(ctx, buf, tr, db, coll, wc, hint, caps, offset, res)
		return
	}

	docs := buf.Documents()
	total := len(docs)
	if total == 0 {
		emptyBatchError(res, buf.Kind)
		return
	}

	wcDoc, err := wc.MarshalDocument()
	if err != nil {
		invalidArgError(res, err)
		return
	}

	start := 0
	succeeded := true
	for start < total {
		remaining := docs[start:]

		idx, dst := bsoncore.AppendDocumentStart(nil)
		dst = bsoncore.AppendStringElement(dst, buf.Kind.CommandName(), coll)
		dst = bsoncore.AppendDocumentElement(dst, "writeConcern", wcDoc)
		dst = bsoncore.AppendBooleanElement(dst, "ordered", buf.Ordered)

		n, hasMore, arrBytes := appendBatchArray(dst, buf.Kind.FieldName(), remaining, caps)
		dst = arrBytes

		if n == 0 {
			res.Failed = true
			res.Error = &result.Error{Kind: result.TooLarge, Code: 2, Message: "document too large for the cluster"}
			return
		}

		cmdDoc, err := bsoncore.AppendDocumentEnd(dst, idx)
		if err != nil {
			transportFailure(res, err.Error())
			return
		}

		reply, sendErr := tr.CommandSimple(ctx, db, bsoncore.Document(cmdDoc), hint)
		succeeded = sendErr == nil
		if !succeeded {
			transportFailure(res, sendErr.Error())
		} else {
			grip.Debug(message.Fields{
				"message":    "merged write command reply",
				"collection": coll,
				"kind":       buf.Kind.String(),
				"count":      n,
			})
			res.MergeCommand(buf.Kind, reply, offset)
		}

		offset += int64(n)
		start += n

		if !(hasMore && (succeeded || !buf.Ordered)) {
			break
		}
	}
}

// appendBatchArray appends dst (already positioned after "ordered") with the
// kind's array field, built either as a single bulk copy (fast path, when
// the whole remaining slice fits) or item by item under the size estimator
// (slow path). It returns the number of items appended and whether more
// remain.
func appendBatchArray(dst []byte, field string, remaining []bsoncore.Document, caps description.Node) (int, bool, []byte) {
	sumLen := 0
	for _, d := range remaining {
		sumLen += len(d)
	}

	if !WillOverflow(0, sumLen, len(remaining), caps.MaxBSONObjectSize, caps.MaxWriteBatchSize) {
		aidx, adst := bsoncore.AppendArrayElementStart(dst, field)
		for i, d := range remaining {
			adst = bsoncore.AppendDocumentElement(adst, strconv.Itoa(i), d)
		}
		adst, _ = bsoncore.AppendArrayEnd(adst, aidx)
		return len(remaining), false, adst
	}

	aidx, adst := bsoncore.AppendArrayElementStart(dst, field)
	arrLen := 0
	n := 0
	hasMore := false
	for n < len(remaining) {
		d := remaining[n]
		key := strconv.Itoa(n)
		itemBytes := len(key) + len(d) + 2
		if WillOverflow(arrLen, itemBytes, n, caps.MaxBSONObjectSize, caps.MaxWriteBatchSize) {
			hasMore = true
			break
		}
		adst = bsoncore.AppendDocumentElement(adst, key, d)
		arrLen += itemBytes
		n++
	}
	adst, _ = bsoncore.AppendArrayEnd(adst, aidx)
	return n, hasMore, adst
}
