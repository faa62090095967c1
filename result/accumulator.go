package result

import (
	"strconv"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// Accumulator aggregates replies from one or more wire exchanges belonging
// to the same logical write batch into a single finalized result document.
// It is zero-initialized by the caller, fed via MergeCommand/MergeLegacy,
// and finalized exactly once via Finalize (Finalize itself is idempotent).
//
// An Accumulator owns its internal BSON arrays; it keeps no references into
// transport-owned reply buffers beyond the body of a single merge call.
type Accumulator struct {
	NInserted int64
	NMatched  int64
	NModified int64
	NRemoved  int64
	NUpserted int64

	Upserted    []bsoncore.Document
	WriteErrors []bsoncore.Document

	WriteConcernError bsoncore.Document

	Failed        bool
	OmitNModified bool

	Error *Error
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func lookupInt32(doc bsoncore.Document, key string) (int32, bool) {
	v, err := doc.LookupErr(key)
	if err != nil {
		return 0, false
	}
	return v.AsInt32OK()
}

func lookupString(doc bsoncore.Document, key string) (string, bool) {
	v, err := doc.LookupErr(key)
	if err != nil {
		return "", false
	}
	return v.StringValueOK()
}

// appendUpsertDoc builds a {index, _id} record.
func appendUpsertDoc(index int64, id bsoncore.Value) bsoncore.Document {
	didx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendInt64Element(dst, "index", index)
	dst = bsoncore.AppendValueElement(dst, "_id", id)
	dst, _ = bsoncore.AppendDocumentEnd(dst, didx)
	return bsoncore.Document(dst)
}

// rewriteIndex copies doc, replacing its "index" field with index+offset and
// preserving every other field verbatim, in order.
func rewriteIndex(doc bsoncore.Document, offset int64) (bsoncore.Document, error) {
	elems, err := doc.Elements()
	if err != nil {
		return nil, err
	}
	didx, dst := bsoncore.AppendDocumentStart(nil)
	for _, e := range elems {
		if e.Key() == "index" {
			v, _ := e.Value().AsInt64OK()
			dst = bsoncore.AppendInt64Element(dst, "index", v+offset)
			continue
		}
		dst = bsoncore.AppendValueElement(dst, e.Key(), e.Value())
	}
	out, err := bsoncore.AppendDocumentEnd(dst, didx)
	if err != nil {
		return nil, err
	}
	return bsoncore.Document(out), nil
}

// mergeWriteErrorsArray rewrites and appends every document in arr into
// a.WriteErrors, offsetting each "index" field. Any non-empty array marks
// the accumulator failed.
func (a *Accumulator) mergeWriteErrorsArray(arr bsoncore.Array, offset int64) {
	vals, err := arr.Values()
	if err != nil {
		return
	}
	for _, v := range vals {
		doc, ok := v.DocumentOK()
		if !ok {
			continue
		}
		rewritten, err := rewriteIndex(doc, offset)
		if err != nil {
			continue
		}
		a.WriteErrors = append(a.WriteErrors, rewritten)
		a.Failed = true
	}
}

// mergeWriteConcernError stores the most recently merged writeConcernError
// document; last write wins.
func (a *Accumulator) mergeWriteConcernError(doc bsoncore.Document) {
	if len(doc) == 0 {
		return
	}
	a.WriteConcernError = doc
}

// MergeCommand merges a single command-path reply (from the insert/update/
// delete commands) into the accumulator. offset is the number of logical
// operations in the user's original batch that preceded this sub-batch.
func (a *Accumulator) MergeCommand(kind Kind, reply bsoncore.Document, offset int64) {
	n, _ := lookupInt32(reply, "n")

	if wev, err := reply.LookupErr("writeErrors"); err == nil {
		if arr, ok := wev.ArrayOK(); ok {
			a.mergeWriteErrorsArray(arr, offset)
		}
	}

	switch kind {
	case Insert:
		a.NInserted += int64(n)
	case Delete:
		a.NRemoved += int64(n)
	case Update:
		a.mergeCommandUpdateCounts(reply, int64(n), offset)
	}

	if wce, err := reply.LookupErr("writeConcernError"); err == nil {
		if doc, ok := wce.DocumentOK(); ok {
			a.mergeWriteConcernError(doc)
		}
	}
}

func (a *Accumulator) mergeCommandUpdateCounts(reply bsoncore.Document, n, offset int64) {
	var u int64
	if uv, err := reply.LookupErr("upserted"); err == nil {
		if arr, ok := uv.ArrayOK(); ok {
			vals, _ := arr.Values()
			for _, v := range vals {
				doc, ok := v.DocumentOK()
				if !ok {
					continue
				}
				idxVal, err := doc.LookupErr("index")
				if err != nil {
					continue
				}
				idx, _ := idxVal.AsInt64OK()
				idVal, err := doc.LookupErr("_id")
				if err != nil {
					continue
				}
				a.Upserted = append(a.Upserted, appendUpsertDoc(offset+idx, idVal))
				u++
			}
		}
		a.NUpserted += u
		a.NMatched += max64(0, n-u)
	} else {
		a.NMatched += n
	}

	if mv, err := reply.LookupErr("nModified"); err == nil {
		if m, ok := mv.AsInt64OK(); ok {
			a.NModified += m
			return
		}
	}
	a.OmitNModified = true
}

// MergeLegacy merges a single getLastError-shaped legacy reply into the
// accumulator. Legacy replies never carry a usable nModified, so
// OmitNModified is always set by this call.
func (a *Accumulator) MergeLegacy(kind Kind, reply bsoncore.Document, offset int64) {
	n, _ := lookupInt32(reply, "n")
	errmsg, hasErr := lookupString(reply, "err")
	code, hasCode := lookupInt32(reply, "code")

	if hasErr && hasCode {
		a.Failed = true
		didx, dst := bsoncore.AppendDocumentStart(nil)
		dst = bsoncore.AppendInt64Element(dst, "index", 0)
		dst = bsoncore.AppendInt32Element(dst, "code", code)
		dst = bsoncore.AppendStringElement(dst, "errmsg", errmsg)
		errDoc, _ := bsoncore.AppendDocumentEnd(dst, didx)
		rewritten, rerr := rewriteIndex(bsoncore.Document(errDoc), offset)
		if rerr == nil {
			a.WriteErrors = append(a.WriteErrors, rewritten)
		}
	}

	switch kind {
	case Insert:
		a.NInserted += int64(n)
	case Delete:
		a.NRemoved += int64(n)
	case Update:
		a.mergeLegacyUpdateCounts(reply, int64(n), offset)
	}

	a.OmitNModified = true
}

func (a *Accumulator) mergeLegacyUpdateCounts(reply bsoncore.Document, n, offset int64) {
	if uv, err := reply.LookupErr("upserted"); err == nil {
		if arr, ok := uv.ArrayOK(); ok {
			vals, _ := arr.Values()
			for i, v := range vals {
				doc, ok := v.DocumentOK()
				if !ok {
					continue
				}
				idVal, err := doc.LookupErr("_id")
				if err != nil {
					continue
				}
				a.Upserted = append(a.Upserted, appendUpsertDoc(offset+int64(i), idVal))
			}
		} else {
			a.Upserted = append(a.Upserted, appendUpsertDoc(offset, uv))
		}
		a.NUpserted += n
		return
	}

	if n == 1 {
		if ue, err := reply.LookupErr("updatedExisting"); err == nil {
			if b, ok := ue.BooleanOK(); ok && !b {
				a.NUpserted += n
				return
			}
		}
	}
	a.NMatched += n
}

func appendDocArray(dst []byte, key string, docs []bsoncore.Document) []byte {
	aidx, dst := bsoncore.AppendArrayElementStart(dst, key)
	for i, d := range docs {
		dst = bsoncore.AppendDocumentElement(dst, strconv.Itoa(i), d)
	}
	dst, _ = bsoncore.AppendArrayEnd(dst, aidx)
	return dst
}

func extractErrMsgCode(doc bsoncore.Document) (string, int32, bool) {
	msg, hasMsg := lookupString(doc, "errmsg")
	code, _ := lookupInt32(doc, "code")
	if !hasMsg {
		return "", 0, false
	}
	return msg, code, true
}

// Finalize emits the accumulator's counters and arrays as a result document.
// It is idempotent: it only reads accumulator state, so calling it twice
// produces byte-identical documents and the same terminal boolean.
//
// The returned boolean is true iff the accumulator was never marked failed
// and both WriteConcernError and WriteErrors are empty.
func (a *Accumulator) Finalize() (bsoncore.Document, bool, *Error) {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendInt32Element(dst, "nInserted", int32(a.NInserted))
	dst = bsoncore.AppendInt32Element(dst, "nMatched", int32(a.NMatched))
	if !a.OmitNModified {
		dst = bsoncore.AppendInt32Element(dst, "nModified", int32(a.NModified))
	}
	dst = bsoncore.AppendInt32Element(dst, "nRemoved", int32(a.NRemoved))
	dst = bsoncore.AppendInt32Element(dst, "nUpserted", int32(a.NUpserted))
	if len(a.Upserted) > 0 {
		dst = appendDocArray(dst, "upserted", a.Upserted)
	}
	dst = appendDocArray(dst, "writeErrors", a.WriteErrors)
	if len(a.WriteConcernError) > 0 {
		dst = bsoncore.AppendDocumentElement(dst, "writeConcernError", a.WriteConcernError)
	}
	doc, _ := bsoncore.AppendDocumentEnd(dst, idx)

	ok := !a.Failed && len(a.WriteConcernError) == 0 && len(a.WriteErrors) == 0

	outErr := a.Error
	if outErr == nil && len(a.WriteErrors) > 0 {
		if msg, code, found := extractErrMsgCode(a.WriteErrors[0]); found {
			outErr = &Error{Kind: ServerWriteError, Code: code, Message: msg}
		}
	}

	return bsoncore.Document(doc), ok, outErr
}
