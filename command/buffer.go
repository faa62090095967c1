// Package command implements the write-command core: the Command Buffer,
// the Size Estimator, and the Legacy and Command executors that drive a
// Transport to carry out one insert/update/delete batch.
package command

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ikmak/mongo-write-core/result"
)

// ErrDocumentTooSmall is returned when a document handed to Buffer is
// shorter than the smallest legal BSON document (5 bytes: an int32 length
// and a trailing null byte).
var ErrDocumentTooSmall = errors.New("document is shorter than an empty BSON document")

// Buffer accumulates one logical operation batch: a sequence of insert
// documents, update specs, or delete specs, all of the same Kind, keyed by
// their zero-based position as stringified integers.
//
// A Buffer never mixes entries of different kinds; its key sequence is
// always a dense prefix of the non-negative integers.
type Buffer struct {
	Kind      result.Kind
	Ordered   bool
	AllowBulk bool // insert only; ignored for Update and Delete.
	Multi     bool // delete only; applies to every selector in the buffer.

	docs []bsoncore.Document
}

// NewInsert allocates an insert buffer and appends its first documents, if
// any.
func NewInsert(ordered, allowBulk bool, docs ...bsoncore.Document) (*Buffer, error) {
	b := &Buffer{Kind: result.Insert, Ordered: ordered, AllowBulk: allowBulk}
	if len(docs) == 0 {
		return b, nil
	}
	if err := b.AppendInsert(docs...); err != nil {
		return nil, err
	}
	return b, nil
}

// NewUpdate allocates an update buffer and appends its first entry.
func NewUpdate(selector, update bsoncore.Document, upsert, multi, ordered bool) (*Buffer, error) {
	b := &Buffer{Kind: result.Update, Ordered: ordered}
	if err := b.AppendUpdate(selector, update, upsert, multi); err != nil {
		return nil, err
	}
	return b, nil
}

// NewDelete allocates a delete buffer and appends its first selector.
func NewDelete(selector bsoncore.Document, multi, ordered bool) (*Buffer, error) {
	b := &Buffer{Kind: result.Delete, Ordered: ordered, Multi: multi}
	if err := b.AppendDelete(selector); err != nil {
		return nil, err
	}
	return b, nil
}

// Len returns the number of entries currently buffered.
func (b *Buffer) Len() int { return len(b.docs) }

// At returns the entry at the given zero-based position.
func (b *Buffer) At(i int) bsoncore.Document { return b.docs[i] }

// Documents returns the buffered entries in order. The returned slice must
// not be mutated.
func (b *Buffer) Documents() []bsoncore.Document { return b.docs }

// AppendInsert appends one or more documents to an insert buffer. Any
// document missing an "_id" field gets one generated and written first,
// ahead of the document's original fields — the server rejects a document
// with a duplicate _id appearing later, so the synthesized field must come
// first.
func (b *Buffer) AppendInsert(docs ...bsoncore.Document) error {
	if b.Kind != result.Insert {
		panic("command: AppendInsert on a non-insert Buffer")
	}
	for _, d := range docs {
		if len(d) < 5 {
			return ErrDocumentTooSmall
		}
		withID, err := ensureID(d)
		if err != nil {
			return errors.Wrap(err, "command: reading document for auto-_id")
		}
		b.docs = append(b.docs, withID)
	}
	return nil
}

func ensureID(doc bsoncore.Document) (bsoncore.Document, error) {
	if _, err := doc.LookupErr("_id"); err == nil {
		return doc, nil
	}

	elems, err := doc.Elements()
	if err != nil {
		return nil, err
	}

	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendObjectIDElement(dst, "_id", primitive.NewObjectID())
	for _, e := range elems {
		dst = append(dst, e...)
	}
	out, err := bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return nil, err
	}
	return bsoncore.Document(out), nil
}

// AppendUpdate appends one {q, u, upsert, multi} entry to an update buffer.
func (b *Buffer) AppendUpdate(selector, update bsoncore.Document, upsert, multi bool) error {
	if b.Kind != result.Update {
		panic("command: AppendUpdate on a non-update Buffer")
	}
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDocumentElement(dst, "q", selector)
	dst = bsoncore.AppendDocumentElement(dst, "u", update)
	dst = bsoncore.AppendBooleanElement(dst, "upsert", upsert)
	dst = bsoncore.AppendBooleanElement(dst, "multi", multi)
	out, err := bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return err
	}
	b.docs = append(b.docs, bsoncore.Document(out))
	return nil
}

// AppendDelete appends one {q, limit} entry to a delete buffer. limit is 0
// when b.Multi is set (remove every match), else 1 (remove at most one).
func (b *Buffer) AppendDelete(selector bsoncore.Document) error {
	if b.Kind != result.Delete {
		panic("command: AppendDelete on a non-delete Buffer")
	}
	if len(selector) < 5 {
		return ErrDocumentTooSmall
	}
	limit := int32(1)
	if b.Multi {
		limit = 0
	}
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDocumentElement(dst, "q", selector)
	dst = bsoncore.AppendInt32Element(dst, "limit", limit)
	out, err := bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return err
	}
	b.docs = append(b.docs, bsoncore.Document(out))
	return nil
}
