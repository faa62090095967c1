// Package writeconcern carries the write-concern value type the write-
// command core's Transport contract and Command Executor need. Write-concern
// *policy* (how a caller decides on one) is out of scope; this package only
// models the value and its BSON representation.
package writeconcern

import (
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// ErrInconsistent indicates that an inconsistent write concern was specified:
// w=0 together with j=true.
var ErrInconsistent = errors.New("a write concern cannot have both w=0 and j=true")

// ErrNegativeW indicates that a negative integer w field was specified.
var ErrNegativeW = errors.New("write concern `w` field cannot be a negative number")

// ErrNegativeWTimeout indicates that a negative wtimeout was specified.
var ErrNegativeWTimeout = errors.New("write concern `wtimeout` field cannot be negative")

// WriteConcern describes the level of acknowledgement requested for a write
// operation. A nil *WriteConcern means "server default", which this package
// always treats as acknowledged.
type WriteConcern struct {
	w        interface{}
	j        bool
	wTimeout time.Duration
}

// Option configures a WriteConcern under construction.
type Option func(*WriteConcern)

// New constructs a WriteConcern from the given options.
func New(options ...Option) *WriteConcern {
	wc := &WriteConcern{}
	for _, opt := range options {
		opt(wc)
	}
	return wc
}

// W requests acknowledgement that a write propagated to the given number of
// nodes.
func W(w int) Option {
	return func(wc *WriteConcern) { wc.w = w }
}

// WMajority requests acknowledgement that a write propagated to a majority
// of nodes.
func WMajority() Option {
	return func(wc *WriteConcern) { wc.w = "majority" }
}

// WTagSet requests acknowledgement tied to a server tag set.
func WTagSet(tag string) Option {
	return func(wc *WriteConcern) { wc.w = tag }
}

// J requests acknowledgement that a write was committed to the journal.
func J(j bool) Option {
	return func(wc *WriteConcern) { wc.j = j }
}

// WTimeout bounds how long the server waits before giving up on satisfying
// the write concern.
func WTimeout(d time.Duration) Option {
	return func(wc *WriteConcern) { wc.wTimeout = d }
}

// empty is the shared "no write concern" sentinel document: a zero-length
// BSON document. It must never be mutated.
var empty = bsoncore.Document{5, 0, 0, 0, 0}

// MarshalDocument renders the write concern as a BSON document suitable for
// embedding under a command's "writeConcern" field. A nil receiver marshals
// to the empty document.
func (wc *WriteConcern) MarshalDocument() (bsoncore.Document, error) {
	if wc == nil {
		return empty, nil
	}
	if !wc.IsValid() {
		return nil, ErrInconsistent
	}

	idx, dst := bsoncore.AppendDocumentStart(nil)

	switch t := wc.w.(type) {
	case int:
		if t < 0 {
			return nil, ErrNegativeW
		}
		dst = bsoncore.AppendInt32Element(dst, "w", int32(t))
	case string:
		dst = bsoncore.AppendStringElement(dst, "w", t)
	}

	if wc.j {
		dst = bsoncore.AppendBooleanElement(dst, "j", wc.j)
	}

	if wc.wTimeout < 0 {
		return nil, ErrNegativeWTimeout
	}
	if wc.wTimeout != 0 {
		dst = bsoncore.AppendInt64Element(dst, "wtimeout", int64(wc.wTimeout/time.Millisecond))
	}

	out, err := bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return nil, err
	}
	return bsoncore.Document(out), nil
}

// Acknowledged reports whether a write sent under this write concern expects
// a reply. A nil receiver is always acknowledged.
func (wc *WriteConcern) Acknowledged() bool {
	if wc == nil || wc.j {
		return true
	}
	if v, ok := wc.w.(int); ok && v == 0 {
		return false
	}
	return true
}

// IsValid reports whether the write concern is internally consistent: j=true
// requires w != 0.
func (wc *WriteConcern) IsValid() bool {
	if wc == nil || !wc.j {
		return true
	}
	if v, ok := wc.w.(int); ok && v == 0 {
		return false
	}
	return true
}

// AckWrite reports whether wc represents an acknowledged write. A nil
// write concern is always acknowledged.
func AckWrite(wc *WriteConcern) bool {
	return wc == nil || wc.Acknowledged()
}
