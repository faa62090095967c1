package result_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ikmak/mongo-write-core/result"
)

func buildDoc(t *testing.T, build func(dst []byte) []byte) bsoncore.Document {
	t.Helper()
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = build(dst)
	out, err := bsoncore.AppendDocumentEnd(dst, idx)
	require.NoError(t, err)
	return bsoncore.Document(out)
}

func TestMergeCommand_InsertCounts(t *testing.T) {
	t.Parallel()

	reply := buildDoc(t, func(dst []byte) []byte {
		return bsoncore.AppendInt32Element(dst, "n", 2)
	})

	a := &result.Accumulator{}
	a.MergeCommand(result.Insert, reply, 0)

	require.Equal(t, int64(2), a.NInserted)
	require.False(t, a.Failed)
}

func TestMergeCommand_WriteErrorsRewriteIndex(t *testing.T) {
	t.Parallel()

	reply := buildDoc(t, func(dst []byte) []byte {
		dst = bsoncore.AppendInt32Element(dst, "n", 1)
		aidx, adst := bsoncore.AppendArrayElementStart(dst, "writeErrors")
		errDoc := buildDoc(t, func(d []byte) []byte {
			d = bsoncore.AppendInt32Element(d, "index", 0)
			d = bsoncore.AppendInt32Element(d, "code", 11000)
			d = bsoncore.AppendStringElement(d, "errmsg", "duplicate key")
			return d
		})
		adst = bsoncore.AppendDocumentElement(adst, "0", errDoc)
		adst, _ = bsoncore.AppendArrayEnd(adst, aidx)
		return adst
	})

	a := &result.Accumulator{}
	a.MergeCommand(result.Insert, reply, 5)

	require.True(t, a.Failed)
	require.Len(t, a.WriteErrors, 1)

	idx, err := a.WriteErrors[0].LookupErr("index")
	require.NoError(t, err)
	i, ok := idx.AsInt64OK()
	require.True(t, ok)
	require.Equal(t, int64(5), i)
}

func TestMergeCommand_UpsertedSplitsMatchedAndUpserted(t *testing.T) {
	t.Parallel()

	reply := buildDoc(t, func(dst []byte) []byte {
		dst = bsoncore.AppendInt32Element(dst, "n", 3)
		aidx, adst := bsoncore.AppendArrayElementStart(dst, "upserted")
		entry := buildDoc(t, func(d []byte) []byte {
			d = bsoncore.AppendInt32Element(d, "index", 1)
			d = bsoncore.AppendInt32Element(d, "_id", 42)
			return d
		})
		adst = bsoncore.AppendDocumentElement(adst, "0", entry)
		adst, _ = bsoncore.AppendArrayEnd(adst, aidx)
		return adst
	})

	a := &result.Accumulator{}
	a.MergeCommand(result.Update, reply, 10)

	require.Equal(t, int64(1), a.NUpserted)
	require.Equal(t, int64(2), a.NMatched)
	require.Len(t, a.Upserted, 1)

	idx, err := a.Upserted[0].LookupErr("index")
	require.NoError(t, err)
	i, ok := idx.AsInt64OK()
	require.True(t, ok)
	require.Equal(t, int64(11), i)
}

func TestMergeLegacy_SynthesizesWriteError(t *testing.T) {
	t.Parallel()

	reply := buildDoc(t, func(dst []byte) []byte {
		dst = bsoncore.AppendInt32Element(dst, "n", 0)
		dst = bsoncore.AppendStringElement(dst, "err", "not authorized")
		dst = bsoncore.AppendInt32Element(dst, "code", 13)
		return dst
	})

	a := &result.Accumulator{}
	a.MergeLegacy(result.Insert, reply, 7)

	require.True(t, a.Failed)
	require.Len(t, a.WriteErrors, 1)

	idx, _ := a.WriteErrors[0].LookupErr("index")
	i, _ := idx.AsInt64OK()
	require.Equal(t, int64(7), i)
	require.True(t, a.OmitNModified)
}

func TestMergeLegacy_UpsertBackfillScenario(t *testing.T) {
	t.Parallel()

	// S4: legacy upsert ObjectId back-fill, already applied by the
	// executor before merge: reply now carries a synthesized "upserted".
	reply := buildDoc(t, func(dst []byte) []byte {
		dst = bsoncore.AppendInt32Element(dst, "n", 1)
		dst = bsoncore.AppendBooleanElement(dst, "updatedExisting", false)
		dst = bsoncore.AppendInt32Element(dst, "upserted", 99)
		return dst
	})

	a := &result.Accumulator{}
	a.MergeLegacy(result.Update, reply, 0)

	require.Equal(t, int64(1), a.NUpserted)
	require.Len(t, a.Upserted, 1)
	require.True(t, a.OmitNModified)
}

func TestFinalize_OmitsNModifiedWhenSet(t *testing.T) {
	t.Parallel()

	a := &result.Accumulator{OmitNModified: true, NInserted: 1}
	doc, ok, err := a.Finalize()
	require.True(t, ok)
	require.Nil(t, err)

	_, lookupErr := doc.LookupErr("nModified")
	require.Error(t, lookupErr)
}

func TestFinalize_Idempotent(t *testing.T) {
	t.Parallel()

	a := &result.Accumulator{NInserted: 3}
	doc1, ok1, _ := a.Finalize()
	doc2, ok2, _ := a.Finalize()

	require.Equal(t, ok1, ok2)
	require.Equal(t, []byte(doc1), []byte(doc2))
}

func TestFinalize_SynthesizesErrorFromFirstWriteError(t *testing.T) {
	t.Parallel()

	reply := buildDoc(t, func(dst []byte) []byte {
		dst = bsoncore.AppendInt32Element(dst, "n", 0)
		dst = bsoncore.AppendStringElement(dst, "err", "boom")
		dst = bsoncore.AppendInt32Element(dst, "code", 9)
		return dst
	})

	a := &result.Accumulator{}
	a.MergeLegacy(result.Delete, reply, 0)

	_, ok, err := a.Finalize()
	require.False(t, ok)
	require.NotNil(t, err)
	require.Equal(t, result.ServerWriteError, err.Kind)
	require.Equal(t, int32(9), err.Code)
	require.Equal(t, "boom", err.Message)
}
