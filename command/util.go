package command

import "go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

func lookupDocument(doc bsoncore.Document, key string) (bsoncore.Document, bool) {
	v, err := doc.LookupErr(key)
	if err != nil {
		return nil, false
	}
	return v.DocumentOK()
}

func lookupBool(doc bsoncore.Document, key string) bool {
	v, err := doc.LookupErr(key)
	if err != nil {
		return false
	}
	b, _ := v.BooleanOK()
	return b
}

func lookupInt32(doc bsoncore.Document, key string) int32 {
	v, err := doc.LookupErr(key)
	if err != nil {
		return 0
	}
	i, _ := v.AsInt32OK()
	return i
}

func lookupValue(doc bsoncore.Document, key string) (bsoncore.Value, bool) {
	v, err := doc.LookupErr(key)
	if err != nil {
		return bsoncore.Value{}, false
	}
	return v, true
}

// withAppendedValue copies doc and appends one additional element at the
// end, preserving every existing field verbatim.
func withAppendedValue(doc bsoncore.Document, key string, v bsoncore.Value) bsoncore.Document {
	elems, err := doc.Elements()
	if err != nil {
		return doc
	}
	idx, dst := bsoncore.AppendDocumentStart(nil)
	for _, e := range elems {
		dst = append(dst, e...)
	}
	dst = bsoncore.AppendValueElement(dst, key, v)
	out, err := bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return doc
	}
	return bsoncore.Document(out)
}

// withInt32Field copies doc, replacing key's value with i if key is absent
// or already an int32, preserving field order and every other field.
func withInt32Field(doc bsoncore.Document, key string, i int32) bsoncore.Document {
	elems, err := doc.Elements()
	if err != nil {
		return doc
	}
	idx, dst := bsoncore.AppendDocumentStart(nil)
	found := false
	for _, e := range elems {
		if e.Key() == key {
			dst = bsoncore.AppendInt32Element(dst, key, i)
			found = true
			continue
		}
		dst = append(dst, e...)
	}
	if !found {
		dst = bsoncore.AppendInt32Element(dst, key, i)
	}
	out, err := bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return doc
	}
	return bsoncore.Document(out)
}
