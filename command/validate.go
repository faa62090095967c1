package command

import (
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// validateReplacementDocument rejects a non-operator update document whose
// keys, at any depth (including inside arrays), are dollar-prefixed or
// dotted, or whose string values are not valid UTF-8. Embedded NUL bytes
// are permitted.
func validateReplacementDocument(doc bsoncore.Document) error {
	elems, err := doc.Elements()
	if err != nil {
		return err
	}
	for _, e := range elems {
		key := e.Key()
		if strings.HasPrefix(key, "$") || strings.Contains(key, ".") {
			return errMalformedUpdateKeys
		}
		if !utf8.ValidString(key) {
			return errMalformedUpdateUTF8
		}
		if err := validateValue(e.Value()); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(v bsoncore.Value) error {
	switch v.Type {
	case bsontype.String:
		if s, ok := v.StringValueOK(); ok && !utf8.ValidString(s) {
			return errMalformedUpdateUTF8
		}
	case bsontype.EmbeddedDocument:
		if sub, ok := v.DocumentOK(); ok {
			return validateReplacementDocument(sub)
		}
	case bsontype.Array:
		if arr, ok := v.ArrayOK(); ok {
			vals, err := arr.Values()
			if err != nil {
				return err
			}
			for _, av := range vals {
				if err := validateValue(av); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
