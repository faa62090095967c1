package command

import "github.com/pkg/errors"

// namespace joins db and coll into "<db>.<collection>" and rejects the
// result if it exceeds the protocol's maximum namespace length.
func namespace(db, coll string) (string, error) {
	ns := db + "." + coll
	if len(ns) > MaxNamespaceLength {
		return "", errors.Errorf("namespace %q exceeds maximum length of %d", ns, MaxNamespaceLength)
	}
	return ns, nil
}
