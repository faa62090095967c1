package command

import "github.com/pkg/errors"

var (
	errMalformedUpdateKeys = errors.New("update document is corrupt or contains a $ or . key")
	errMalformedUpdateUTF8 = errors.New("update document contains invalid UTF-8")
)
