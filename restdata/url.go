// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"encoding/base64"
)

// MaybeEncodeName examines an element handle, and if it cannot be
// directly inserted into a URL path segment as-is, base64 encodes it.
// The encoded handle begins with - and uses the URL-safe base64
// alphabet with no padding.  Element and subscription IDs are UUIDs
// and pass through unchanged.
func MaybeEncodeName(name string) string {
	if urlSafe(name) {
		return name
	}
	return "-" + base64.RawURLEncoding.EncodeToString([]byte(name))
}

// urlSafe reports whether name is non-empty, does not start with -
// (which would be ambiguous), and holds only RFC 3986 section 2.3
// unreserved characters (plus :).
func urlSafe(name string) bool {
	if name == "" || name[0] == '-' {
		return false
	}
	for _, c := range name {
		switch {
		case c == '-', c == '.', c == '_', c == ':',
			(c >= 'a' && c <= 'z'),
			(c >= 'A' && c <= 'Z'),
			(c >= '0' && c <= '9'):
		default:
			return false
		}
	}
	return true
}

// MaybeDecodeName examines a name, and if it appears to be base64
// encoded, decodes it.  base64 encoded strings begin with an - sign.
// This function is the dual of MaybeEncodeName().  Returns an error
// if the string begins with - and the remainder of the string isn't
// actually base64 encoded.
func MaybeDecodeName(name string) (string, error) {
	if len(name) == 0 || name[0] != '-' {
		// Not base64 encoded, so return as is
		return name, nil
	}
	bytes, err := base64.RawURLEncoding.DecodeString(name[1:])
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
