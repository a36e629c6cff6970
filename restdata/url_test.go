// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct{ plain, encoded string }{
		{"3f5e9c2a-8d7b-4e1f-9a6c-2b8d4f7e1a3c", "3f5e9c2a-8d7b-4e1f-9a6c-2b8d4f7e1a3c"},
		{"", "-"},
		{"-", "-LQ"},
		{"\u0000", "-AA"},
		{"/a/b/RAW#1", "-L2EvYi9SQVcjMQ"},
	}
	for _, test := range tests {
		assert.Equal(t, test.encoded, MaybeEncodeName(test.plain), "encode %q", test.plain)

		dec, err := MaybeDecodeName(test.encoded)
		if assert.NoError(t, err, "decode %q", test.encoded) {
			assert.Equal(t, test.plain, dec)
		}
	}

	_, err := MaybeDecodeName("-!!")
	assert.Error(t, err)
}
