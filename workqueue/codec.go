// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueue

import (
	"reflect"

	"github.com/ugorji/go/codec"
)

// cborHandle returns the CBOR settings used for stored document
// bodies.  Nested maps decode with string keys and integers decode
// signed, so that data read back looks like data written.
func cborHandle() *codec.CborHandle {
	cbor := new(codec.CborHandle)
	cbor.MapType = reflect.TypeOf(map[string]interface{}(nil))
	cbor.SignedInteger = true
	return cbor
}

// MarshalData encodes document data as CBOR.
func MarshalData(in map[string]interface{}) (out []byte, err error) {
	encoder := codec.NewEncoderBytes(&out, cborHandle())
	err = encoder.Encode(in)
	return
}

// UnmarshalData decodes CBOR document data produced by MarshalData.
// Empty input decodes to an empty map.
func UnmarshalData(in []byte) (out map[string]interface{}, err error) {
	if len(in) > 0 {
		decoder := codec.NewDecoderBytes(in, cborHandle())
		err = decoder.Decode(&out)
	}
	if err == nil && out == nil {
		out = map[string]interface{}{}
	}
	return
}
