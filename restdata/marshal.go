// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"encoding/base64"
	"io"
	"mime"

	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/ugorji/go/codec"
)

// Decode tries to decode a restdata object from a reader, such as an
// HTTP request or response.  out must be a pointer type.
func Decode(contentType string, r io.Reader, out interface{}) error {
	if contentType == "" {
		// RFC 7231 section 3.1.1.5
		contentType = "application/octet-stream"
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ErrBadRequest{Err: err}
	}

	switch mediaType {
	case "text/json", "application/json", JSONMediaType, V1JSONMediaType:
		decoder := codec.NewDecoder(r, &codec.JsonHandle{})
		err = decoder.Decode(out)
		if err != nil {
			return ErrBadRequest{Err: err}
		}
		return nil
	}
	return ErrUnsupportedMediaType{Type: mediaType}
}

// Encode writes a restdata object as JSON.
func Encode(w io.Writer, in interface{}) error {
	return codec.NewEncoder(w, &codec.JsonHandle{}).Encode(in)
}

// MarshalJSON returns a JSON object representation of a data
// dictionary.
func (d DataDict) MarshalJSON() (out []byte, err error) {
	encoder := codec.NewEncoderBytes(&out, &codec.JsonHandle{})
	err = encoder.Encode(map[string]interface{}(d))
	return
}

// UnmarshalJSON converts a byte array back into a data dictionary.
// If it is a string, it should be base64-encoded CBOR, in the form
// document stores keep it.  If it is an object it is decoded
// normally.
func (d *DataDict) UnmarshalJSON(in []byte) error {
	jsonHandle := &codec.JsonHandle{}
	if len(in) > 0 && in[0] == '"' {
		var s string
		decoder := codec.NewDecoderBytes(in, jsonHandle)
		err := decoder.Decode(&s)
		if err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		data, err := workqueue.UnmarshalData(b)
		if err != nil {
			return err
		}
		*d = DataDict(data)
		return nil
	}
	decoder := codec.NewDecoderBytes(in, jsonHandle)
	return decoder.Decode((*map[string]interface{})(d))
}
