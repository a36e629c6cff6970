// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueue

import (
	"fmt"
)

// MarshalText returns a string representing an element status.
func (status ElementStatus) MarshalText() ([]byte, error) {
	switch status {
	case AnyStatus:
		return []byte("any"), nil
	case Available:
		return []byte("available"), nil
	case Acquired:
		return []byte("acquired"), nil
	case Done:
		return []byte("done"), nil
	case Failed:
		return []byte("failed"), nil
	default:
		return nil, fmt.Errorf("invalid status (marshal, %+v)", int(status))
	}
}

// UnmarshalText populates an element status from a string.
func (status *ElementStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "any":
		*status = AnyStatus
	case "available":
		*status = Available
	case "acquired":
		*status = Acquired
	case "done":
		*status = Done
	case "failed":
		*status = Failed
	default:
		return fmt.Errorf("invalid status (unmarshal, %+v)", string(text))
	}
	return nil
}

// String returns the text form of a status, or a placeholder for
// invalid values.
func (status ElementStatus) String() string {
	text, err := status.MarshalText()
	if err != nil {
		return fmt.Sprintf("status(%d)", int(status))
	}
	return string(text)
}

// MarshalText returns a string representing a result.
func (r Result) MarshalText() ([]byte, error) {
	switch r {
	case OK:
		return []byte("ok"), nil
	case NotFound:
		return []byte("not_found"), nil
	case Conflict:
		return []byte("conflict"), nil
	case TransientError:
		return []byte("transient_error"), nil
	default:
		return nil, fmt.Errorf("invalid result (marshal, %+v)", int(r))
	}
}

// UnmarshalText populates a result from a string.
func (r *Result) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*r = OK
	case "not_found":
		*r = NotFound
	case "conflict":
		*r = Conflict
	case "transient_error":
		*r = TransientError
	default:
		return fmt.Errorf("invalid result (unmarshal, %+v)", string(text))
	}
	return nil
}

func (r Result) String() string {
	text, err := r.MarshalText()
	if err != nil {
		return fmt.Sprintf("result(%d)", int(r))
	}
	return string(text)
}
