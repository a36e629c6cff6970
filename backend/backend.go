// Package backend provides a standard way to construct a document
// store based on command-line flags.
package backend

import (
	"errors"
	"strings"

	"github.com/dmwm/go-workqueue/bolt"
	"github.com/dmwm/go-workqueue/memory"
	"github.com/dmwm/go-workqueue/postgres"
	"github.com/dmwm/go-workqueue/workqueue"
)

// Backend describes user-visible parameters to store queue data.
// This implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{"memory", ""}
//         flag.Var(&backend, "backend", "impl:address of queue storage")
//         flag.Parse()
//         store, err := backend.Store(workqueue.ElementViews)
//     }
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string or a file path.
	Address string
}

// Store creates a new document store.  This generally should be only
// called once.  If the backend has in-process state, such as a
// database connection pool or an in-memory store, calling this
// multiple times will create multiple copies of that state.  In
// particular, if b.Implementation is "memory", multiple calls to this
// will create multiple independent queues.
func (b *Backend) Store(views map[string]workqueue.ViewFunc) (workqueue.DocumentStore, error) {
	switch b.Implementation {
	case "memory":
		return memory.New(views), nil
	case "bolt":
		if b.Address == "" {
			return nil, errors.New("bolt backend needs a file path")
		}
		return bolt.New(b.Address, views)
	case "postgres":
		return postgres.New(b.Address, views)
	default:
		return nil, errors.New("unknown queue backend " + b.Implementation)
	}
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Note that neither Set
// nor Store attempts to validate the b.Address part of the string
// before actually making a connection.
func (b *Backend) Set(param string) error {
	if param == "" {
		return errors.New("must specify a backend type")
	}
	parts := strings.SplitN(param, ":", 2)
	switch parts[0] {
	case "memory", "bolt", "postgres":
	default:
		return errors.New("unknown queue backend " + parts[0])
	}
	b.Implementation = parts[0]
	b.Address = ""
	if len(parts) == 2 {
		b.Address = parts[1]
	}
	return nil
}

// UnmarshalYAML allows a backend to be given as a plain string in a
// YAML configuration file.
func (b *Backend) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var param string
	if err := unmarshal(&param); err != nil {
		return err
	}
	return b.Set(param)
}
