// Copyright 2015 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes a work queue as a REST service.  The
// restclient package is a matching client.
//
// The complete REST API is defined in the restdata package.  In
// particular, note that the URLs described here are not actually part
// of the API.
//
// HTTP Considerations
//
// Clients should use the standard HTTP Accept: header to request a
// specific format.  See "MIME Types" below.  Request bodies must be
// sent with a JSON Content-Type:, including the empty object {} sent
// to the element action URLs.
//
// This interface does not (currently) support HTTP caching or
// authentication headers.
//
// MIME Types
//
// This interface understands MIME types as follows:
//
//     application/vnd.dmwm.workqueue.v1+json
//
// JSON representation of version 1 of this interface.
//
//     application/vnd.dmwm.workqueue+json
//     application/json
//     text/json
//
// JSON representation of latest version of this interface.
//
// URL Scheme
//
// Elements are addressed by element ID or by the ID of their WMBS
// subscription.  If the handle is not URL-safe printable ASCII, it
// must be base64 encoded using the URL-safe alphabet (RFC 4648
// section 5), with no padding, and adding an additional - at the
// front of the name.
//
// The following URLs are defined:
//
//     /
//     /workload
//     /work
//     /element
//     /element/{element}
//     /element/{element}/got
//     /element/{element}/done
//     /element/{element}/fail
//     /element/{element}/release
//     /summary
package restserver
