// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dmwm/go-workqueue/restdata"
	"github.com/gorilla/mux"
)

// templateMarker stands in for a route variable while a URI template
// is built.
const templateMarker = "-.-"

// links fills in the URL fields of a representation from named
// routes.  After the first error the remaining calls do nothing, and
// Err reports it.
type links struct {
	router *mux.Router
	vars   []string
	err    error
}

// linksFor starts filling URLs.  vars are route variable name and
// value pairs; element names are escaped the way restdata expects.
func linksFor(router *mux.Router, vars ...string) *links {
	for i := 1; i < len(vars); i += 2 {
		vars[i] = restdata.MaybeEncodeName(vars[i])
	}
	return &links{router: router, vars: vars}
}

func (l *links) build(name string, vars []string) *url.URL {
	if l.err != nil {
		return nil
	}
	route := l.router.Get(name)
	if route == nil {
		l.err = fmt.Errorf("No such route %q", name)
		return nil
	}
	u, err := route.URL(vars...)
	if err != nil {
		l.err = err
		return nil
	}
	return u
}

// URL sets out to the URL of a named route.
func (l *links) URL(out *string, name string) *links {
	if u := l.build(name, l.vars); u != nil {
		*out = u.String()
	}
	return l
}

// Template sets out to a URI template for a named route, leaving
// the route variable variable unexpanded.
func (l *links) Template(out *string, name, variable string) *links {
	vars := append([]string{variable, templateMarker}, l.vars...)
	if u := l.build(name, vars); u != nil {
		*out = strings.Replace(u.String(), templateMarker, "{"+variable+"}", 1)
	}
	return l
}

// Query adds query parameters to a URL filled in earlier.
func (l *links) Query(out *string, values url.Values) *links {
	if l.err == nil && len(values) > 0 {
		*out += "?" + values.Encode()
	}
	return l
}

// Err returns the first error building any URL.
func (l *links) Err() error {
	return l.err
}
