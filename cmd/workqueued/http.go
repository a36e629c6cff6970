// Copyright 2015 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/dmwm/go-workqueue/queue"
	"github.com/dmwm/go-workqueue/restserver"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/negroni"
)

// newHandler builds the complete HTTP surface: the REST API, the
// metrics endpoint, and panic recovery and request logging around
// both.
func newHandler(q *queue.WorkQueue) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	restserver.PopulateRouter(r, q)

	n := negroni.New(negroni.NewRecovery(), negroni.NewLogger())
	n.UseHandler(r)
	return n
}

// serveHTTP runs an HTTP server on the specified local address until
// ctx is cancelled.
func serveHTTP(ctx context.Context, laddr string, handler http.Handler) error {
	server := &http.Server{Addr: laddr, Handler: handler}
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdown)
	}
}
