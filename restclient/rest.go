// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/dmwm/go-workqueue/restdata"
	"github.com/jtacoma/uritemplates"
)

// conn sends JSON requests to one workqueue server.  Every URL the
// server hands out is resolved against base.
type conn struct {
	base *url.URL
	http *http.Client
}

// resolve turns a URL or RFC 6570 template from a server document
// into an absolute URL.  handle fills the {element} variable and
// may be empty for URLs without one.
func (c *conn) resolve(ref, handle string) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(ref)
	if err != nil {
		return nil, err
	}
	vars := map[string]interface{}{}
	if handle != "" {
		vars["element"] = restdata.MaybeEncodeName(handle)
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}
	return c.base.Parse(expanded)
}

// call sends one request.  A non-nil in is sent as the JSON body; a
// non-nil out receives the decoded response.  Failure responses come
// back as the workqueue error the server reported where possible.
func (c *conn) call(ctx context.Context, method string, u *url.URL, in, out interface{}) (err error) {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err = restdata.Encode(&buf, in); err != nil {
			return err
		}
		body = &buf
	}
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	if in != nil {
		req.Header.Set("Content-Type", restdata.V1JSONMediaType)
	}
	req.Header.Set("Accept", restdata.V1JSONMediaType)

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); err == nil {
			err = closeErr
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		err = restdata.Decode(resp.Header.Get("Content-Type"), resp.Body, out)
	}
	return err
}

// ErrorHTTP is returned for a failure response that does not carry
// a workqueue error.
type ErrorHTTP struct {
	StatusCode int
	Status     string

	// Body holds the response body, presumed to be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	return e.Status
}

// responseError decodes the restdata.ErrorResponse in a failure
// response, falling back to ErrorHTTP.
func responseError(resp *http.Response) error {
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var errResp restdata.ErrorResponse
	err = restdata.Decode(resp.Header.Get("Content-Type"), bytes.NewReader(body), &errResp)
	if err == nil && errResp.Error != "" {
		return errResp.ToError()
	}
	return ErrorHTTP{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
}
