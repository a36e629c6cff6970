// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package dbs provides the data-management collaborators of the work
// queue: dataset and block metadata from a DBS instance, and block
// locations from PhEDEx.
//
// Client talks to the real HTTP services.  Call New() with the base
// URL of the PhEDEx data service; DBS instance URLs come from each
// task.
//
//     c, err := dbs.New("https://cmsweb.cern.ch/phedex/datasvc/json/prod/")
//
// Static is an in-memory replacement for tests and single-host
// deployments.
package dbs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/jpillora/backoff"
	"github.com/jtacoma/uritemplates"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Client is a workqueue.BlockService speaking to DBS and PhEDEx over
// HTTP.  Fields may be changed after New() but not while the client
// is in use.
type Client struct {
	// PhEDEx is the base URL of the PhEDEx data service.
	PhEDEx *url.URL

	// HTTP is the client used to make requests.
	HTTP *http.Client

	// Timeout bounds each individual request.
	Timeout time.Duration

	// Attempts is the total number of tries for a request that
	// fails with a network error or a server-side status.
	Attempts int

	// RetryMin and RetryMax bound the delay between attempts.
	RetryMin time.Duration
	RetryMax time.Duration

	Clock  clock.Clock
	Logger logrus.FieldLogger
}

// New creates a client for a PhEDEx data service.
func New(phedexURL string) (*Client, error) {
	base, err := url.Parse(withSlash(phedexURL))
	if err != nil {
		return nil, err
	}
	return &Client{
		PhEDEx:   base,
		HTTP:     http.DefaultClient,
		Timeout:  30 * time.Second,
		Attempts: 3,
		RetryMin: 500 * time.Millisecond,
		RetryMax: 10 * time.Second,
		Clock:    clock.New(),
		Logger:   logrus.StandardLogger(),
	}, nil
}

type blockRecord struct {
	BlockName    string   `codec:"block_name"`
	NumEvent     int      `codec:"num_event"`
	NumFile      int      `codec:"num_file"`
	ParentBlocks []string `codec:"parent_blocks"`
}

type summaryRecord struct {
	NumEvent int `codec:"num_event"`
	NumFile  int `codec:"num_file"`
}

type parentRecord struct {
	ParentDataset string `codec:"parent_dataset"`
}

type replicaResponse struct {
	PhEDEx struct {
		Block []struct {
			Name    string `codec:"name"`
			Replica []struct {
				Node string `codec:"node"`
			} `codec:"replica"`
		} `codec:"block"`
	} `codec:"phedex"`
}

// DatasetBlocks lists the blocks of a dataset with their sizes and
// parents.
func (c *Client) DatasetBlocks(ctx context.Context, dbsURL, dataset string) ([]workqueue.BlockInfo, error) {
	var records []blockRecord
	err := c.getFrom(ctx, dbsURL, "blocks{?dataset,detail}", map[string]interface{}{
		"dataset": dataset,
		"detail":  "true",
	}, &records)
	if err != nil {
		return nil, err
	}
	result := make([]workqueue.BlockInfo, len(records))
	for i, record := range records {
		result[i] = workqueue.BlockInfo{
			Name:      record.BlockName,
			NumEvents: record.NumEvent,
			NumFiles:  record.NumFile,
			Parents:   record.ParentBlocks,
		}
	}
	return result, nil
}

// DatasetInfo returns the totals and parent datasets of a dataset.
func (c *Client) DatasetInfo(ctx context.Context, dbsURL, dataset string) (workqueue.BlockInfo, error) {
	vars := map[string]interface{}{"dataset": dataset}
	var summaries []summaryRecord
	err := c.getFrom(ctx, dbsURL, "filesummaries{?dataset}", vars, &summaries)
	if err != nil {
		return workqueue.BlockInfo{}, err
	}
	var parents []parentRecord
	err = c.getFrom(ctx, dbsURL, "datasetparents{?dataset}", vars, &parents)
	if err != nil {
		return workqueue.BlockInfo{}, err
	}

	info := workqueue.BlockInfo{Name: dataset}
	for _, summary := range summaries {
		info.NumEvents += summary.NumEvent
		info.NumFiles += summary.NumFile
	}
	for _, parent := range parents {
		info.Parents = append(info.Parents, parent.ParentDataset)
	}
	return info, nil
}

// BlockLocations returns the sites holding a disk replica of block.
// Tape-only (MSS) replicas are not locations.
func (c *Client) BlockLocations(ctx context.Context, block string) ([]string, error) {
	var resp replicaResponse
	err := c.getFrom(ctx, c.PhEDEx.String(), "blockreplicas{?block}", map[string]interface{}{
		"block": block,
	}, &resp)
	if err != nil {
		return nil, err
	}
	sites := make(map[string]struct{})
	for _, b := range resp.PhEDEx.Block {
		if b.Name != block {
			continue
		}
		for _, replica := range b.Replica {
			if site, ok := NodeSite(replica.Node); ok {
				sites[site] = struct{}{}
			}
		}
	}
	result := make([]string, 0, len(sites))
	for site := range sites {
		result = append(result, site)
	}
	sort.Strings(result)
	return result, nil
}

// NodeSite converts a PhEDEx node name to a site name.  It returns
// false for tape nodes.
func NodeSite(node string) (string, bool) {
	if strings.HasSuffix(node, "_MSS") {
		return "", false
	}
	for _, suffix := range []string{"_Disk", "_Buffer", "_Export"} {
		if strings.HasSuffix(node, suffix) {
			return strings.TrimSuffix(node, suffix), true
		}
	}
	return node, true
}

// getFrom expands a URI template relative to base and decodes the
// JSON response into out, retrying transient failures.
func (c *Client) getFrom(ctx context.Context, base, template string, vars map[string]interface{}, out interface{}) error {
	baseURL, err := url.Parse(withSlash(base))
	if err != nil {
		return err
	}
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return err
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return err
	}
	target, err := baseURL.Parse(expanded)
	if err != nil {
		return err
	}

	b := &backoff.Backoff{
		Min:    c.RetryMin,
		Max:    c.RetryMax,
		Factor: 2,
		Jitter: true,
	}
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		err = c.get(ctx, target, out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= attempts {
			return workqueue.ErrTransient{Op: "GET " + target.String(), Err: err}
		}
		delay := b.Duration()
		c.Logger.WithFields(logrus.Fields{
			"url":     target.String(),
			"attempt": attempt,
			"err":     err,
		}).Warn("Request failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.Clock.After(delay):
		}
	}
}

// get performs a single GET request.
func (c *Client) get(ctx context.Context, target *url.URL, out interface{}) (err error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", target.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		err = firstError(err, resp.Body.Close())
	}()

	if err = checkHTTPStatus(resp); err != nil {
		return err
	}
	json := &codec.JsonHandle{}
	return codec.NewDecoder(resp.Body, json).Decode(out)
}

// ErrorHTTP is a catch-all error for non-successes returned from a
// remote service.
type ErrorHTTP struct {
	StatusCode int
	Status     string

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return fmt.Sprintf("%v: %v", e.Status, strings.TrimSpace(e.Body))
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.
func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	return ErrorHTTP{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
}

// retryable decides whether a failed request is worth repeating.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr ErrorHTTP
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}
