package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
)

// retryLogger adapts the retrying client's key/value logging to logrus.
// Everything goes out at debug level; retries are routine.
type retryLogger struct{}

func retryFields(keysAndValues []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			f[k] = keysAndValues[i+1]
		}
	}
	return f
}

func (retryLogger) Error(msg string, keysAndValues ...interface{}) {
	log.WithFields(retryFields(keysAndValues)).Debug(msg)
}

func (retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.WithFields(retryFields(keysAndValues)).Debug(msg)
}

func (retryLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(retryFields(keysAndValues)).Debug(msg)
}

func (retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.WithFields(retryFields(keysAndValues)).Debug(msg)
}

// client wraps the bundlerd API behind a retrying HTTP client.
type client struct {
	base    string
	hc      *retryablehttp.Client
	timeout time.Duration
}

func newClient(opts globalOptions) *client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 4
	hc.RetryWaitMax = 2 * time.Second
	hc.Logger = retryLogger{}

	return &client{
		base:    strings.TrimRight(opts.Server, "/"),
		hc:      hc,
		timeout: opts.Timeout,
	}
}

func (c *client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, rawBody)
	if err != nil {
		return nil, 0, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "%v %v", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "read response")
	}
	return buf, resp.StatusCode, nil
}

// apiError turns an error response into a printable error, preferring
// the server's own message when the body carries one.
func apiError(buf []byte, code int) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(buf, &payload); err == nil && payload.Error != "" {
		return errors.Fatalf("server answered %d: %v", code, payload.Error)
	}
	return errors.Fatalf("server answered %d: %s", code, strings.TrimSpace(string(buf)))
}

func (c *client) decodeTracker(buf []byte, code int) (*bundler.TrackerMessage, error) {
	if code != http.StatusOK {
		return nil, apiError(buf, code)
	}

	var msg bundler.TrackerMessage
	if err := json.Unmarshal(buf, &msg); err != nil {
		return nil, errors.Wrap(err, "decode tracker")
	}
	return &msg, nil
}

func (c *client) submit(ctx context.Context, body []byte) (*bundler.TrackerMessage, []byte, error) {
	buf, code, err := c.do(ctx, http.MethodPost, "/BundleFilesJSON", body)
	if err != nil {
		return nil, nil, err
	}
	msg, err := c.decodeTracker(buf, code)
	return msg, buf, err
}

func (c *client) state(ctx context.Context, jobID string) (*bundler.TrackerMessage, []byte, error) {
	buf, code, err := c.do(ctx, http.MethodGet, "/GetState?job_id="+url.QueryEscape(jobID), nil)
	if err != nil {
		return nil, nil, err
	}
	msg, err := c.decodeTracker(buf, code)
	return msg, buf, err
}

func (c *client) jobs(ctx context.Context) ([]string, error) {
	buf, code, err := c.do(ctx, http.MethodGet, "/DataSourceTest", nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, apiError(buf, code)
	}

	body := strings.TrimSpace(string(buf))
	if body == "" {
		return nil, nil
	}
	return strings.Split(body, "\n"), nil
}

func (c *client) ping(ctx context.Context) (string, error) {
	buf, code, err := c.do(ctx, http.MethodGet, "/isAlive", nil)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", apiError(buf, code)
	}
	return string(buf), nil
}
