package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.vocdoni.io/dvote/log"

	"github.com/enclavote/enclavote/api"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = http.MethodGet
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = http.MethodPost

	errCodeNot200 = "API error"

	// DefaultRetries this enables Request() to handle the situation where the server connection fails
	DefaultRetries = 3
	// DefaultTimeout is the default timeout for the HTTP client
	DefaultTimeout = 10 * time.Second
)

// HTTPclient is the poll API HTTP client.
type HTTPclient struct {
	c       *http.Client
	host    *url.URL
	retries int
}

// New connects to the API host, checks it is alive and returns the handle
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		IdleConnTimeout:    DefaultTimeout,
		DisableCompression: false,
		WriteBufferSize:    1 * 1024 * 1024, // 1 MiB
		ReadBufferSize:     1 * 1024 * 1024, // 1 MiB
	}
	c := &HTTPclient{
		c:       &http.Client{Transport: tr, Timeout: DefaultTimeout},
		host:    hostURL,
		retries: DefaultRetries,
	}
	log.Debugw("http client created", "host", hostURL.String())
	data, status, err := c.Request(HTTPGET, nil, api.PingEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return c, nil
}

// SetRetries configures the number of retries for the HTTP client.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = n
}

// SetTimeout configures the timeout for the HTTP client.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.c.Timeout = d
	if c.c.Transport != nil {
		if tr, ok := c.c.Transport.(*http.Transport); ok {
			tr.ResponseHeaderTimeout = d
		}
	}
}

// Request performs a `method` type raw request to the endpoint specified in
// urlPath parameter. Method is either GET or POST. If POST, a JSON struct
// should be attached. Returns the response, the status code and an error.
func (c *HTTPclient) Request(method string, jsonBody any, urlPath ...string) ([]byte, int, error) {
	var (
		body []byte
		err  error
	)

	// Marshal the JSON body if provided.
	if jsonBody != nil {
		body, err = json.Marshal(jsonBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}

	// Parse the base host URL
	u, err := url.Parse(c.host.String())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse host URL: %w", err)
	}

	// Join path segments
	u.Path = path.Join(u.Path, path.Join(urlPath...))

	// Prepare headers
	headers := http.Header{}
	if jsonBody != nil {
		headers.Set("Content-Type", "application/json")
		headers.Set("Accept", "application/json")
	}

	log.Debugw("http client request",
		"type", method,
		"url", u.String(),
		"body", func() string {
			if len(body) > 512 {
				return string(body[:512]) + "..."
			}
			return string(body)
		}(),
	)

	var resp *http.Response
	for i := 1; i <= c.retries; i++ {
		// Create a fresh request each attempt
		var reqBody io.ReadCloser
		if body != nil {
			reqBody = io.NopCloser(bytes.NewReader(body))
		}
		req, err := http.NewRequest(method, u.String(), reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header = headers

		resp, err = c.c.Do(req)
		if err != nil {
			log.Warnw("http request failed", "error", err.Error(), "attempt", i, "retries", c.retries)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		// Successfully got a response, break out of the retry loop
		break
	}

	if resp == nil {
		return nil, 0, fmt.Errorf("http request ultimately failed after %d retries", c.retries)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}

// ClusterInfo fetches the cluster identity voters encrypt against.
func (c *HTTPclient) ClusterInfo() (*api.ClusterInfo, error) {
	info := &api.ClusterInfo{}
	if err := c.jsonRequest(HTTPGET, nil, info, api.ClusterEndpoint); err != nil {
		return nil, err
	}
	return info, nil
}

// CreatePoll submits a poll creation request and returns the poll ID.
func (c *HTTPclient) CreatePoll(req *api.CreatePollRequest) (*api.CreatePollResponse, error) {
	resp := &api.CreatePollResponse{}
	if err := c.jsonRequest(HTTPPOST, req, resp, api.PollsEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// Poll fetches the public view of a poll.
func (c *HTTPclient) Poll(pollID string) (*api.PollInfo, error) {
	info := &api.PollInfo{}
	if err := c.jsonRequest(HTTPGET, nil, info, api.PollsEndpoint, pollID); err != nil {
		return nil, err
	}
	return info, nil
}

// ListPolls fetches the identifiers of all known polls.
func (c *HTTPclient) ListPolls() (*api.PollListResponse, error) {
	resp := &api.PollListResponse{}
	if err := c.jsonRequest(HTTPGET, nil, resp, api.PollsEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// Vote submits an encrypted ballot.
func (c *HTTPclient) Vote(req *api.VoteRequest) error {
	return c.jsonRequest(HTTPPOST, req, nil, api.VotesEndpoint)
}

// Reveal triggers the reveal of a poll. The request signature must be made
// by the poll authority over api.RevealMessage.
func (c *HTTPclient) Reveal(pollID string, req *api.RevealRequest) error {
	return c.jsonRequest(HTTPPOST, req, nil, api.PollsEndpoint, pollID, "reveal")
}

// jsonRequest performs a request and decodes the JSON response into out, if
// out is not nil.
func (c *HTTPclient) jsonRequest(method string, jsonBody, out any, urlPath ...string) error {
	data, status, err := c.Request(method, jsonBody, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s: %d (%s)", errCodeNot200, status, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
