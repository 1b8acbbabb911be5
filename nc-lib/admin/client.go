/*
 * Copyright 2012-2020 Jason Woods and contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nuodb/nuoca/nc-lib/metrics"
)

var (
	// ErrNotFound is returned when the requested resource does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the token is missing or rejected
	ErrUnauthorized = errors.New("unauthorized, check the token")
)

// Client accesses the REST interface of a running agent
type Client struct {
	client *http.Client
	token  string
}

// NewClient returns a client for the given "transport:address", sending the
// token, if not empty, as a bearer token
func NewClient(adminConnect string, token string) (*Client, error) {
	bind := splitAdminConnectString(adminConnect)

	dialer, ok := registeredDialers[bind[0]]
	if !ok {
		return nil, fmt.Errorf("Unknown transport specified for admin bind: '%s'", bind[0])
	}

	// The request host is ignored, every connection dials the admin address
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network string, addr string) (net.Conn, error) {
			return dialer(bind[0], bind[1])
		},
	}

	return &Client{
		client: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		token:  token,
	}, nil
}

// Version returns the version of the remote agent
func (c *Client) Version() (string, error) {
	var ret struct {
		Version string `json:"version"`
	}
	if err := c.do(http.MethodGet, "version", &ret); err != nil {
		return "", err
	}
	return ret.Version, nil
}

// Status returns the status of the remote agent
func (c *Client) Status() (*StatusResponse, error) {
	ret := &StatusResponse{}
	if err := c.do(http.MethodGet, "status", ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Plugins returns the plugins the remote agent supports
func (c *Client) Plugins() (*PluginsResponse, error) {
	ret := &PluginsResponse{}
	if err := c.do(http.MethodGet, "plugins", ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Records returns up to n recent records, oldest first, or all of them if n
// is zero
func (c *Client) Records(n int) ([]*metrics.Record, error) {
	path := "records"
	if n > 0 {
		path += "?n=" + url.QueryEscape(strconv.Itoa(n))
	}
	var ret []*metrics.Record
	if err := c.do(http.MethodGet, path, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Latest returns the most recent record
func (c *Client) Latest() (*metrics.Record, error) {
	ret := &metrics.Record{}
	if err := c.do(http.MethodGet, "records/latest", ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Reload asks the agent to reload its configuration
func (c *Client) Reload() (string, error) {
	ret := &ReloadResponse{}
	if err := c.do(http.MethodPost, "reload", ret); err != nil {
		return "", err
	}
	return ret.Result, nil
}

func (c *Client) do(method string, path string, result interface{}) error {
	req, err := http.NewRequest(method, "http://nuoca/"+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return json.Unmarshal(body, result)
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}

	errResp := errorResponse{}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("unexpected response: %s", resp.Status)
	}
	return errors.New(errResp.Error)
}
