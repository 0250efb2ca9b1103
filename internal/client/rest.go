package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/recmig/recmig/internal/types"
)

const defaultTimeout = 60 * time.Second

// RESTClient talks to an instance's JSON API with bearer-token auth.
// Requests that fail with 429 or a 5xx are retried with exponential
// backoff; everything else surfaces immediately.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// RESTOption customizes a RESTClient
type RESTOption func(*RESTClient)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(h *http.Client) RESTOption {
	return func(c *RESTClient) { c.http = h }
}

// NewREST builds a client for the instance at baseURL
func NewREST(baseURL, token string, opts ...RESTOption) *RESTClient {
	c := &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type describeResponse struct {
	Name   string `json:"name"`
	Fields []struct {
		Name        string   `json:"name"`
		Type        string   `json:"type"`
		Createable  bool     `json:"createable"`
		ReferenceTo []string `json:"referenceTo"`
	} `json:"fields"`
}

// Describe fetches the schema for one object. A 404 maps to
// ErrNotFound so callers can retry with a different spelling.
func (c *RESTClient) Describe(ctx context.Context, name string) (*types.ObjectDescription, error) {
	var resp describeResponse
	path := fmt.Sprintf("/sobjects/%s/describe", url.PathEscape(name))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}

	desc := &types.ObjectDescription{Name: resp.Name}
	for _, f := range resp.Fields {
		desc.Fields = append(desc.Fields, types.FieldDescription{
			Name:        f.Name,
			Type:        types.FieldType(f.Type),
			Createable:  f.Createable,
			ReferenceTo: f.ReferenceTo,
		})
	}
	return desc, nil
}

type queryResponse struct {
	Done           bool        `json:"done"`
	NextRecordsURL string      `json:"nextRecordsUrl"`
	Records        []types.Row `json:"records"`
}

// Query runs soql, following result pages until done or maxFetchSize
// rows are buffered
func (c *RESTClient) Query(ctx context.Context, soql string, maxFetchSize int) ([]types.Row, error) {
	path := "/query?q=" + url.QueryEscape(soql)
	var rows []types.Row
	for {
		var resp queryResponse
		if err := c.getJSON(ctx, path, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Records {
			delete(r, "attributes")
			rows = append(rows, r)
			if maxFetchSize > 0 && len(rows) >= maxFetchSize {
				return rows, nil
			}
		}
		if resp.Done || resp.NextRecordsURL == "" {
			return rows, nil
		}
		path = resp.NextRecordsURL
	}
}

type createRequest struct {
	Records []types.Record `json:"records"`
}

// Create submits one batch of records. The response is positional with
// the request.
func (c *RESTClient) Create(ctx context.Context, object string, records []types.Record) ([]SaveResult, error) {
	body, err := json.Marshal(createRequest{Records: records})
	if err != nil {
		return nil, fmt.Errorf("encoding create batch for %s: %w", object, err)
	}
	path := fmt.Sprintf("/composite/sobjects/%s", url.PathEscape(object))
	var results []SaveResult
	if err := c.do(ctx, http.MethodPost, path, body, &results); err != nil {
		return nil, err
	}
	if len(results) != len(records) {
		return nil, &types.TransportError{
			Op:  "create " + object,
			Err: fmt.Errorf("got %d results for %d records", len(results), len(records)),
		}
	}
	return results, nil
}

func (c *RESTClient) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *RESTClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	op := method + " " + path
	attempt := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("status %s", resp.Status)
		case resp.StatusCode >= 400:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(msg))))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		if err == ErrNotFound {
			return ErrNotFound
		}
		return &types.TransportError{Op: op, Err: err}
	}
	return nil
}
