package main

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

	api "montage/internal/contracts/render/v1"
	"montage/internal/httpkit"
)

type gatewayClient struct {
	baseURL string
	http    *http.Client
}

func newGatewayClient(baseURL string) *gatewayClient {
	return &gatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *gatewayClient) Submit(ctx context.Context, envelope []byte) (api.SubmitResponse, error) {
	var out api.SubmitResponse
	err := c.do(ctx, http.MethodPost, "/render", bytes.NewReader(envelope), &out)
	return out, err
}

func (c *gatewayClient) Status(ctx context.Context, id string) (api.Status, error) {
	var out api.Status
	err := c.do(ctx, http.MethodGet, "/render/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *gatewayClient) List(ctx context.Context, status string, limit int) (api.StatusList, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/render"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out api.StatusList
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *gatewayClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var env httpkit.ErrorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Error.Code != "" {
			return fmt.Errorf("%s (%d %s)", env.Error.Message, resp.StatusCode, env.Error.Code)
		}
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
