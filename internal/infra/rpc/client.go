// Package rpc provides JSON-RPC connectivity to the bridge operators with
// per-operator retry and ordered failover. Operators are redundant but
// independently operated: any one live operator is enough, so the manager
// short-circuits on the first success instead of seeking agreement.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/bridgewatch/internal/metrics"
)

// Client is a JSON-RPC-over-HTTP client for a single endpoint.
type Client struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a persistent client for one endpoint. The name labels
// log lines and metrics, typically the operator key.
func NewClient(name, endpoint string, timeout time.Duration) *Client {
	return &Client{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name returns the client's label.
func (c *Client) Name() string {
	return c.name
}

// Call makes a single JSON-RPC call and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	result, err := c.call(ctx, method, params)
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(c.name, method).Inc()
		return nil, err
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	start := time.Now()

	if params == nil {
		params = []any{}
	}
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	metrics.RPCCallsTotal.WithLabelValues(c.name, method).Inc()
	metrics.RPCLatency.WithLabelValues(c.name, method).Observe(time.Since(start).Seconds())

	return rpcResp.Result, nil
}

// Call makes a JSON-RPC call on c and unmarshals the result into T.
func Call[T any](ctx context.Context, c *Client, method string, params ...any) (T, error) {
	var out T
	raw, err := c.Call(ctx, method, params...)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: decode result: %w", method, err)
	}
	return out, nil
}
