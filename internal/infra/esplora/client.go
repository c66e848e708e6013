// Package esplora wraps the block explorer's HTTP API to translate a
// transaction id into a confirmation depth relative to a chain-tip snapshot.
package esplora

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is an HTTP client for an esplora-compatible block explorer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates an explorer client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        slog.Default(),
	}
}

// TipHeight fetches the current chain tip height. Called once per
// reconciliation cycle so every confirmation check in the cycle is measured
// against the same reference point.
func (c *Client) TipHeight(ctx context.Context) (uint64, error) {
	body, err := c.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse tip height %q: %w", body, err)
	}
	return height, nil
}

type txStatus struct {
	Confirmed   bool    `json:"confirmed"`
	BlockHeight *uint64 `json:"block_height"`
}

// Confirmations returns the confirmation depth of txid relative to
// chainTip: tip - block_height + 1 once confirmed, else 0. Any explorer
// failure also yields 0 so uncertain data biases toward retaining entries,
// never purging them.
func (c *Client) Confirmations(ctx context.Context, txid string, chainTip uint64) uint64 {
	body, err := c.get(ctx, "/tx/"+txid+"/status")
	if err != nil {
		c.log.Warn("Explorer tx status fetch failed", "txid", txid, "error", err)
		return 0
	}

	var status txStatus
	if err := json.Unmarshal(body, &status); err != nil {
		c.log.Warn("Explorer tx status unparsable", "txid", txid, "error", err)
		return 0
	}

	if !status.Confirmed || status.BlockHeight == nil {
		return 0
	}
	height := *status.BlockHeight
	if height > chainTip {
		// Explorer ahead of our tip snapshot; the tx is at best 1-deep.
		return 1
	}
	return chainTip - height + 1
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
