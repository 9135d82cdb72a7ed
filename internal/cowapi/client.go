package cowapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpc"
)

// ErrOrderNotFound is returned when the orderbook has no order for a UID.
var ErrOrderNotFound = errors.New("order not found")

const defaultTimeout = 30 * time.Second

// Client talks to a CoW Protocol orderbook over HTTP.
type Client struct {
	baseURL string
	service httpc.Service
}

// NewClient builds a client for baseURL (for example https://api.cow.fi/mainnet).
// A nil httpClient gets a 30s timeout client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		service: httpc.NewServiceWithClient("cowswap-orderbook", httpClient),
	}
}

func (c *Client) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	var resp QuoteResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/quote", req, &resp); err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	return &resp, nil
}

// SubmitOrder posts a signed order and returns its UID.
func (c *Client) SubmitOrder(ctx context.Context, order *OrderCreation) (string, error) {
	var uid string
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", order, &uid); err != nil {
		return "", fmt.Errorf("submit order: %w", err)
	}
	if uid == "" {
		return "", errors.New("submit order: empty order uid")
	}
	return uid, nil
}

func (c *Client) GetOrder(ctx context.Context, uid string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(uid), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Trades lists the settlements of an order, oldest first.
func (c *Client) Trades(ctx context.Context, uid string) ([]Trade, error) {
	var trades []Trade
	path := "/api/v1/trades?orderUid=" + url.QueryEscape(uid)
	if err := c.do(ctx, http.MethodGet, path, nil, &trades); err != nil {
		return nil, fmt.Errorf("trades: %w", err)
	}
	return trades, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	logger := logx.WithContext(ctx)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.service.DoRequest(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return ErrOrderNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Description == "" {
			apiErr.Description = "status " + strconv.Itoa(resp.StatusCode) + ": " + string(raw)
		}
		logger.Errorf("orderbook %s %s 返回错误: %v", method, path, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
