package orderstore

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

	"kitchenedge/orders"
)

// HTTPClient talks to the order store's REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the client's base URL.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

type statusChangeRequest struct {
	Status      orders.Status `json:"status"`
	PrepMinutes int           `json:"prep_minutes,omitempty"`
}

func (c *HTTPClient) ListOpenOrders(ctx context.Context) ([]*orders.Order, error) {
	var list []*orders.Order
	if err := c.do(ctx, http.MethodGet, "/orders?open=true", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *HTTPClient) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	var o orders.Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *HTTPClient) RequestStatusChange(ctx context.Context, id string, status orders.Status, extra orders.TransitionExtra) error {
	body := statusChangeRequest{Status: status, PrepMinutes: extra.PrepMinutes}
	return c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/status", body, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("order store marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("order store %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("order store %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, result)
}

func (c *HTTPClient) decode(resp *http.Response, result any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("order store read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("order store HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("order store decode: %w", err)
		}
	}
	return nil
}
