package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBridgeTimeout = 8 * time.Second

// APIError represents a bridge API error with status code and response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge API error %d: %s", e.Status, e.Body)
}

// MT5Bridge is an HTTP client for a local MetaTrader bridge process that
// exposes the terminal over REST. All endpoints are JSON.
type MT5Bridge struct {
	client   *http.Client
	baseURL  string
	apiToken string
}

// NewMT5Bridge creates a bridge client with the default request timeout.
func NewMT5Bridge(baseURL, apiToken string) *MT5Bridge {
	return NewMT5BridgeWithClient(baseURL, apiToken, &http.Client{Timeout: defaultBridgeTimeout})
}

// NewMT5BridgeWithClient creates a bridge client with a custom HTTP client.
func NewMT5BridgeWithClient(baseURL, apiToken string, client *http.Client) *MT5Bridge {
	if client == nil {
		client = &http.Client{Timeout: defaultBridgeTimeout}
	}
	return &MT5Bridge{
		client:   client,
		baseURL:  baseURL,
		apiToken: apiToken,
	}
}

// Ensure MT5Bridge implements Broker at compile time.
var _ Broker = (*MT5Bridge)(nil)

func (m *MT5Bridge) doRequest(ctx context.Context, method, endpoint string, params url.Values, body, out interface{}) error {
	u := m.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if m.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiToken)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> failed to read error body", method, endpoint)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> %s", method, endpoint, string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, endpoint, err)
	}
	return nil
}

// GetOpenPositions returns every open position on the symbol.
func (m *MT5Bridge) GetOpenPositions(symbol string) ([]RawPosition, error) {
	return m.GetOpenPositionsCtx(context.Background(), symbol)
}

// GetOpenPositionsCtx returns every open position on the symbol, honoring ctx.
func (m *MT5Bridge) GetOpenPositionsCtx(ctx context.Context, symbol string) ([]RawPosition, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp struct {
		Positions []RawPosition `json:"positions"`
	}
	if err := m.doRequest(ctx, http.MethodGet, "/positions", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// GetAccountSnapshot returns the terminal's account state.
func (m *MT5Bridge) GetAccountSnapshot() (AccountSnapshot, error) {
	var snap AccountSnapshot
	if err := m.doRequest(context.Background(), http.MethodGet, "/account", nil, nil, &snap); err != nil {
		return AccountSnapshot{}, err
	}
	return snap, nil
}

// GetCurrentSpread returns the live spread on the symbol.
func (m *MT5Bridge) GetCurrentSpread(symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp struct {
		Spread float64 `json:"spread"`
	}
	if err := m.doRequest(context.Background(), http.MethodGet, "/spread", params, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Spread, nil
}

// ClosePosition closes a single ticket at market.
func (m *MT5Bridge) ClosePosition(id int64, reason string) (bool, error) {
	return m.ClosePositionCtx(context.Background(), id, reason)
}

// ClosePositionCtx closes a single ticket, honoring ctx. A 404 from the
// bridge means the ticket is already gone and maps to ErrPositionNotFound.
func (m *MT5Bridge) ClosePositionCtx(ctx context.Context, id int64, reason string) (bool, error) {
	req := struct {
		ID     int64  `json:"id"`
		Reason string `json:"reason"`
	}{ID: id, Reason: reason}

	var resp struct {
		Success bool `json:"success"`
	}
	err := m.doRequest(ctx, http.MethodPost, "/close", nil, req, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return false, ErrPositionNotFound
		}
		return false, err
	}
	return resp.Success, nil
}
