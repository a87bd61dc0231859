// Package client is a signed REST client for the token swap API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"token_swap/internal/api"
	"token_swap/internal/domain"
	"token_swap/internal/infra/auth"

	"github.com/shopspring/decimal"
)

// APIError is a non-2xx reply decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s msg=%s", e.Status, e.Code, e.Message)
}

// Client talks to one server. Requests to mutating routes are signed; reads
// are signed too when credentials are present, which the server ignores.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *auth.Signer
	logger     *slog.Logger
}

// New creates a client. accessKey and secretKey may be empty for read-only use.
func New(baseURL, accessKey, secretKey string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "swap_client"),
	}
	if accessKey != "" {
		c.signer = auth.NewSigner(accessKey, secretKey)
	}
	return c
}

// ======================================================================================
// State
// ======================================================================================

func (c *Client) State(ctx context.Context) (domain.OperationalState, error) {
	var resp api.StateResponse
	err := c.do(ctx, http.MethodGet, "/v1/state", nil, nil, &resp)
	return resp.State, err
}

func (c *Client) SetState(ctx context.Context, state domain.OperationalState) (api.StateResponse, error) {
	var resp api.StateResponse
	err := c.do(ctx, http.MethodPut, "/v1/state", nil, api.SetStateRequest{State: state}, &resp)
	return resp, err
}

// ======================================================================================
// Rates
// ======================================================================================

func ratePath(from, to domain.AssetID) string {
	return "/v1/rates/" + url.PathEscape(string(from)) + "/" + url.PathEscape(string(to))
}

func (c *Client) Rates(ctx context.Context) ([]api.RateResponse, error) {
	var resp []api.RateResponse
	err := c.do(ctx, http.MethodGet, "/v1/rates", nil, nil, &resp)
	return resp, err
}

func (c *Client) Rate(ctx context.Context, from, to domain.AssetID) (api.RateResponse, error) {
	var resp api.RateResponse
	err := c.do(ctx, http.MethodGet, ratePath(from, to), nil, nil, &resp)
	return resp, err
}

func (c *Client) SetRate(ctx context.Context, from, to domain.AssetID, rate decimal.Decimal) (api.RateResponse, error) {
	var resp api.RateResponse
	err := c.do(ctx, http.MethodPut, ratePath(from, to), nil, api.SetRateRequest{Rate: rate}, &resp)
	return resp, err
}

// ======================================================================================
// Swap
// ======================================================================================

func (c *Client) Swap(ctx context.Context, req api.SwapRequest) (api.SwapResponse, error) {
	var resp api.SwapResponse
	err := c.do(ctx, http.MethodPost, "/v1/swap", nil, req, &resp)
	if err == nil {
		c.logger.Info("Swap executed", "seq", resp.Seq, "to_amount", resp.ToAmount.String())
	}
	return resp, err
}

func (c *Client) Quote(ctx context.Context, req api.SwapRequest) (api.SwapResponse, error) {
	var resp api.SwapResponse
	err := c.do(ctx, http.MethodPost, "/v1/quote", nil, req, &resp)
	return resp, err
}

// ======================================================================================
// Liquidity
// ======================================================================================

func (c *Client) AddLiquidity(ctx context.Context, asset domain.AssetID, amount decimal.Decimal) (api.LiquidityResponse, error) {
	var resp api.LiquidityResponse
	err := c.do(ctx, http.MethodPost, "/v1/liquidity/add", nil, api.LiquidityRequest{Asset: asset, Amount: amount}, &resp)
	return resp, err
}

func (c *Client) RemoveLiquidity(ctx context.Context, asset domain.AssetID, amount decimal.Decimal) (api.LiquidityResponse, error) {
	var resp api.LiquidityResponse
	err := c.do(ctx, http.MethodPost, "/v1/liquidity/remove", nil, api.LiquidityRequest{Asset: asset, Amount: amount}, &resp)
	return resp, err
}

func (c *Client) Share(ctx context.Context, provider domain.Address, asset domain.AssetID) (api.LiquidityResponse, error) {
	var resp api.LiquidityResponse
	path := "/v1/liquidity/" + url.PathEscape(string(provider)) + "/" + url.PathEscape(string(asset))
	err := c.do(ctx, http.MethodGet, path, nil, nil, &resp)
	return resp, err
}

func (c *Client) Shares(ctx context.Context, provider domain.Address) ([]api.LiquidityResponse, error) {
	var resp []api.LiquidityResponse
	err := c.do(ctx, http.MethodGet, "/v1/liquidity/"+url.PathEscape(string(provider)), nil, nil, &resp)
	return resp, err
}

// Balance reads a holder's token balance.
func (c *Client) Balance(ctx context.Context, holder domain.Address, asset domain.AssetID) (api.BalanceResponse, error) {
	var resp api.BalanceResponse
	path := "/v1/balances/" + url.PathEscape(string(holder)) + "/" + url.PathEscape(string(asset))
	err := c.do(ctx, http.MethodGet, path, nil, nil, &resp)
	return resp, err
}

// Notifications lists up to limit recent notifications, newest first.
func (c *Client) Notifications(ctx context.Context, limit int) ([]json.RawMessage, error) {
	var resp []json.RawMessage
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	err := c.do(ctx, http.MethodGet, "/v1/notifications", query, nil, &resp)
	return resp, err
}

// do handles Auth headers and serialization
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		if bodyBytes, err = json.Marshal(body); err != nil {
			return err
		}
	}

	rawQuery := query.Encode()
	reqURL := c.baseURL + path
	if rawQuery != "" {
		reqURL += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// Sign Request. The server verifies against the escaped path it routes.
	if c.signer != nil {
		for k, v := range c.signer.GenerateHeaders(method, req.URL.EscapedPath(), rawQuery, string(bodyBytes)) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError(method+" "+path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError(method+" "+path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er api.ErrorResponse
		if json.Unmarshal(respBody, &er) == nil {
			apiErr.Code, apiErr.Message = er.Code, er.Message
		} else {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
