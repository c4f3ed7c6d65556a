package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FiatClient queries an exchangerate.host-style latest-rates endpoint.
type FiatClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewFiatClient(baseURL string, timeout time.Duration) *FiatClient {
	if baseURL == "" {
		baseURL = "https://api.exchangerate.host"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FiatClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type fiatLatestResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (c *FiatClient) Rate(ctx context.Context, from, to string) (float64, error) {
	q := url.Values{}
	q.Set("base", from)
	q.Set("symbols", to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return 0, ErrPairNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("fiat rates http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out fiatLatestResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("fiat rates: decode: %w", err)
	}
	rate, ok := out.Rates[to]
	if !ok || rate <= 0 {
		return 0, ErrPairNotFound
	}
	return rate, nil
}

// CryptoClient queries a Binance-style ticker-price endpoint; the pair symbol
// is the plain concatenation of both codes.
type CryptoClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewCryptoClient(baseURL string, timeout time.Duration) *CryptoClient {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CryptoClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (c *CryptoClient) Rate(ctx context.Context, from, to string) (float64, error) {
	symbol := from + to
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v3/ticker/price?symbol="+url.QueryEscape(symbol), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return 0, ErrPairNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("crypto ticker http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out tickerPriceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("crypto ticker: decode: %w", err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(out.Price), 64)
	if err != nil || price <= 0 {
		return 0, ErrPairNotFound
	}
	return price, nil
}
