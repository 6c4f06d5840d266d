// Package quotes forwards fixed market-data queries to Yahoo Finance (RapidAPI)
// and Alpha Vantage and relays their JSON.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"folio/internal/config"
	apperrors "folio/internal/errors"
	"folio/internal/logger"
)

// Upstream names as they appear in error messages
const (
	YahooFinance = "Yahoo Finance"
	AlphaVantage = "Alpha Vantage"
)

const maxBodyBytes = 8 << 20

var (
	// ErrBodyTooLarge is returned when an upstream body exceeds the read limit
	ErrBodyTooLarge = errors.New("upstream response body too large")
	// ErrInvalidJSON is returned when an upstream body does not parse as JSON
	ErrInvalidJSON = errors.New("upstream returned a non-JSON body")
)

// Recorder receives the outcome of every upstream call
type Recorder interface {
	RecordUpstreamRequest(upstream string, duration time.Duration, err error)
}

// Proxy issues one outbound request per call. There is no retry or cache.
type Proxy struct {
	cfg      config.QuotesConfig
	cli      *http.Client
	recorder Recorder
	maxBody  int64
}

// NewProxy creates a proxy. recorder may be nil.
func NewProxy(cfg config.QuotesConfig, recorder Recorder) *Proxy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Proxy{
		cfg:      cfg,
		cli:      &http.Client{Timeout: timeout},
		recorder: recorder,
		maxBody:  maxBodyBytes,
	}
}

// Yahoo fetches the configured quote from the RapidAPI Yahoo Finance endpoint
func (p *Proxy) Yahoo(ctx context.Context) (json.RawMessage, error) {
	yc := p.cfg.Yahoo
	q := url.Values{}
	q.Set("ticker", yc.Ticker)
	q.Set("type", yc.Type)

	endpoint := strings.TrimRight(yc.BaseURL, "/") + "/api/v1/markets/quote?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("build %s request: %w", YahooFinance, err))
	}
	req.Header.Set("X-RapidAPI-Key", yc.APIKey)
	req.Header.Set("X-RapidAPI-Host", yc.APIHost)

	return p.fetch(req, YahooFinance, "yahoo_finance")
}

// AlphaVantage fetches the configured time series from Alpha Vantage
func (p *Proxy) AlphaVantage(ctx context.Context) (json.RawMessage, error) {
	ac := p.cfg.AlphaVantage
	q := url.Values{}
	q.Set("function", ac.Function)
	q.Set("symbol", ac.Symbol)
	q.Set("apikey", ac.APIKey)
	q.Set("outputsize", ac.OutputSize)
	q.Set("datatype", ac.DataType)

	endpoint := strings.TrimRight(ac.BaseURL, "/") + "/query?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("build %s request: %w", AlphaVantage, err))
	}

	return p.fetch(req, AlphaVantage, "alpha_vantage")
}

func (p *Proxy) fetch(req *http.Request, name, label string) (json.RawMessage, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "folio/1.0")

	start := time.Now()
	body, status, err := p.do(req)
	if err == nil && !json.Valid(body) {
		err = fmt.Errorf("%w (status %d)", ErrInvalidJSON, status)
	}
	if p.recorder != nil {
		p.recorder.RecordUpstreamRequest(label, time.Since(start), err)
	}

	if err != nil {
		logger.WithContext(req.Context()).Warn("Quote upstream failed", "upstream", name, "status", status, "error", err)
		return nil, apperrors.UpstreamUnavailable(name, err)
	}

	if status < 200 || status > 299 {
		logger.WithContext(req.Context()).Warn("Quote upstream returned an error status",
			"upstream", name, "status", status)
	}
	return json.RawMessage(body), nil
}

func (p *Proxy) do(req *http.Request) ([]byte, int, error) {
	resp, err := p.cli.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if int64(len(body)) > p.maxBody {
		return nil, resp.StatusCode, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, p.maxBody)
	}
	return body, resp.StatusCode, nil
}
