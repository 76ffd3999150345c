// Package mercadopago is a small client for the Mercado Pago payments API.
// Only the calls the order service needs are implemented: create a payment
// and read one back.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultBaseURL = "https://api.mercadopago.com"

type Config struct {
	BaseURL     string
	AccessToken string
	// Timeout of zero means calls wait as long as the caller's context allows.
	Timeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the
	// circuit. Zero disables the breaker.
	BreakerFailures uint32
	Transport       http.RoundTripper
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Payment]
}

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	rt := cfg.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c := &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   cfg.AccessToken,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(rt),
		},
	}
	if cfg.BreakerFailures > 0 {
		limit := cfg.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker[*Payment](gobreaker.Settings{
			Name:    "mercadopago",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= limit
			},
			// A 4xx is the caller's problem, not an outage.
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					return apiErr.StatusCode < 500
				}
				return err == nil
			},
		})
	}
	return c
}

// CreatePayment posts a new payment. idempotencyKey is sent as
// X-Idempotency-Key so a repeated call does not charge twice.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest, idempotencyKey string) (*Payment, error) {
	return c.call(ctx, "create_payment", func() (*Payment, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("mercadopago: encode payment: %w", err)
		}
		hreq, err := c.newRequest(ctx, http.MethodPost, "/v1/payments", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if idempotencyKey != "" {
			hreq.Header.Set("X-Idempotency-Key", idempotencyKey)
		}
		return c.do(hreq)
	})
}

func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if id == "" {
		return nil, errors.New("mercadopago: empty payment id")
	}
	return c.call(ctx, "get_payment", func() (*Payment, error) {
		hreq, err := c.newRequest(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil)
		if err != nil {
			return nil, err
		}
		return c.do(hreq)
	})
}

func (c *Client) call(ctx context.Context, op string, fn func() (*Payment, error)) (*Payment, error) {
	start := time.Now()
	var (
		p   *Payment
		err error
	)
	if c.breaker != nil {
		p, err = c.breaker.Execute(fn)
	} else {
		p, err = fn()
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GatewayDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
	return p, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*Payment, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("mercadopago: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		var m struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &m) == nil {
			apiErr.Message = m.Message
		}
		return nil, apiErr
	}

	var p Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("mercadopago: decode payment: %w", err)
	}
	return &p, nil
}
