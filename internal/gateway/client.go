// Package gateway creates charges on the configured payment gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Proton-105/vitrine-bot/internal/catalog"
	apperrors "github.com/Proton-105/vitrine-bot/internal/errors"
	"github.com/Proton-105/vitrine-bot/pkg/metrics"
)

const (
	// DefaultTimeout bounds a single charge call.
	DefaultTimeout = 15 * time.Second
	// DefaultPlatform prefixes every external reference.
	DefaultPlatform = "telegram"

	billingTypePix   = "PIX"
	maxResponseBytes = 1 << 20
	bodyPreviewLen   = 200
)

// Result is the normalized outcome of a successful charge. Every field is optional.
type Result struct {
	PaymentLink string
	QRCode      string
	QRCodeImage []byte
}

// ChargeCreator issues a new charge for a product on behalf of a requester.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, product catalog.Product, requesterID int64) (*Result, error)
}

// Config describes how to reach the gateway.
type Config struct {
	Shape            Shape
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	Platform         string
	CustomerDocument string
	CustomerEmail    string
	HTTPClient       *http.Client
	Breaker          *apperrors.CircuitBreaker
}

type customer struct {
	Name    string `json:"name"`
	CpfCnpj string `json:"cpfCnpj"`
	Email   string `json:"email"`
}

type chargeRequest struct {
	Description       string      `json:"description"`
	Value             json.Number `json:"value"`
	ExternalReference string      `json:"externalReference"`
	BillingType       string      `json:"billingType"`
	Customer          customer    `json:"customer"`
}

// Client performs one POST per charge against the configured gateway shape.
type Client struct {
	cfg        Config
	mapping    fieldMapping
	endpoint   string
	httpClient *http.Client
	breaker    *apperrors.CircuitBreaker
	log        *slog.Logger
}

var _ ChargeCreator = (*Client)(nil)

// NewClient validates cfg and builds a gateway client.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	mapping, ok := mappings[cfg.Shape]
	if !ok {
		return nil, fmt.Errorf("gateway: unknown shape %q", cfg.Shape)
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gateway: base url is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Platform == "" {
		cfg.Platform = DefaultPlatform
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	breaker := cfg.Breaker
	if breaker == nil {
		breaker = apperrors.NewCircuitBreaker(apperrors.DefaultBreakerConfig())
	}

	return &Client{
		cfg:        cfg,
		mapping:    mapping,
		endpoint:   buildURL(cfg.BaseURL, mapping.Endpoint),
		httpClient: httpClient,
		breaker:    breaker,
		log:        log.With(slog.String("component", "payment_gateway"), slog.String("shape", string(cfg.Shape))),
	}, nil
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *apperrors.CircuitBreaker {
	return c.breaker
}

// ExternalReference composes the per-request reference sent to the gateway.
func ExternalReference(platform string, requesterID int64, productCode string) string {
	return fmt.Sprintf("%s-%d-%s", platform, requesterID, productCode)
}

// CreateCharge issues a new charge. Any failure is returned as an *AppError
// wrapping a *FailureError; no retry is attempted.
func (c *Client) CreateCharge(ctx context.Context, product catalog.Product, requesterID int64) (*Result, error) {
	start := time.Now()
	reference := ExternalReference(c.cfg.Platform, requesterID, product.Code)
	log := c.log.With(slog.Int64("user_id", requesterID), slog.String("external_reference", reference))

	var result *Result
	err := c.breaker.Call(func() error {
		var callErr error
		result, callErr = c.do(ctx, log, c.buildRequest(product, requesterID, reference))
		return callErr
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrCircuitOpen) || errors.Is(err, apperrors.ErrHalfOpenTooManyRequests) {
			err = &FailureError{Kind: KindUnavailable, Err: err}
		}

		kind := KindOf(err)
		metrics.RecordCharge(string(kind), time.Since(start))
		log.Warn("payment charge failed",
			slog.String("kind", string(kind)),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)

		return nil, apperrors.NewExternalAPIError("payment gateway", err)
	}

	metrics.RecordCharge("success", time.Since(start))
	log.Info("payment charge created",
		slog.Bool("has_link", result.PaymentLink != ""),
		slog.Bool("has_qr_image", len(result.QRCodeImage) > 0),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (c *Client) buildRequest(product catalog.Product, requesterID int64, reference string) chargeRequest {
	return chargeRequest{
		Description:       product.Name,
		Value:             json.Number(product.Price.StringFixed(2)),
		ExternalReference: reference,
		BillingType:       billingTypePix,
		Customer: customer{
			Name:    fmt.Sprintf("Cliente Telegram %d", requesterID),
			CpfCnpj: c.cfg.CustomerDocument,
			Email:   c.cfg.CustomerEmail,
		},
	}
}

func (c *Client) do(ctx context.Context, log *slog.Logger, payload chargeRequest) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, &FailureError{Kind: KindTransport, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &FailureError{Kind: KindTransport, Err: fmt.Errorf("build request: %w", err)}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FailureError{Kind: transportKind(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &FailureError{Kind: transportKind(err), StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Debug("payment gateway returned non-2xx status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body_preview", truncateString(string(body), bodyPreviewLen)),
		)
		return nil, &FailureError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", truncateString(string(body), bodyPreviewLen)),
		}
	}

	result, imageErr, err := normalize(c.mapping, body)
	if err != nil {
		log.Debug("failed to decode payment gateway response",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body_preview", truncateString(string(body), bodyPreviewLen)),
			slog.Any("error", err),
		)
		return nil, &FailureError{Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}

	if imageErr != nil {
		log.Warn("dropping qr code image from gateway response", slog.Any("error", imageErr))
	}

	return result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "vitrine-bot")
	if c.cfg.APIKey != "" {
		req.Header.Set("access_token", c.cfg.APIKey)
	}
}

func buildURL(baseURL, endpoint string) string {
	return strings.TrimSuffix(strings.TrimSpace(baseURL), "/") + "/" + endpoint
}

func transportKind(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindTransport
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
