// Package gateway wraps the HorsePay PIX provider. The provider's
// response schema is not stable across fields, so external ids and PIX
// payloads are located by a prioritized key-path search instead of a
// fixed struct, and core business logic never sees raw gateway shapes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rifa-service/internal/apperr"
	"rifa-service/internal/util"

	"go.uber.org/zap"
)

const requestTimeout = 20 * time.Second

// Config carries the provider credentials, injected at process start.
type Config struct {
	BaseURL      string
	ClientKey    string
	ClientSecret string
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a HorsePay client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: requestTimeout},
		logger: util.NamedLogger("horsepay"),
	}
}

// Authenticate exchanges the client credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	body := map[string]string{
		"client_key":    c.cfg.ClientKey,
		"client_secret": c.cfg.ClientSecret,
	}
	resp, err := c.Do(ctx, http.MethodPost, "/auth/token", "", body)
	if err != nil {
		return "", err
	}

	token := util.CoerceString(lookup(resp, "access_token"))
	if token == "" {
		token = util.CoerceString(lookup(resp, "token"))
	}
	if token == "" {
		return "", apperr.New(apperr.Internal, "Gateway não retornou token de acesso.")
	}
	return token, nil
}

// Do performs one authenticated call and decodes the JSON response. Only
// the structural shape of responses is logged, never the content.
func (c *Client) Do(ctx context.Context, method, path, token string, body interface{}) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "Falha ao montar requisição.", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Falha ao montar requisição.", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	util.GatewayRequestLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Gateway de pagamento indisponível.", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Falha ao ler resposta do gateway.", err)
	}

	var parsed map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			parsed = nil
		}
	}

	c.logger.Info("gateway response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Strings("keys", util.TopLevelKeys(toInterface(parsed))))

	if resp.StatusCode >= 400 {
		kind := apperr.FromHTTPStatus(resp.StatusCode)
		msg := fmt.Sprintf("Gateway retornou status %d.", resp.StatusCode)
		return parsed, apperr.New(kind, msg)
	}

	return parsed, nil
}

// NewOrderRequest is the deposit creation payload.
type NewOrderRequest struct {
	PayerName   string `json:"payer_name"`
	AmountCents int64  `json:"amount"`
	CallbackURL string `json:"callback_url,omitempty"`
	ClientRef   string `json:"client_reference_id"`
	Phone       string `json:"phone,omitempty"`
}

// NewOrderResult is the normalized canonical pair extracted from the
// provider's drifting response shapes.
type NewOrderResult struct {
	ExternalID   string
	CopyPaste    string
	QrCodeBase64 string
	Failed       bool
}

// NewOrder creates a PIX deposit order.
func (c *Client) NewOrder(ctx context.Context, token string, req NewOrderRequest) (*NewOrderResult, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/transaction/neworder", token, req)
	if err != nil {
		return nil, err
	}

	result := &NewOrderResult{
		ExternalID:   ExtractExternalID(resp),
		CopyPaste:    ExtractPixPayload(resp),
		QrCodeBase64: util.CoerceString(firstMatch(resp, qrImagePaths)),
	}
	if status := util.CoerceString(firstMatch(resp, statusPaths)); status == "failed" || status == "error" {
		result.Failed = true
	}
	return result, nil
}

// Withdraw requests a PIX withdrawal; the normalized response is passed
// through to the caller.
func (c *Client) Withdraw(ctx context.Context, token string, amountCents int64, pixKey, pixType string) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"amount":   amountCents,
		"pix_key":  pixKey,
		"pix_type": pixType,
	}
	return c.Do(ctx, http.MethodPost, "/transaction/withdraw", token, body)
}

// Balance queries the account balance.
func (c *Client) Balance(ctx context.Context, token string) (map[string]interface{}, error) {
	return c.Do(ctx, http.MethodGet, "/user/balance", token, nil)
}

func toInterface(m map[string]interface{}) interface{} {
	if m == nil {
		return nil
	}
	return m
}
