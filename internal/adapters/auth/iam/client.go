package iam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"clinical-consent/internal/platform/httpclient"
	"clinical-consent/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("iam client not configured")
	ErrUnauthorized  = errors.New("iam unauthorized")
	ErrUpstream      = errors.New("iam upstream error")
)

const (
	introspectPath = "/v1/tokens/introspect"
	defaultKeyHdr  = "X-Api-Key"
)

type Config struct {
	BaseURL string
	APIKey  string

	// Si está vacío se usa "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

// Client habla con el IAM que emite las sesiones de pacientes y médicos.
type Client struct {
	http *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	apiKey := strings.TrimSpace(cfg.APIKey)
	if baseURL == "" || apiKey == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc, err := httpclient.New(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = defaultKeyHdr
	}
	hc.Header.Set(h, apiKey)

	return &Client{http: hc}, nil
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
}

// Introspect devuelve la identidad del dueño de la sesión.
func (c *Client) Introspect(ctx context.Context, token string) (auth.Claims, error) {
	if c == nil || c.http == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrUnauthorized
	}

	var out introspectResponse
	err := c.http.DoJSON(ctx, http.MethodPost, introspectPath, nil, introspectRequest{Token: token}, &out)
	if err != nil {
		switch httpclient.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return auth.Claims{}, ErrUnauthorized
		default:
			return auth.Claims{}, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}
	if !out.Active {
		return auth.Claims{}, ErrUnauthorized
	}

	return auth.Claims{
		UserID: strings.TrimSpace(out.UserID),
		Role:   auth.ParseRole(out.Role),
		Email:  strings.TrimSpace(out.Email),
	}, nil
}
