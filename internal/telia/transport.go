package telia

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultRequestTimeout = 30 * time.Second

// Transport is a thin POST wrapper around the carrier host shared by the
// token manager and the gateway. Debug mode dumps the wire traffic through
// resty's tracer.
type Transport struct {
	client *resty.Client
}

func NewTransport(baseURL string, debug bool) (*Transport, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("carrier base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid carrier base url: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(trimmed)
	client.SetTimeout(defaultRequestTimeout)
	client.SetRetryCount(0)
	client.SetDebug(debug)

	return &Transport{client: client}, nil
}

// PostForm sends a form-encoded POST with HTTP Basic credentials. Used for
// the token and revoke endpoints.
func (t *Transport) PostForm(ctx context.Context, path string, form map[string]string, username, password string) (*resty.Response, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}

	return t.client.R().
		SetContext(ctx).
		SetBasicAuth(username, password).
		SetFormData(form).
		Post(path)
}

// PostJSON sends a JSON POST with a bearer token. Used for the outbound
// messaging endpoint.
func (t *Transport) PostJSON(ctx context.Context, path string, bearerToken string, body any) (*resty.Response, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}

	return t.client.R().
		SetContext(ctx).
		SetAuthToken(bearerToken).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
}
