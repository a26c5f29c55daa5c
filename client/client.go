package client

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

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/totegamma/poapbot/internal/domain"
)

var tracer = otel.Tracer("poap")

const (
	defaultTimeout = 15 * time.Second
	refreshMargin  = 5 * time.Minute
	tokenCacheKey  = "access-token"
	userAgent      = "poapbot/1.0"
)

type Config struct {
	BaseURL      string
	AuthURL      string
	Audience     string
	APIKey       string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to the badge issuance API. It owns the OAuth token cache.
type Client struct {
	client *http.Client
	cache  *cache.Cache
	group  singleflight.Group
	conf   Config
}

func New(conf Config) *Client {
	if conf.Timeout == 0 {
		conf.Timeout = defaultTimeout
	}
	conf.BaseURL = strings.TrimSuffix(conf.BaseURL, "/")

	httpClient := http.Client{
		Timeout: conf.Timeout,
	}

	c := &Client{
		client: &httpClient,
		cache:  cache.New(cache.NoExpiration, 10*time.Minute),
		conf:   conf,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if x, found := c.cache.Get(tokenCacheKey); found {
		return x.(string), nil
	}

	v, err, _ := c.group.Do(tokenCacheKey, func() (any, error) {
		if x, found := c.cache.Get(tokenCacheKey); found {
			return x.(string), nil
		}
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "Poap.Client.fetchToken")
	defer span.End()

	body, err := json.Marshal(map[string]string{
		"audience":      c.conf.Audience,
		"grant_type":    "client_credentials",
		"client_id":     c.conf.ClientID,
		"client_secret": c.conf.ClientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.AuthURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", unavailable("token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := readAPIError(resp)
		span.RecordError(apiErr)
		return "", apiErr
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", errors.Wrap(err, "failed to decode token")
	}
	if token.AccessToken == "" {
		return "", &domain.IssuanceAPIError{Status: resp.StatusCode, Message: "empty access token"}
	}

	ttl := time.Duration(token.ExpiresIn)*time.Second - refreshMargin
	if ttl > 0 {
		c.cache.Set(tokenCacheKey, token.AccessToken, ttl)
	}

	return token.AccessToken, nil
}

func readAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &domain.IssuanceAPIError{Status: resp.StatusCode, Message: msg}
}

type options struct {
	method      string
	body        any
	requireAuth bool
}

func (c *Client) request(ctx context.Context, path string, opts options, response any) error {
	err := c.requestOnce(ctx, path, opts, response)

	var apiErr *domain.IssuanceAPIError
	if opts.requireAuth && errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.cache.Delete(tokenCacheKey)
		err = c.requestOnce(ctx, path, opts, response)
	}

	return err
}

func (c *Client) requestOnce(ctx context.Context, path string, opts options, response any) error {
	method := opts.method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.body != nil {
		b, err := json.Marshal(opts.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.conf.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("X-API-Key", c.conf.APIKey)
	req.Header.Set("Content-Type", "application/json")

	if opts.requireAuth {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return unavailable("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func (c *Client) GetEvent(ctx context.Context, eventID int64) (domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Poap.Client.GetEvent")
	defer span.End()
	span.SetAttributes(attribute.Int64("event", eventID))

	var event domain.Event
	err := c.request(ctx, fmt.Sprintf("/events/id/%d", eventID), options{}, &event)
	if err != nil {
		span.RecordError(err)
		return domain.Event{}, err
	}
	return event, nil
}

func (c *Client) GetUserBadges(ctx context.Context, address string) ([]domain.Badge, error) {
	ctx, span := tracer.Start(ctx, "Poap.Client.GetUserBadges")
	defer span.End()

	var badges []domain.Badge
	err := c.request(ctx, "/actions/scan/"+url.PathEscape(address), options{}, &badges)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return badges, nil
}

// GetClaimLinks lists the claim links of an event. It never reports exhaustion as an error.
func (c *Client) GetClaimLinks(ctx context.Context, eventID int64, secret string) ([]domain.ClaimLink, error) {
	ctx, span := tracer.Start(ctx, "Poap.Client.GetClaimLinks")
	defer span.End()
	span.SetAttributes(attribute.Int64("event", eventID))

	var links []domain.ClaimLink
	err := c.request(ctx, fmt.Sprintf("/event/%d/qr-codes", eventID), options{
		method:      http.MethodPost,
		body:        map[string]string{"secret_code": secret},
		requireAuth: true,
	}, &links)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return links, nil
}

func (c *Client) Claim(ctx context.Context, claimToken, address, secret string) (domain.ClaimResult, error) {
	ctx, span := tracer.Start(ctx, "Poap.Client.Claim")
	defer span.End()

	var result domain.ClaimResult
	err := c.request(ctx, "/actions/claim-qr", options{
		method: http.MethodPost,
		body: map[string]string{
			"qr_hash": claimToken,
			"address": address,
			"secret":  secret,
		},
		requireAuth: true,
	}, &result)
	if err != nil {
		span.RecordError(err)
		return domain.ClaimResult{}, err
	}
	return result, nil
}

// GetEventStats returns how many badges of the event have been minted.
func (c *Client) GetEventStats(ctx context.Context, eventID int64) (int64, error) {
	ctx, span := tracer.Start(ctx, "Poap.Client.GetEventStats")
	defer span.End()

	var raw json.RawMessage
	err := c.request(ctx, fmt.Sprintf("/events/%d/poaps", eventID), options{}, &raw)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tokens []json.RawMessage
		if err := json.Unmarshal(trimmed, &tokens); err != nil {
			return 0, errors.Wrap(err, "failed to decode stats")
		}
		return int64(len(tokens)), nil
	}

	var page struct {
		Total  *int64            `json:"total"`
		Tokens []json.RawMessage `json:"tokens"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return 0, errors.Wrap(err, "failed to decode stats")
	}
	if page.Total != nil {
		return *page.Total, nil
	}
	return int64(len(page.Tokens)), nil
}

func unavailable(message string, err error) *domain.IssuanceAPIError {
	return &domain.IssuanceAPIError{Status: http.StatusServiceUnavailable, Message: message, Cause: err}
}
