package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "mastowatch/pkg/errors"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/ratelimit"
)

// maxErrorBody caps how much of a failed response is copied into errors and logs
const maxErrorBody = 200

// Client talks to one Mastodon instance on behalf of one account
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	host       string
	token      string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a client for the instance at baseURL using a bearer token
func NewClient(baseURL, token string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	host := ""
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Host
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent": "mastowatch/1.0",
			"Accept":     "application/json",
		},
		baseURL: normalizeBase(baseURL),
		host:    host,
		token:   token,
		logger:  log.WithField("instance", host),
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetLimiter paces every outgoing request through l
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// BaseURL returns the instance URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with the configured headers.
// The bearer token is only attached to requests for the client's own
// instance so media fetched from other hosts never sees it.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	if c.token != "" && req.URL.Host == c.host {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// get performs a GET request to the specified URL
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	return c.doRequest(req)
}

// getJSON performs a GET request, decodes the JSON body into target and
// returns the response headers for callers that need pagination links
func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) (http.Header, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	if err := c.decodeJSON(resp, target); err != nil {
		return nil, err
	}

	return resp.Header, nil
}

// postJSON sends body as JSON and decodes the answer into target
func (c *Client) postJSON(ctx context.Context, rawURL string, body, target interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.New(errs.ErrorTypeParsing, 0, "failed to encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	return c.decodeJSON(resp, target)
}

func (c *Client) decodeJSON(resp *http.Response, target interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          resp.Request.URL.String(),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus maps any non-2xx response onto a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
	errorType := errs.FromStatusCode(resp.StatusCode)

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
		"body":   preview(body),
	}
	switch errorType {
	case errs.ErrorTypeRateLimit, errs.ErrorTypeAuth, errs.ErrorTypeNotFound:
		c.logger.WarnWithFields(string(errorType)+" response", fields)
	default:
		c.logger.ErrorWithFields("unexpected API response", fields)
	}

	return errs.New(errorType, resp.StatusCode, "%s %s returned %d: %s",
		resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, preview(body))
}

func preview(body []byte) string {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}

// describeURL is used in error messages where the query string is noise
func describeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return fmt.Sprintf("%s%s", u.Host, u.Path)
}
