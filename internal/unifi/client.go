package unifi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nugget/portctl/internal/httpkit"
)

// maxResponseBytes bounds how much of a controller response is read.
const maxResponseBytes = 1 << 20

// Config holds what a Client needs to reach and authenticate against a
// controller.
type Config struct {
	// BaseURL includes the scheme and host, e.g. "https://192.168.1.1:8443".
	BaseURL string
	// Site is the controller site name; "default" when empty.
	Site     string
	Username string
	Password string

	// PortProfileUp and PortProfileDown are the port configuration
	// profile IDs applied by EnablePort and DisablePort.
	PortProfileUp   string
	PortProfileDown string

	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Client is a UniFi Network controller API client using cookie-based
// session authentication. The session lives in the client's cookie jar
// and is never persisted. A Client is not safe for concurrent use.
type Client struct {
	baseURL     string
	site        string
	username    string
	password    string
	profileUp   string
	profileDown string
	httpClient  *http.Client
	loggedIn    bool
	logger      *slog.Logger
}

// NewClient creates a UniFi API client. The base URL must be an absolute
// http or https URL.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be an absolute http(s) URL", cfg.BaseURL)
	}

	site := cfg.Site
	if site == "" {
		site = "default"
	}

	jar, err := httpkit.NewCookieJar()
	if err != nil {
		return nil, err
	}

	opts := []httpkit.ClientOption{
		httpkit.WithCookieJar(jar),
		httpkit.WithLogger(logger),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, httpkit.WithTimeout(cfg.Timeout))
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, httpkit.WithTLSInsecureSkipVerify())
	}

	return &Client{
		baseURL:     base,
		site:        site,
		username:    cfg.Username,
		password:    cfg.Password,
		profileUp:   cfg.PortProfileUp,
		profileDown: cfg.PortProfileDown,
		httpClient:  httpkit.NewClient(opts...),
		logger:      logger,
	}, nil
}

// LoggedIn reports whether a Login has succeeded on this client.
func (c *Client) LoggedIn() bool {
	return c.loggedIn
}

// Login authenticates with the controller. On success the session
// cookie is kept in the client's jar for subsequent requests.
func (c *Client) Login(ctx context.Context) error {
	const path = "/api/login"

	c.logger.Debug("logging in", "url", c.baseURL+path, "user", c.username)

	body := loginRequest{Username: c.username, Password: c.password}
	if err := c.call(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.loggedIn = true
	c.logger.Info("login ok", "user", c.username)
	return nil
}

// EnablePort applies the configured "up" profile to port on deviceID.
func (c *Client) EnablePort(ctx context.Context, deviceID string, port int) error {
	return c.ChangePortSettings(ctx, deviceID, port, c.profileUp)
}

// DisablePort applies the configured "down" profile to port on deviceID.
func (c *Client) DisablePort(ctx context.Context, deviceID string, port int) error {
	return c.ChangePortSettings(ctx, deviceID, port, c.profileDown)
}

// ChangePortSettings applies the port configuration profile profileID
// to port on deviceID.
//
// If the client has no session yet it logs in first. If the controller
// reports that the session has expired, the client logs in once more
// and retries the change exactly once; a second failure is returned as
// is. A fresh client whose first change hits an expired session thus
// makes four requests: login, PUT, login, PUT.
func (c *Client) ChangePortSettings(ctx context.Context, deviceID string, port int, profileID string) error {
	if deviceID == "" {
		return errors.New("device ID is empty")
	}
	if port <= 0 {
		return fmt.Errorf("invalid port number %d", port)
	}
	if profileID == "" {
		return errors.New("port profile ID is empty")
	}

	if !c.loggedIn {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	path := fmt.Sprintf("/api/s/%s/rest/device/%s", url.PathEscape(c.site), url.PathEscape(deviceID))
	payload := NewPortOverrideRequest(port, profileID)

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		if pretty, err := json.MarshalIndent(payload, "", "  "); err == nil {
			c.logger.Debug("port override request", "url", c.baseURL+path, "json", string(pretty))
		}
	}

	err := c.call(ctx, http.MethodPut, path, payload)
	if errors.Is(err, ErrLoginRequired) {
		c.logger.Info("session expired, logging in again")
		c.loggedIn = false
		if err := c.Login(ctx); err != nil {
			return err
		}
		err = c.call(ctx, http.MethodPut, path, payload)
	}
	if err != nil {
		return fmt.Errorf("change port %d on device %s: %w", port, deviceID, err)
	}

	c.logger.Info("port profile applied",
		"device_id", deviceID,
		"port", port,
		"portconf_id", profileID,
	)
	return nil
}

// call sends body as JSON and interprets the response envelope. It
// returns nil for rc "ok" and an *APIError for rc "error". Anything else,
// including a body that is not an envelope, is a transport error. The
// HTTP status is not used for classification because the controller
// reports an expired session as 401 with a regular envelope.
func (c *Client) call(ctx context.Context, method, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	c.logger.Log(ctx, levelTrace, "controller response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"body", string(raw),
	)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("UniFi API status %d: decode response: %w (body: %q)", resp.StatusCode, err, excerpt(raw))
	}
	if env.Meta == nil {
		return fmt.Errorf("UniFi API status %d: response has no meta (body: %q)", resp.StatusCode, excerpt(raw))
	}

	switch env.Meta.RC {
	case rcOK:
		return nil
	case rcError:
		return &APIError{Msg: env.Meta.Msg}
	default:
		return fmt.Errorf("UniFi API status %d: unexpected rc %q", resp.StatusCode, env.Meta.RC)
	}
}

// excerpt trims a response body for inclusion in an error message.
func excerpt(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
