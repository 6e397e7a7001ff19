// Package roku is a minimal client for the Roku External Control Protocol:
// empty-body POSTs to /keypress/<Key>, /keypress/Lit_<char> for text, and
// /launch/<appId>. Most devices listen on port 8060.
package roku

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// genericKeys maps the protocol's generic key names onto ECP keypress names.
// Roku's "Play" toggles play/pause on most devices, so all three playback
// keys land on it.
var genericKeys = map[string]string{
	"UP":         "Up",
	"DOWN":       "Down",
	"LEFT":       "Left",
	"RIGHT":      "Right",
	"ENTER":      "Select",
	"BACK":       "Back",
	"HOME":       "Home",
	"PLAY":       "Play",
	"PAUSE":      "Play",
	"PLAY_PAUSE": "Play",
}

// Client talks to one Roku device over HTTP.
type Client struct {
	baseURL      string
	http         *http.Client
	retries      int
	retryBackoff time.Duration
	perCharDelay time.Duration
}

// Option tweaks a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetries sets how many times a network failure is retried.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) { c.retries, c.retryBackoff = n, backoff }
}

// WithPerCharDelay sets the pause between Lit_ keypresses when typing.
func WithPerCharDelay(d time.Duration) Option {
	return func(c *Client) { c.perCharDelay = d }
}

// NewClient builds a client for the device at ip:port.
func NewClient(ip string, port int, opts ...Option) *Client {
	c := &Client{
		baseURL:      fmt.Sprintf("http://%s:%d", ip, port),
		http:         &http.Client{Timeout: 3 * time.Second},
		retries:      2,
		retryBackoff: 150 * time.Millisecond,
		perCharDelay: 20 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key sends one keypress using a generic key name (UP, DOWN, LEFT, RIGHT,
// ENTER, BACK, HOME, PLAY/PAUSE/PLAY_PAUSE).
func (c *Client) Key(ctx context.Context, genericKey string) error {
	if genericKey == "" {
		return fmt.Errorf("key is required")
	}
	rokuKey, ok := genericKeys[strings.ToUpper(genericKey)]
	if !ok {
		return fmt.Errorf("unsupported key %q, supported: %s", genericKey, strings.Join(supportedKeys(), ", "))
	}
	return c.post(ctx, "/keypress/"+rokuKey)
}

// Keypress sends a raw ECP keypress, bypassing the generic mapping.
func (c *Client) Keypress(ctx context.Context, rokuKey string) error {
	if rokuKey == "" {
		return fmt.Errorf("roku key is required")
	}
	return c.post(ctx, "/keypress/"+rokuKey)
}

// Text types text by sending one Lit_<char> keypress per character. A short
// delay between characters prevents overruns on some devices.
func (c *Client) Text(ctx context.Context, text string) error {
	for _, ch := range text {
		encoded := url.QueryEscape(string(ch))
		if err := c.post(ctx, "/keypress/Lit_"+encoded); err != nil {
			return err
		}
		if c.perCharDelay > 0 {
			select {
			case <-time.After(c.perCharDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Launch starts a channel by app id.
func (c *Client) Launch(ctx context.Context, appID string) error {
	if appID == "" {
		return fmt.Errorf("appId is required")
	}
	return c.post(ctx, "/launch/"+url.QueryEscape(appID))
}

// post issues an empty-body POST with bounded retries. Network errors are
// retried with exponential backoff; non-2xx responses are not.
func (c *Client) post(ctx context.Context, path string) error {
	target := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(""))
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.retries {
				backoff := c.retryBackoff * (1 << attempt)
				log.Debug().Err(err).Str("module", "roku").Str("path", path).Dur("backoff", backoff).Msg("retrying")
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
			return fmt.Errorf("roku ECP POST %s: %w", path, lastErr)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("roku ECP POST %s failed: %d %s", path, resp.StatusCode, string(body))
		}
		return nil
	}
	return fmt.Errorf("roku ECP POST %s: %w", path, lastErr)
}

func supportedKeys() []string {
	keys := make([]string, 0, len(genericKeys))
	for k := range genericKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
