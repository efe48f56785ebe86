// Package httpclient builds the resty clients used for every upstream HTTP service.
package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const (
	userAgent  = "swap-quote-aggregator/1.0"
	maxBodyLen = 240
)

// Options configures a client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int // 0 = no retry
	Headers    map[string]string
}

// New creates a resty client with JSON defaults.
// Retries (when enabled) only fire on transport errors, 429 and 5xx.
func New(opts Options) *resty.Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)

	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	for k, v := range opts.Headers {
		c.SetHeader(k, v)
	}

	if opts.RetryCount > 0 {
		c.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
			}).
			SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
				if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
					if s := resp.Header().Get("Retry-After"); s != "" {
						if secs, err := strconv.Atoi(s); err == nil {
							return time.Duration(secs) * time.Second, nil
						}
					}
				}
				return 0, nil
			})
	}

	return c
}

// HTTPError is a non-2xx upstream answer
type HTTPError struct {
	Status int
	URL    string
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.Status, e.URL, e.Body)
}

// Check turns a resty result into an error for transport failures and non-2xx responses
func Check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	var msg struct {
		Message     string `json:"message"`
		Error       string `json:"error"`
		Description string `json:"description"`
		Reason      string `json:"reason"`
	}
	if json.Unmarshal(resp.Body(), &msg) == nil {
		for _, s := range []string{msg.Message, msg.Error, msg.Description, msg.Reason} {
			if s != "" {
				body = s
				break
			}
		}
	}
	body = truncate(body, maxBodyLen)

	url := ""
	if resp.Request != nil {
		url = resp.Request.URL
	}
	return &HTTPError{
		Status: resp.StatusCode(),
		URL:    url,
		Body:   body,
	}
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
