package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	RecvWindow int64 // мс, 0 = дефолт биржи
}

// Client: REST-клиент Binance spot (публичные и подписанные запросы).
type Client struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	recvWindow int64
	now        func() time.Time
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		recvWindow: cfg.RecvWindow,
		now:        time.Now,
	}
}

// APIError: ответ биржи с не-2xx статусом.
type APIError struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance http %d: code=%d msg=%s", e.Status, e.Code, e.Msg)
}

// Temporary: 5xx и лимиты запросов имеет смысл повторить.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == 418
}

// DuplicateOrder: ордер с таким clientOrderId биржа уже приняла.
func (e *APIError) DuplicateOrder() bool {
	return e.Code == -2010 && strings.Contains(strings.ToLower(e.Msg), "duplicate")
}

func (c *Client) sign(q url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	_, _ = io.WriteString(mac, q.Encode())
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, signed bool) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	if signed {
		q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		if c.recvWindow > 0 {
			q.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
		}
		q.Set("signature", c.sign(q))
	}

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		u := c.baseURL + path
		if len(q) > 0 {
			u += "?" + q.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(q.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		if uerr := sonic.Unmarshal(body, apiErr); uerr != nil || apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}
	return body, nil
}
