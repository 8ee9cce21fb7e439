package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"genfity-staff-queue/internal/auth"
	"genfity-staff-queue/internal/orders"

	"go.uber.org/zap"
)

// APIError is a non-2xx answer from the order API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("order api %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("order api %d: %s", e.StatusCode, e.Message)
}

type HTTPConfig struct {
	BaseURL       string
	Timeout       time.Duration
	ServiceSecret string
	ServiceName   string
	TokenTTL      time.Duration
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	cfg     HTTPConfig
	now     func() time.Time

	tokenMu      sync.Mutex
	token        string
	tokenExpires time.Time
}

func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("order api base url is invalid")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "staff-queue"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (c *HTTPClient) FetchOrderQueue(ctx context.Context) (Queue, error) {
	var out Queue
	if err := c.do(ctx, http.MethodGet, "/api/staff/orders/queue", nil, &out); err != nil {
		return Queue{}, err
	}
	if out.Orders == nil {
		out.Orders = []orders.Order{}
	}
	return out, nil
}

func (c *HTTPClient) UpdateOrderStatus(ctx context.Context, orderID string, status orders.Status, staffID string, note *string) (orders.Order, error) {
	body := map[string]any{
		"status":  status,
		"staffId": staffID,
		"note":    note,
	}
	var out orders.Order
	if err := c.do(ctx, http.MethodPatch, "/api/staff/orders/"+url.PathEscape(orderID)+"/status", body, &out); err != nil {
		return orders.Order{}, err
	}
	return out, nil
}

func (c *HTTPClient) AssignOrder(ctx context.Context, orderID string, staffID string) error {
	body := map[string]any{"staffId": staffID}
	return c.do(ctx, http.MethodPost, "/api/staff/orders/"+url.PathEscape(orderID)+"/assign", body, nil)
}

func (c *HTTPClient) CancelOrder(ctx context.Context, orderID string, reason string) error {
	body := map[string]any{"reason": reason}
	return c.do(ctx, http.MethodPost, "/api/staff/orders/"+url.PathEscape(orderID)+"/cancel", body, nil)
}

func (c *HTTPClient) SetPriority(ctx context.Context, orderID string, priority orders.Priority) error {
	body := map[string]any{"priority": priority}
	return c.do(ctx, http.MethodPatch, "/api/staff/orders/"+url.PathEscape(orderID)+"/priority", body, nil)
}

func (c *HTTPClient) AddNote(ctx context.Context, orderID string, staffID string, note string) error {
	body := map[string]any{"staffId": staffID, "note": note}
	return c.do(ctx, http.MethodPost, "/api/staff/orders/"+url.PathEscape(orderID)+"/notes", body, nil)
}

func (c *HTTPClient) FetchNotifications(ctx context.Context, staffID string, query NotificationQuery) (NotificationPage, error) {
	params := url.Values{}
	if query.UnreadOnly {
		params.Set("unreadOnly", "true")
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		params.Set("offset", strconv.Itoa(query.Offset))
	}
	path := "/api/staff/" + url.PathEscape(staffID) + "/notifications"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out NotificationPage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return NotificationPage{}, err
	}
	if out.Notifications == nil {
		out.Notifications = []Notification{}
	}
	return out, nil
}

// MarkNotificationRead marks one notification, or all of them when notificationID is nil.
func (c *HTTPClient) MarkNotificationRead(ctx context.Context, staffID string, notificationID *string) error {
	body := map[string]any{}
	if notificationID != nil {
		body["notificationId"] = *notificationID
	} else {
		body["all"] = true
	}
	return c.do(ctx, http.MethodPost, "/api/staff/"+url.PathEscape(staffID)+"/notifications/read", body, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any, out any) error {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.ServiceSecret != "" {
		token, err := c.serviceToken()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("order api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	c.logger.Debug("order api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", c.now().Sub(start)),
	)

	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode order api response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (len(body) > 0 && !env.Success && env.Error != "") {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Code: env.Error, Message: msg}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode order api data: %w", err)
	}
	return nil
}

func (c *HTTPClient) serviceToken() (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	now := c.now()
	if c.token != "" && now.Add(30*time.Second).Before(c.tokenExpires) {
		return c.token, nil
	}
	token, expires, err := auth.SignServiceToken(c.cfg.ServiceSecret, c.cfg.ServiceName, c.cfg.TokenTTL, now)
	if err != nil {
		return "", err
	}
	c.token = token
	c.tokenExpires = expires
	return token, nil
}

// IsNotFound reports whether the order API answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
