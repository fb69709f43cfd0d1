package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/drstein77/storefront/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("backend unavailable")
)

// RejectedError is a 400 answer carrying a message meant for the user.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Client talks to the storefront REST API.
type Client struct {
	endpoint string
	http     *http.Client
	log      Log
}

func New(endpoint string, timeout time.Duration, log Log) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

// Products fetches the full catalog.
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.do(ctx, http.MethodGet, "/products", "", nil, &products); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return products, nil
}

// Search returns the products matching value. ErrNotFound means nothing matched.
func (c *Client) Search(ctx context.Context, value string) ([]models.Product, error) {
	var products []models.Product
	path := "/products/search?value=" + url.QueryEscape(value)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &products); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

// Cart fetches the cart entries of the token owner.
func (c *Client) Cart(ctx context.Context, token string) ([]models.CartEntry, error) {
	var entries []models.CartEntry
	if err := c.do(ctx, http.MethodGet, "/cart", token, nil, &entries); err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return entries, nil
}

// SetQuantity sets the quantity of productID and returns the updated cart.
func (c *Client) SetQuantity(ctx context.Context, token, productID string, qty int) ([]models.CartEntry, error) {
	var entries []models.CartEntry
	body := models.CartEntry{ProductID: productID, Qty: qty}
	if err := c.do(ctx, http.MethodPost, "/cart", token, body, &entries); err != nil {
		return nil, fmt.Errorf("update cart: %w", err)
	}
	return entries, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, creds models.Credentials) error {
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", creds, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Login exchanges credentials for an API token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error) {
	var res models.LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", creds, &res); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.log.Info("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if err := statusError(resp); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest:
		var apiResp models.APIResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil || apiResp.Message == "" {
			return &RejectedError{Message: http.StatusText(resp.StatusCode)}
		}
		return &RejectedError{Message: apiResp.Message}
	}
	return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
}
