// Package client talks to the KitRunner HTTP API. It implements wizard.API.
package client

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
	"time"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/handler/dto"
	"github.com/safar/kitrunner/internal/idempotency"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/service"
	"github.com/safar/kitrunner/internal/wizard"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status      int
	Code        string
	Message     string
	RequestID   string
	Fields      []apperr.FieldError
	CanRegister bool
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d", e.Status)
	}
	return e.Message
}

// Unwrap lets the wizard recognise an unknown customer.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound && e.CanRegister {
		return wizard.ErrCustomerNotFound
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client
}

var _ wizard.API = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for the API served at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListEvents(ctx context.Context) ([]models.Event, error) {
	var out []models.Event
	if err := c.do(ctx, http.MethodGet, "/api/events", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var out models.Event
	if err := c.do(ctx, http.MethodGet, "/api/events/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Identify(ctx context.Context, in service.IdentifyInput) (*models.Customer, error) {
	var out models.Customer
	if err := c.do(ctx, http.MethodPost, "/api/customers/identify", in, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, in service.RegisterInput) (*service.Registration, error) {
	var out service.Registration
	if err := c.do(ctx, http.MethodPost, "/api/customers/register", in, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAddresses(ctx context.Context, customerID int64) ([]models.Address, error) {
	var out []models.Address
	if err := c.do(ctx, http.MethodGet, customerPath(customerID, "addresses"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAddress(ctx context.Context, customerID int64, in service.AddressInput) (*models.Address, error) {
	var out models.Address
	if err := c.do(ctx, http.MethodPost, customerPath(customerID, "addresses"), in, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAddress(ctx context.Context, id int64, in service.AddressPatchInput) (*models.Address, error) {
	var out models.Address
	if err := c.do(ctx, http.MethodPut, "/api/addresses/"+strconv.FormatInt(id, 10), in, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CalculateDelivery(ctx context.Context, in service.CalculateInput) (*dto.Preview, error) {
	var out dto.Preview
	if err := c.do(ctx, http.MethodPost, "/api/delivery/calculate", in, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder places an order. A non-empty idempotencyKey makes the call safe
// to repeat.
func (c *Client) CreateOrder(ctx context.Context, in service.CreateOrderInput, idempotencyKey string) (*service.OrderConfirmation, error) {
	var headers http.Header
	if idempotencyKey != "" {
		headers = http.Header{idempotency.HeaderName: {idempotencyKey}}
	}

	var out service.OrderConfirmation
	if err := c.do(ctx, http.MethodPost, "/api/orders", in, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, orderNumber string) (*service.OrderConfirmation, error) {
	var out service.OrderConfirmation
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderNumber), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCustomerOrders(ctx context.Context, customerID int64, cursor string, limit int) (*dto.OrderPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := customerPath(customerID, "orders")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out dto.OrderPage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func customerPath(id int64, sub string) string {
	return "/api/customers/" + strconv.FormatInt(id, 10) + "/" + sub
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers http.Header, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var body dto.ErrorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return &APIError{Status: status, Message: strings.TrimSpace(string(data))}
	}
	return &APIError{
		Status:      status,
		Code:        body.Code,
		Message:     body.Message,
		RequestID:   body.RequestID,
		Fields:      body.Errors,
		CanRegister: body.CanRegister,
	}
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
