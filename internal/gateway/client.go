package gateway

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

	"github.com/punchamoorthee/storefront/internal/domain"
)

const DefaultBaseURL = "https://api.paystack.co"

// DefaultChannels are the payment channels offered on the hosted checkout page.
var DefaultChannels = []string{"card", "bank", "ussd", "qr", "mobile_money", "bank_transfer"}

// Error is returned for every failed gateway call: transport failures,
// non-success responses and bodies missing the fields we rely on.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	// Rejected is set when the gateway answered well-formed but refused the
	// call itself: status false on a 2xx, or a 400/404 such as an unknown
	// reference. Auth failures, rate limits, outages, transport and decoding
	// failures leave it false so callers can retry.
	Rejected bool
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("gateway ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsRejected reports whether err is a gateway refusal rather than a failure to talk to it.
func IsRejected(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Rejected
}

var ErrMissingSecretKey = errors.New("gateway secret key is required")

type InitializeRequest struct {
	Email       string
	Amount      int64 // minor currency units
	Reference   string
	Currency    string
	CallbackURL string
	Metadata    domain.TransactionMetadata
	Channels    []string
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each gateway call. It never modifies a client passed to
// WithHTTPClient; New applies it to a copy.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client bound to one secret key. It fails fast when the key is empty.
func New(secretKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, ErrMissingSecretKey
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

// envelope is the response wrapper every gateway endpoint uses.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeBody struct {
	Email       string                     `json:"email"`
	Amount      int64                      `json:"amount"`
	Reference   string                     `json:"reference"`
	Currency    string                     `json:"currency"`
	CallbackURL string                     `json:"callback_url"`
	Metadata    domain.TransactionMetadata `json:"metadata"`
	Channels    []string                   `json:"channels,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    *int64          `json:"amount"`
	Currency  string          `json:"currency"`
	Metadata  json.RawMessage `json:"metadata"`
	Customer  *struct {
		CustomerCode string `json:"customer_code"`
		Email        string `json:"email"`
	} `json:"customer"`
	PaidAt *time.Time `json:"paid_at"`
}

// InitializeTransaction opens a hosted checkout session.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	const op = "initialize"
	if req.Amount < 0 {
		return nil, &Error{Op: op, Message: fmt.Sprintf("amount must be non-negative, got %d", req.Amount)}
	}

	payload, err := json.Marshal(initializeBody{
		Email:       req.Email,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
		Channels:    req.Channels,
	})
	if err != nil {
		return nil, &Error{Op: op, Message: "encode request", Err: err}
	}

	env, err := c.do(ctx, op, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Op: op, Message: "malformed data", Err: err}
	}
	if data.AuthorizationURL == "" || data.Reference == "" {
		return nil, &Error{Op: op, Message: "response missing authorization_url or reference"}
	}

	c.logger.Info("gateway transaction initialized", "reference", data.Reference, "amount", req.Amount, "currency", req.Currency)
	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// VerifyTransaction fetches the gateway's authoritative record for a reference.
// A failed or abandoned payment is a valid result, not an error.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*domain.Transaction, error) {
	const op = "verify"
	if strings.TrimSpace(reference) == "" {
		return nil, &Error{Op: op, Message: "reference is required"}
	}

	env, err := c.do(ctx, op, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Op: op, Message: "malformed data", Err: err}
	}
	if data.Reference == "" || data.Status == "" || data.Amount == nil {
		return nil, &Error{Op: op, Message: "response missing reference, status or amount"}
	}

	meta, err := decodeMetadata(data.Metadata)
	if err != nil {
		return nil, &Error{Op: op, Message: "malformed metadata", Err: err}
	}

	tx := &domain.Transaction{
		Reference: data.Reference,
		Status:    domain.TransactionStatus(data.Status),
		Amount:    *data.Amount,
		Currency:  data.Currency,
		Metadata:  meta,
		PaidAt:    data.PaidAt,
	}
	if data.Customer != nil {
		tx.Customer = &domain.Customer{Code: data.Customer.CustomerCode, Email: data.Customer.Email}
	}
	return tx, nil
}

// decodeMetadata accepts the shapes the gateway is known to echo: an object,
// a JSON-encoded object inside a string, or an empty value.
func decodeMetadata(raw json.RawMessage) (domain.TransactionMetadata, error) {
	var meta domain.TransactionMetadata
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`)) {
		return meta, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return meta, err
		}
		trimmed = []byte(s)
	}
	err := json.Unmarshal(trimmed, &meta)
	return meta, err
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = "request was not successful"
		}
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: msg, Rejected: isRefusal(resp.StatusCode)}
	}
	if len(env.Data) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "response missing data"}
	}
	return &env, nil
}

// isRefusal separates "the gateway said no" from "the gateway could not
// answer". Only the former is final.
func isRefusal(status int) bool {
	switch {
	case status >= 200 && status < 300:
		return true
	case status == http.StatusBadRequest, status == http.StatusNotFound:
		return true
	default:
		return false
	}
}
