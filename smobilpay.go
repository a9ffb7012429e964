package smobilpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	SandboxBaseURL    = "https://s3p.smobilpay.staging.maviance.info/v2"
	ProductionBaseURL = "https://s3p.smobilpay.maviance.info/v2"
)

const (
	// RequestTimeout bounds every call made to Smobilpay.
	RequestTimeout = 30 * time.Second

	payableItemTTL = 30 * time.Minute
)

// HttpClient is the subset of *http.Client used to talk to Smobilpay.
type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type (
	// Smobilpay is an app used to collect mobile money payments through the S3P API.
	Smobilpay struct {
		client      HttpClient
		signer      *Signer
		baseURL     string
		environment Environment
		cache       *cache.Cache
		logger      *slog.Logger
	}

	// Option configures a Smobilpay app.
	Option func(*Smobilpay)
)

// WithBaseURL overrides the API base derived from the environment.
func WithBaseURL(baseURL string) Option {
	return func(s *Smobilpay) {
		s.baseURL = baseURL
	}
}

// WithLogger sets the logger used to trace API responses.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Smobilpay) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithoutCache disables caching of payable items.
func WithoutCache() Option {
	return func(s *Smobilpay) {
		s.cache = nil
	}
}

// NewApp initializes a new Smobilpay app that will be used to collect payments.
func NewApp(c HttpClient, merchantKey, secretKey string, env Environment, opts ...Option) *Smobilpay {
	if c == nil {
		c = &http.Client{
			Timeout: RequestTimeout,
		}
	}

	app := &Smobilpay{
		client:      c,
		baseURL:     env.BaseURL(),
		environment: env,
		cache:       cache.New(payableItemTTL, 10*time.Minute),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(app)
	}

	app.signer = NewSigner(app.baseURL, Credentials{MerchantKey: merchantKey, SecretKey: secretKey})
	return app
}

// Environment returns the current environment the app is running on.
func (s *Smobilpay) Environment() Environment {
	return s.environment
}

// BaseURL returns the API base the app sends requests to.
func (s *Smobilpay) BaseURL() string {
	return s.baseURL
}

// GetPayableItem resolves the payable items of a cashout service, e.g. 20053 for MTN Mobile Money.
// Successful lookups are cached per service code.
func (s *Smobilpay) GetPayableItem(ctx context.Context, serviceCode string) *Result {
	key := "cashout:" + serviceCode

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached.(*Result)
		}
	}

	res := s.get(ctx, "smobilpay.GetPayableItem", "/cashout", map[string]string{"serviceid": serviceCode})

	if res.Success && s.cache != nil {
		s.cache.Set(key, res, cache.DefaultExpiration)
	}

	return res
}

// GetPaymentOptions returns the details of a payable item.
func (s *Smobilpay) GetPaymentOptions(ctx context.Context, payableItemID string) *Result {
	return s.get(ctx, "smobilpay.GetPaymentOptions", "/cashout/"+url.PathEscape(payableItemID), nil)
}

// InitiateTransaction requests a quote for the payable item.
func (s *Smobilpay) InitiateTransaction(ctx context.Context, q QuoteRequest) *Result {
	return s.post(ctx, "smobilpay.InitiateTransaction", "/quotestd", q, q.params())
}

// FinalizeTransaction collects the quoted amount from the customer's mobile money account.
func (s *Smobilpay) FinalizeTransaction(ctx context.Context, c CollectRequest) *Result {
	return s.post(ctx, "smobilpay.FinalizeTransaction", "/collectstd", c, c.params())
}

// VerifyTransaction returns the current state of a collection.
func (s *Smobilpay) VerifyTransaction(ctx context.Context, transactionID string) *Result {
	return s.get(ctx, "smobilpay.VerifyTransaction", "/verifytx/"+url.PathEscape(transactionID), nil)
}

func (s *Smobilpay) get(ctx context.Context, op, path string, query map[string]string) *Result {
	endpoint := s.baseURL + path

	if len(query) > 0 {
		values := url.Values{}
		for k, v := range query {
			values.Set(k, v)
		}
		endpoint += "?" + values.Encode()
	}

	return s.makeRequest(ctx, op, http.MethodGet, path, endpoint, nil, query, nil)
}

func (s *Smobilpay) post(ctx context.Context, op, path string, body interface{}, params map[string]string) *Result {
	return s.makeRequest(ctx, op, http.MethodPost, path, s.baseURL+path, body, nil, params)
}

// makeRequest signs and performs all the http requests to Smobilpay and normalizes the response.
func (s *Smobilpay) makeRequest(
	ctx context.Context, op, method, path, endpoint string, body interface{}, query, params map[string]string,
) *Result {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	payload, err := toBytes(body)
	if err != nil {
		return requestFailure(op, fmt.Errorf("%s.MarshalBody:: %v", op, err))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytesReader(payload))
	if err != nil {
		return requestFailure(op, fmt.Errorf("%s.NewRequest:: %v", op, err))
	}

	req.Header.Set("Authorization", s.signer.Sign(method, path, query, params))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return networkFailure(op, err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkFailure(op, fmt.Errorf("%s.ReadBody:: %v", op, err))
	}

	s.logger.DebugContext(ctx, "smobilpay response",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(raw)),
	)

	return handleResponse(op, resp.StatusCode, raw)
}

// handleResponse classifies the response by status code.
func handleResponse(op string, statusCode int, raw []byte) *Result {
	var data json.RawMessage
	if json.Valid(raw) {
		data = raw
	}

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Result{Success: true, StatusCode: statusCode, Data: data}
	}

	message := "API request failed"

	var apiErr apiError
	if data != nil && json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		message = "Error: " + apiErr.Message
	}

	return &Result{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
		Err: &Error{
			Kind:       KindUpstreamHTTP,
			Op:         op,
			StatusCode: statusCode,
			Message:    message,
		},
	}
}

// requestFailure reports a request that could not be built, nothing was sent.
func requestFailure(op string, err error) *Result {
	const message = "Error: invalid request"

	return &Result{
		Message: message,
		Err:     &Error{Kind: KindValidation, Op: op, Message: message, Err: err},
	}
}

func networkFailure(op string, err error) *Result {
	message := "Error: request failed"

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		message = "Error: request timed out"
	}

	return &Result{
		Message: message,
		Err: &Error{
			Kind:    KindNetwork,
			Op:      op,
			Message: message,
			Err:     err,
		},
	}
}
