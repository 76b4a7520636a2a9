// Package rest dispatches signed and unsigned REST calls to the venue,
// applying rate-limit admission, circuit breaking, and error classification
// on every request.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"krakenx/internal/circuitbreaker"
	"krakenx/internal/ratelimit"
	"krakenx/pkg/auth"
	"krakenx/pkg/core"
)

// Dispatcher executes REST requests against the Spot and Futures APIs.
// Every call flows through the same pipeline: circuit breaker admission,
// rate-limit admission, signing for private calls, transport, bucket
// reconciliation from the server-reported cost, and error classification.
// Dispatchers are safe for concurrent use.
type Dispatcher struct {
	spotPublic     *resty.Client
	spotPrivate    *resty.Client
	futuresPublic  *resty.Client
	futuresPrivate *resty.Client

	provider auth.Provider
	limiter  *ratelimit.Limiter
	breaker  *circuitbreaker.Breaker
	cfg      *core.Config
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a Dispatcher from the config and credential provider.
// The provider may be nil for a public-only dispatcher; private calls then
// fail with a credential error.
func NewDispatcher(cfg *core.Config, provider auth.Provider) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	capacity, decay := cfg.Tier.RateLimitParams()
	limiter := ratelimit.New(ratelimit.Config{
		Capacity:      capacity,
		DecayPerSec:   decay,
		PublicRPS:     1,
		PublicBurst:   5,
		MaxOpenOrders: cfg.MaxOpenOrders,
	})

	var breaker *circuitbreaker.Breaker
	if cfg.CircuitBreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    cfg.CircuitBreakerFailThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
		})
	}

	d := &Dispatcher{
		// Private clients never retry: a nonce must reach the venue at
		// most once, and a replayed body would be rejected anyway.
		spotPublic:     newClient(cfg.SpotBaseURL, cfg, true),
		spotPrivate:    newClient(cfg.SpotBaseURL, cfg, false),
		futuresPublic:  newClient(cfg.FuturesBaseURL, cfg, true),
		futuresPrivate: newClient(cfg.FuturesBaseURL, cfg, false),
		provider:       provider,
		limiter:        limiter,
		breaker:        breaker,
		cfg:            cfg,
		logger:         zerolog.Nop(),
	}
	return d, nil
}

func newClient(baseURL string, cfg *core.Config, retry bool) *resty.Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(cfg.Timeout)
	if retry {
		client.SetRetryCount(cfg.MaxRetries)
		client.SetRetryWaitTime(cfg.RetryWaitMin)
		client.SetRetryMaxWaitTime(cfg.RetryWaitMax)
	}
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})
	return client
}

// SetLogger replaces the dispatcher logger. The default is a no-op logger.
func (d *Dispatcher) SetLogger(logger zerolog.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger = logger
}

// Limiter exposes the dispatcher's rate limiter, mainly for metrics.
func (d *Dispatcher) Limiter() *ratelimit.Limiter {
	return d.limiter
}

// BreakerState returns the circuit breaker state, or StateClosed when the
// breaker is disabled.
func (d *Dispatcher) BreakerState() circuitbreaker.State {
	if d.breaker == nil {
		return circuitbreaker.StateClosed
	}
	return d.breaker.State()
}

// Close releases the underlying HTTP clients. Subsequent calls fail.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for _, c := range []*resty.Client{d.spotPublic, d.spotPrivate, d.futuresPublic, d.futuresPrivate} {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Do executes a request through the full pipeline and decodes the result
// payload into out when out is non-nil.
func (d *Dispatcher) Do(ctx context.Context, req *core.Request, out any) error {
	return d.dispatch(ctx, req, out, true)
}

// dispatch runs the pipeline. Order helpers that have already paid the
// trading bucket pass admit=false to avoid a double charge.
func (d *Dispatcher) dispatch(ctx context.Context, req *core.Request, out any, admit bool) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return core.ErrSessionClosed
	}

	if d.breaker != nil && !d.breaker.Allow() {
		return core.ErrCircuitOpen
	}

	if admit {
		if err := d.limiter.Wait(ctx, req.Policy, req.Cost); err != nil {
			return err
		}
	}

	var signed *core.SignedRequest
	var err error
	if req.Private {
		signed, err = d.sign(req)
		if err != nil {
			return err
		}
	}

	resp, err := d.send(ctx, req, signed)

	success := err == nil && resp.StatusCode() < 500
	if d.breaker != nil {
		d.breaker.Record(success)
	}

	if err != nil {
		d.logger.Error().Err(err).
			Str("method", req.Method).
			Str("path", req.Path).
			Msg("rest request failed")
		return core.NewVenueError(core.ErrorTypeTransport, 0, err.Error())
	}

	d.reconcile(req, resp)

	d.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode()).
		Int("size", len(resp.Bytes())).
		Msg("rest response")

	if verr := classifyStatus(resp); verr != nil {
		return verr
	}

	switch req.Venue {
	case core.VenueFutures:
		return decodeFutures(resp.Bytes(), out)
	default:
		return decodeSpot(resp.Bytes(), out)
	}
}

func (d *Dispatcher) send(ctx context.Context, req *core.Request, signed *core.SignedRequest) (*resty.Response, error) {
	if signed == nil {
		client := d.spotPublic
		if req.Venue == core.VenueFutures {
			client = d.futuresPublic
		}
		r := client.R().SetContext(ctx)
		if len(req.Params) > 0 {
			r.SetQueryParams(map[string]string(req.Params))
		}
		if req.Method == "POST" {
			return r.Post(req.Path)
		}
		return r.Get(req.Path)
	}

	client := d.spotPrivate
	if req.Venue == core.VenueFutures {
		client = d.futuresPrivate
	}
	r := client.R().SetContext(ctx).SetHeaders(signed.Headers)
	if req.Method == "GET" {
		if signed.Body != "" {
			r.SetQueryString(signed.Body)
		}
		return r.Get(signed.Path)
	}
	r.SetHeader("Content-Type", "application/x-www-form-urlencoded")
	r.SetBody(signed.Body)
	return r.Post(signed.Path)
}

// sign prepares a private request: fresh nonce, encoded body, signature
// headers for the target venue.
func (d *Dispatcher) sign(req *core.Request) (*core.SignedRequest, error) {
	if d.provider == nil {
		return nil, auth.ErrMissingCredential
	}
	creds, err := d.provider.Supply()
	if err != nil {
		return nil, core.NewVenueError(core.ErrorTypeCredential, 0, err.Error())
	}
	nonce := auth.ForKey(creds.APIKey).Next()

	switch req.Venue {
	case core.VenueFutures:
		body := req.Params.Encode()
		sig, err := auth.SignFutures(req.Path, nonce, body, creds)
		if err != nil {
			return nil, core.NewVenueError(core.ErrorTypeSignature, 0, err.Error())
		}
		return &core.SignedRequest{
			Method: req.Method,
			Path:   req.Path,
			Body:   body,
			Nonce:  nonce,
			Headers: map[string]string{
				"APIKey":  creds.APIKey,
				"Nonce":   strconv.FormatUint(nonce, 10),
				"Authent": sig,
			},
			Signature: sig,
		}, nil
	default:
		// The nonce field leads the form body and is covered by the digest.
		body := "nonce=" + strconv.FormatUint(nonce, 10)
		if encoded := req.Params.Encode(); encoded != "" {
			body += "&" + encoded
		}
		sig, err := auth.SignSpot(req.Path, nonce, body, creds)
		if err != nil {
			return nil, core.NewVenueError(core.ErrorTypeSignature, 0, err.Error())
		}
		return &core.SignedRequest{
			Method: "POST",
			Path:   req.Path,
			Body:   body,
			Nonce:  nonce,
			Headers: map[string]string{
				"API-Key":  creds.APIKey,
				"API-Sign": sig,
			},
			Signature: sig,
		}, nil
	}
}

// reconcile feeds the server-reported request cost back into the local
// bucket so the client view converges on the venue's accounting.
func (d *Dispatcher) reconcile(req *core.Request, resp *resty.Response) {
	if d.cfg.CostHeader == "" || req.Policy == core.PolicyPublic {
		return
	}
	h := resp.Header().Get(d.cfg.CostHeader)
	if h == "" {
		return
	}
	actual, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return
	}
	d.limiter.Reconcile(req.Policy, actual, req.Cost)
}

func classifyStatus(resp *resty.Response) error {
	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 429:
		verr := core.NewVenueError(core.ErrorTypeRateLimit, status, "rate limited")
		if ra := resp.Header().Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				verr = verr.WithRetryAfter(time.Duration(secs) * time.Second)
			}
		}
		return verr
	case status >= 500:
		return core.NewVenueError(core.ErrorTypeTransport, status, resp.String())
	case status == 401 || status == 403:
		return core.NewVenueError(core.ErrorTypeAuthRejected, status, resp.String())
	default:
		return core.NewVenueError(core.ErrorTypeProtocol, status, resp.String())
	}
}

type spotEnvelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func decodeSpot(body []byte, out any) error {
	var env spotEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return core.NewVenueError(core.ErrorTypeProtocol, 0, fmt.Sprintf("malformed response: %v", err))
	}
	if len(env.Error) > 0 {
		return core.ParseErrorArray(env.Error)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(env.Result, out); err != nil {
		return core.NewVenueError(core.ErrorTypeProtocol, 0, fmt.Sprintf("malformed result: %v", err))
	}
	return nil
}

type futuresEnvelope struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

func decodeFutures(body []byte, out any) error {
	var env futuresEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return core.NewVenueError(core.ErrorTypeProtocol, 0, fmt.Sprintf("malformed response: %v", err))
	}
	if env.Result == "error" || env.Error != "" {
		return classifyFuturesError(env.Error)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return core.NewVenueError(core.ErrorTypeProtocol, 0, fmt.Sprintf("malformed result: %v", err))
	}
	return nil
}

func classifyFuturesError(code string) *core.VenueError {
	switch code {
	case "apiLimitExceeded":
		return core.NewVenueError(core.ErrorTypeRateLimit, 0, code).WithCode(code)
	case "authenticationError", "invalidSignature", "nonceBelowThreshold", "nonceDuplicate":
		return core.NewVenueError(core.ErrorTypeAuthRejected, 0, code).WithCode(code)
	default:
		return core.NewVenueError(core.ErrorTypeProtocol, 0, code).WithCode(code)
	}
}
