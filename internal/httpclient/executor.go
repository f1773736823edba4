package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/amass-me/locale-engine/internal/metrics"
	"github.com/amass-me/locale-engine/internal/rate"
	"github.com/amass-me/locale-engine/pkg/utils"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 1 << 20

// ErrRateLimited is returned when the local limiter denies a request before it is sent.
var ErrRateLimited = errors.New("rate limited")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Provider string
	Status   int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d", e.Provider, e.Status)
}

// DecodeError is returned when a 2xx body is not valid JSON for the target type.
type DecodeError struct {
	Provider string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode failed: %v", e.Provider, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Executor handles rate-limited, retrying HTTP execution with JSON decoding
// for a single upstream provider.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	provider     string
	errorHandler func(status int, body []byte) error
}

// New creates an Executor. errorHandler is called on non-2xx responses that are not retried to
// produce a provider-specific error. If nil, a *StatusError is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	provider string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		provider:     provider,
		errorHandler: errorHandler,
	}
}

// Provider returns the tag used in logs and metrics.
func (e *Executor) Provider() string { return e.provider }

// DoJSON executes req with rate limiting and retries, then JSON-decodes the response into out.
// 5xx, 429 and network errors are retried up to retryMax times; other non-2xx statuses are not.
// Backoff sleeps stop early when ctx is done.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, e.provider); err != nil {
			metrics.IncProviderRequest(e.provider, "rate_limited")
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	logURL := utils.MaskURLKey(req.URL.String())

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, Backoff(attempt-1)); err != nil {
				return fmt.Errorf("%s retry aborted: %w (last error: %v)", e.provider, err, lastErr)
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return fmt.Errorf("%s rewind body: %w", e.provider, err)
				}
				req.Body = body
			}
		}

		start := time.Now()
		status, body, err := e.do(req)
		metrics.ObserveDuration(metrics.GeoProviderDuration, start, e.provider)
		elapsed := time.Since(start)

		if err != nil {
			lastErr = err
			metrics.IncProviderRequest(e.provider, "network_error")
			e.logger.Warn(e.provider+".http_failed",
				zap.String("url", logURL),
				zap.Error(err),
				zap.Int("attempt", attempt))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if status >= 500 || status == http.StatusTooManyRequests {
			metrics.IncProviderRequest(e.provider, "http_error")
			e.logger.Warn(e.provider+".server_error",
				zap.Int("status", status),
				zap.String("url", logURL),
				zap.Duration("latency", elapsed))
			lastErr = &StatusError{Provider: e.provider, Status: status, Body: body}
			continue
		}

		if status < 200 || status > 299 {
			metrics.IncProviderRequest(e.provider, "http_error")
			if e.errorHandler != nil {
				return e.errorHandler(status, body)
			}
			return &StatusError{Provider: e.provider, Status: status, Body: body}
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				metrics.IncProviderRequest(e.provider, "decode_error")
				e.logger.Warn(e.provider+".decode_failed",
					zap.Error(err),
					zap.String("url", logURL),
					zap.ByteString("body", truncate(body, 256)))
				return &DecodeError{Provider: e.provider, Err: err}
			}
		}

		e.logger.Debug(e.provider+".http_success",
			zap.String("url", logURL),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed))

		return nil
	}

	return fmt.Errorf("%s request failed after %d attempts: %w", e.provider, e.retryMax+1, lastErr)
}

func (e *Executor) do(req *http.Request) (int, []byte, error) {
	resp, err := e.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
