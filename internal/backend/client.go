package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/config"
	"cryptobotx-go/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientInterface defines the operations offered by the trading-bot backend.
type ClientInterface interface {
	TradeHistory(ctx context.Context, sess *auth.Session, mode models.TradingMode, limit int) ([]models.TradeRecord, error)
	BotStatus(ctx context.Context, sess *auth.Session) (*models.BotStatus, error)
	Performance(ctx context.Context, sess *auth.Session) (*models.Performance, error)
	Setup(ctx context.Context, sess *auth.Session, req models.SetupRequest) error
	Start(ctx context.Context, sess *auth.Session) error
	Stop(ctx context.Context, sess *auth.Session) error
	Analyze(ctx context.Context, sess *auth.Session) (*models.Analysis, error)
	SetMode(ctx context.Context, sess *auth.Session, mode models.TradingMode) error
	Permissions(ctx context.Context, sess *auth.Session) (*models.Permissions, error)
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// Client is a client for the trading-bot backend REST API.
// It implements the ClientInterface.
type Client struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new backend API client.
func NewClient(cfg *config.Backend, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Client{
		client:     client,
		logger:     logger.Named("backend"),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		maxRetries: maxRetries,
		backoff:    exponentialBackoff,
	}
}

// exponentialBackoff waits 1s, 2s, 4s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// doRequest executes a request with rate limiting, bearer authentication and
// up to attempts tries. A 401 renews the session once and replays the request
// without consuming an attempt.
func (c *Client) doRequest(ctx context.Context, sess *auth.Session, method, path string, attempts int, build func(*resty.Request) *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	renewed := false

	for i := 0; i < attempts; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		token, tokenErr := sess.Token(ctx)
		if tokenErr != nil {
			return nil, fmt.Errorf("no credential for request: %w", tokenErr)
		}

		requestID := uuid.NewString()
		req := build(c.client.R()).
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("X-Request-ID", requestID).
			SetError(&errorBody{})

		c.logger.Debug("Executing request",
			zap.String("method", method),
			zap.String("url", c.client.BaseURL+path),
			zap.String("request_id", requestID))
		resp, err = req.Execute(method, path)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		if err == nil && resp.StatusCode() == http.StatusUnauthorized && !renewed {
			renewed = true
			if _, renewErr := sess.Renew(ctx); renewErr != nil {
				if errors.Is(renewErr, auth.ErrNotRenewable) {
					return nil, apiError(resp)
				}
				return nil, fmt.Errorf("request unauthorized: %w", renewErr)
			}
			c.logger.Info("Session renewed after 401, replaying request", zap.String("path", path))
			i--
			continue
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, apiError(resp)
		}
		if i == attempts-1 {
			break
		}

		if retryAfter == 0 {
			retryAfter = c.backoff(i)
		}

		c.logger.Warn("Request failed, retrying...",
			zap.String("path", path),
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil {
		err = apiError(resp)
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, err)
}

func apiError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}

type tradeHistoryResponse struct {
	Trades []json.RawMessage `json:"trades"`
}

// TradeHistory fetches up to limit most recent trades for the mode.
// It is a single best-effort attempt: no retries.
func (c *Client) TradeHistory(ctx context.Context, sess *auth.Session, mode models.TradingMode, limit int) ([]models.TradeRecord, error) {
	resp, err := c.doRequest(ctx, sess, http.MethodGet, "/trades/history", 1, func(r *resty.Request) *resty.Request {
		return r.
			SetQueryParam("limit", strconv.Itoa(limit)).
			SetQueryParam("mode", string(mode)).
			SetResult(&tradeHistoryResponse{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get trade history: %w", err)
	}

	// Items are decoded one by one so a single malformed item cannot
	// discard the rest of the batch.
	result := resp.Result().(*tradeHistoryResponse)
	trades := make([]models.TradeRecord, 0, len(result.Trades))
	for i, raw := range result.Trades {
		var rec models.TradeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger.Warn("Skipping undecodable trade record", zap.Int("index", i), zap.Error(err))
			continue
		}
		trades = append(trades, rec)
	}
	return trades, nil
}

// BotStatus fetches whether the bot is configured and running.
func (c *Client) BotStatus(ctx context.Context, sess *auth.Session) (*models.BotStatus, error) {
	resp, err := c.doRequest(ctx, sess, http.MethodGet, "/bot/status", c.maxRetries, func(r *resty.Request) *resty.Request {
		return r.SetResult(&models.BotStatus{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bot status: %w", err)
	}
	return resp.Result().(*models.BotStatus), nil
}

// Performance fetches the bot's risk and P&L counters.
func (c *Client) Performance(ctx context.Context, sess *auth.Session) (*models.Performance, error) {
	resp, err := c.doRequest(ctx, sess, http.MethodGet, "/bot/performance", c.maxRetries, func(r *resty.Request) *resty.Request {
		return r.SetResult(&models.Performance{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get performance: %w", err)
	}
	perf := resp.Result().(*models.Performance)
	perf.ApplyDefaults()
	return perf, nil
}

// Setup validates and sends the bot configuration.
func (c *Client) Setup(ctx context.Context, sess *auth.Session, setup models.SetupRequest) error {
	if err := setup.Validate(); err != nil {
		return fmt.Errorf("invalid bot setup: %w", err)
	}
	// Not retried: the request carries exchange secrets and is not idempotent.
	_, err := c.doRequest(ctx, sess, http.MethodPost, "/bot/setup", 1, func(r *resty.Request) *resty.Request {
		return r.SetBody(setup)
	})
	if err != nil {
		return fmt.Errorf("failed to set up bot: %w", err)
	}
	c.logger.Info("Bot configured", zap.String("strategy", setup.Strategy))
	return nil
}

// Start starts the remote bot.
func (c *Client) Start(ctx context.Context, sess *auth.Session) error {
	return c.control(ctx, sess, "start")
}

// Stop stops the remote bot.
func (c *Client) Stop(ctx context.Context, sess *auth.Session) error {
	return c.control(ctx, sess, "stop")
}

func (c *Client) control(ctx context.Context, sess *auth.Session, action string) error {
	_, err := c.doRequest(ctx, sess, http.MethodPost, "/bot/"+action, 1, func(r *resty.Request) *resty.Request {
		return r
	})
	if err != nil {
		return fmt.Errorf("failed to %s bot: %w", action, err)
	}
	c.logger.Info("Bot control request accepted", zap.String("action", action))
	return nil
}

// Analyze requests an AI recommendation from the backend.
func (c *Client) Analyze(ctx context.Context, sess *auth.Session) (*models.Analysis, error) {
	resp, err := c.doRequest(ctx, sess, http.MethodPost, "/bot/analyze", 1, func(r *resty.Request) *resty.Request {
		return r.SetResult(&models.Analysis{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get AI analysis: %w", err)
	}
	return resp.Result().(*models.Analysis), nil
}

// SetMode tells the backend which trading mode to use.
func (c *Client) SetMode(ctx context.Context, sess *auth.Session, mode models.TradingMode) error {
	_, err := c.doRequest(ctx, sess, http.MethodPost, "/bot/mode", 1, func(r *resty.Request) *resty.Request {
		return r.SetBody(map[string]string{"mode": string(mode)})
	})
	if err != nil {
		return fmt.Errorf("failed to switch trading mode: %w", err)
	}
	return nil
}

// Permissions fetches what the configured exchange key may do.
func (c *Client) Permissions(ctx context.Context, sess *auth.Session) (*models.Permissions, error) {
	resp, err := c.doRequest(ctx, sess, http.MethodGet, "/bot/permissions", c.maxRetries, func(r *resty.Request) *resty.Request {
		return r.SetResult(&models.Permissions{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get API permissions: %w", err)
	}
	perms := resp.Result().(*models.Permissions)
	perms.LastChecked = time.Now()
	return perms, nil
}
