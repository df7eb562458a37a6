package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cryptobotx-go/internal/config"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ProviderError is an error reported by the identity provider,
// e.g. EMAIL_NOT_FOUND or INVALID_PASSWORD.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error (%d): %s", e.StatusCode, e.Message)
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Login is an email/password pair.
type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type passwordRequest struct {
	Login
	ReturnSecureToken bool `json:"returnSecureToken"`
}

type passwordResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type refreshResponse struct {
	UserID       string `json:"user_id"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

// Client talks to the identity provider's REST API.
// It implements Renewer.
type Client struct {
	identity *resty.Client
	token    *resty.Client
	apiKey   string
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

var _ Renewer = (*Client)(nil)

// NewClient creates an identity provider client.
func NewClient(cfg *config.Auth, logger *zap.Logger) *Client {
	return &Client{
		identity: resty.New().SetBaseURL(cfg.IdentityURL),
		token:    resty.New().SetBaseURL(cfg.TokenURL),
		apiKey:   cfg.APIKey,
		logger:   logger.Named("auth"),
		validate: validator.New(),
		now:      time.Now,
	}
}

// SignIn authenticates an existing account.
func (c *Client) SignIn(ctx context.Context, login Login) (*Credential, error) {
	return c.passwordFlow(ctx, "/accounts:signInWithPassword", login)
}

// SignUp registers a new account and signs it in.
func (c *Client) SignUp(ctx context.Context, login Login) (*Credential, error) {
	return c.passwordFlow(ctx, "/accounts:signUp", login)
}

func (c *Client) passwordFlow(ctx context.Context, path string, login Login) (*Credential, error) {
	if err := c.validate.Struct(login); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	resp, err := c.identity.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(passwordRequest{Login: login, ReturnSecureToken: true}).
		SetResult(&passwordResponse{}).
		SetError(&errorEnvelope{}).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	if resp.IsError() {
		return nil, providerError(resp)
	}

	result := resp.Result().(*passwordResponse)
	c.logger.Info("Signed in", zap.String("email", result.Email), zap.String("user_id", result.LocalID))
	return &Credential{
		UserID:       result.LocalID,
		Email:        result.Email,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    c.expiry(result.ExpiresIn),
	}, nil
}

// Refresh exchanges a refresh token for a fresh id token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	resp, err := c.token.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		SetResult(&refreshResponse{}).
		SetError(&errorEnvelope{}).
		Post("/token")
	if err != nil {
		return nil, fmt.Errorf("token refresh request failed: %w", err)
	}
	if resp.IsError() {
		return nil, providerError(resp)
	}

	result := resp.Result().(*refreshResponse)
	c.logger.Debug("Renewed id token", zap.String("user_id", result.UserID))
	return &Credential{
		UserID:       result.UserID,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    c.expiry(result.ExpiresIn),
	}, nil
}

func (c *Client) expiry(expiresIn string) time.Time {
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		return time.Time{}
	}
	return c.now().Add(time.Duration(seconds) * time.Second)
}

func providerError(resp *resty.Response) error {
	perr := &ProviderError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	if env, ok := resp.Error().(*errorEnvelope); ok && env.Error.Message != "" {
		perr.Message = env.Error.Message
	}
	return perr
}
