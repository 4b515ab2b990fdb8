package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/dto"
	"github.com/soulmechanik/forems-portal/internal/metrics"
	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CredentialCookie is the cookie name the backend reads its credential from
const CredentialCookie = "token"

// maxBodySize caps how much of a backend reply is read
const maxBodySize = 1 << 20

// Config holds client configuration
type Config struct {
	BaseURL string
	// DefaultTimeout applies when the caller's context has no deadline
	DefaultTimeout time.Duration
	Transport      http.RoundTripper
}

// Client talks to the rental backend REST API
type Client struct {
	baseURL        string
	defaultTimeout time.Duration
	http           *http.Client
}

// NewClient creates a new backend client
func NewClient(cfg Config) *Client {
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		defaultTimeout: cfg.DefaultTimeout,
		http: &http.Client{
			Transport: telemetry.HTTPTransport(cfg.Transport),
			// Bounds come from contexts; redirects are never followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// GoogleAuth exchanges a Google identity for an application identity
func (c *Client) GoogleAuth(ctx context.Context, req dto.GoogleAuthRequest) (*dto.GoogleAuthResponse, error) {
	var out dto.GoogleAuthResponse
	if err := c.do(ctx, "google_auth", http.MethodPost, "/api/auth/googleAuth", "", req, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &Error{Op: "google_auth", StatusCode: http.StatusOK, Reason: out.Error}
	}
	return &out, nil
}

// Me reads the current identity record with a bearer credential
func (c *Client) Me(ctx context.Context, credential string) (*dto.MeResponse, error) {
	var out dto.MeResponse
	if err := c.do(ctx, "me", http.MethodGet, "/api/auth/me", credential, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SwitchRole asks the backend to change the active role
func (c *Client) SwitchRole(ctx context.Context, credential string, role domain.Role) (*dto.SwitchRoleResponse, error) {
	var out dto.SwitchRoleResponse
	body := dto.SwitchRoleRequest{Role: string(role)}
	if err := c.do(ctx, "switch_role", http.MethodPost, "/api/auth/switch-role", credential, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinableProperties lists properties the user can join
func (c *Client) JoinableProperties(ctx context.Context, credential string) ([]dto.JoinableProperty, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "joinable_properties", http.MethodGet, "/api/property/joinable", credential, nil, &raw); err != nil {
		return nil, err
	}
	return decodePropertyList(raw)
}

// RequestPasswordReset starts the password reset flow for email
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*dto.MessageResponse, error) {
	var out dto.MessageResponse
	body := map[string]string{"email": email}
	if err := c.do(ctx, "request_password_reset", http.MethodPost, "/api/auth/request-password-reset", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword completes a password reset
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (*dto.MessageResponse, error) {
	var out dto.MessageResponse
	body := map[string]string{"token": token, "newPassword": newPassword}
	if err := c.do(ctx, "reset_password", http.MethodPost, "/api/auth/reset-password", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail confirms an email verification token
func (c *Client) VerifyEmail(ctx context.Context, token string) (*dto.MessageResponse, error) {
	var out dto.MessageResponse
	path := "/api/auth/verify-email?token=" + url.QueryEscape(token)
	if err := c.do(ctx, "verify_email", http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendVerification asks the backend to send a new verification email
func (c *Client) ResendVerification(ctx context.Context, userID string) (*dto.MessageResponse, error) {
	var out dto.MessageResponse
	body := map[string]string{"userId": userID}
	if err := c.do(ctx, "resend_verification", http.MethodPost, "/api/auth/resend-verification", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path, credential string, in, out any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "backend."+op)
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend %s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("backend %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
		req.AddCookie(&http.Cookie{Name: CredentialCookie, Value: credential})
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordBackendCall(ctx, op, 0, time.Since(start))
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()
	metrics.RecordBackendCall(ctx, op, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return classifyTransport(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb dto.ErrorBody
		_ = json.Unmarshal(data, &eb)
		return &Error{Op: op, StatusCode: resp.StatusCode, Reason: eb.Reason()}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend %s: decode response: %w", op, err)
	}
	return nil
}

// decodePropertyList accepts either a bare array or an object wrapping it
func decodePropertyList(raw json.RawMessage) ([]dto.JoinableProperty, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []dto.JoinableProperty{}, nil
	}

	var list []dto.JoinableProperty
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("backend joinable_properties: decode response: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Properties []dto.JoinableProperty `json:"properties"`
		Data       []dto.JoinableProperty `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("backend joinable_properties: decode response: %w", err)
	}
	if wrapped.Properties != nil {
		return wrapped.Properties, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return []dto.JoinableProperty{}, nil
}
