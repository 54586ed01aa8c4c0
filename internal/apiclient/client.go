package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/internal/session"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 10 * time.Second

// Session はクライアントが使うトークン操作（*session.Session が満たす）
type Session interface {
	AccessToken() string
	RefreshToken() string
	UpdateTokens(ctx context.Context, tokens session.Tokens) error
	Logout(ctx context.Context, reason session.LogoutReason)
}

// Client はカート/ほしい物リストAPIのクライアント。
// 401はリフレッシュして1回だけ再送する。
type Client struct {
	baseURL string
	http    *http.Client
	session Session
	logger  *zap.Logger

	refresh singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(baseURL string, sess Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		session: sess,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do は1リクエストを送る。authならBearerを付け、401でリフレッシュ→再送。
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, auth bool) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		body = b
	}

	token := ""
	if auth {
		token = c.session.AccessToken()
	}

	res, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return err
	}

	if res.StatusCode == http.StatusUnauthorized && auth {
		drain(res)

		fresh, err := c.refreshAccessToken(ctx, token)
		if err != nil {
			return err
		}
		res, err = c.send(ctx, method, path, body, fresh)
		if err != nil {
			return err
		}
	}
	defer drain(res)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return readStatusError(method, path, res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, bearer string) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	return res, nil
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// refreshAccessToken は同時に来た401をまとめて1回だけリフレッシュする。
// stale は401になったときのアクセストークン。既に差し替わっていればそれを返す。
func (c *Client) refreshAccessToken(ctx context.Context, stale string) (string, error) {
	v, err, _ := c.refresh.Do("refresh", func() (interface{}, error) {
		if cur := c.session.AccessToken(); cur != "" && cur != stale {
			return cur, nil
		}

		rt := c.session.RefreshToken()
		if rt == "" {
			c.session.Logout(ctx, session.ReasonTokenExpired)
			return "", ErrSessionExpired
		}

		res, err := c.send(ctx, http.MethodPost, "/auth/refresh", nil, rt)
		if err != nil {
			c.session.Logout(ctx, session.ReasonRefreshFailed)
			return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		defer drain(res)

		if res.StatusCode != http.StatusOK {
			c.logger.Info("token refresh rejected", zap.Int("status", res.StatusCode))
			c.session.Logout(ctx, session.ReasonRefreshFailed)
			return "", ErrSessionExpired
		}

		var out refreshResponse
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil || out.AccessToken == "" {
			c.session.Logout(ctx, session.ReasonRefreshFailed)
			return "", ErrSessionExpired
		}
		// ローテーションしないサーバーなら今のリフレッシュトークンを使い続ける
		if out.RefreshToken == "" {
			out.RefreshToken = rt
		}
		if err := c.session.UpdateTokens(ctx, session.Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}); err != nil {
			c.logger.Warn("failed to persist refreshed tokens", zap.Error(err))
		}
		return out.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func readStatusError(method, path string, res *http.Response) error {
	se := &StatusError{Method: method, Path: path, Status: res.StatusCode}
	var eb errorBody
	if err := json.NewDecoder(res.Body).Decode(&eb); err == nil {
		se.Message = eb.Error
		if se.Message == "" {
			se.Message = eb.Message
		}
	}
	return se
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
