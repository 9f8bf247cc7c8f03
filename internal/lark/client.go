// Package lark implements domain.Messenger on the Lark / Feishu open platform SDK.
package lark

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"

	"larkmcp/internal/content"
	"larkmcp/internal/domain"
	"larkmcp/internal/handle"
)

// Config holds app credentials and request options.
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL is "feishu", "lark" or a full open platform URL. Empty means feishu.
	BaseURL string
	// Locale keys post content, e.g. "zh_cn" or "en_us".
	Locale  string
	Timeout time.Duration
	Verbose bool
	Logger  *slog.Logger
}

type Client struct {
	api    *lark.Client
	locale string
	logger *slog.Logger
}

var _ domain.Messenger = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("lark: app id and app secret are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := larkcore.LogLevelError
	if cfg.Verbose {
		level = larkcore.LogLevelDebug
	}
	opts := []lark.ClientOptionFunc{
		lark.WithOpenBaseUrl(baseURL(cfg.BaseURL)),
		lark.WithLogLevel(level),
		lark.WithLogger(sdkLogger{logger: logger.With("component", "lark-sdk")}),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, lark.WithReqTimeout(cfg.Timeout))
	}
	locale := cfg.Locale
	if locale == "" {
		locale = content.DefaultLocale
	}
	return &Client{
		api:    lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		locale: locale,
		logger: logger,
	}, nil
}

func baseURL(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "feishu":
		return lark.FeishuBaseUrl
	case "lark", "larksuite":
		return lark.LarkBaseUrl
	default:
		return strings.TrimRight(s, "/")
	}
}

// Ping checks credentials by listing one page of groups.
func (c *Client) Ping(ctx context.Context) error {
	_, _, _, err := c.listChatsPage(ctx, "", 1)
	return err
}

// Connect builds a client and verifies it can reach the platform.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("lark: connection check: %w", err)
	}
	return c, nil
}

// EnvFactory builds the client on first use from cfg, filling missing credentials
// from LARK_APP_ID and LARK_APP_SECRET. It builds nothing when no credentials exist.
func EnvFactory(cfg Config) handle.Factory[domain.Messenger] {
	return func(ctx context.Context) (domain.Messenger, bool, error) {
		if cfg.AppID == "" {
			cfg.AppID = os.Getenv("LARK_APP_ID")
		}
		if cfg.AppSecret == "" {
			cfg.AppSecret = os.Getenv("LARK_APP_SECRET")
		}
		if cfg.AppID == "" || cfg.AppSecret == "" {
			return nil, false, nil
		}
		c, err := Connect(ctx, cfg)
		if err != nil {
			return nil, false, err
		}
		return c, true, nil
	}
}

// apiError formats a non-success platform response.
func apiError(op string, code int, msg string) error {
	return fmt.Errorf("%s: code %d: %s", op, code, msg)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// sdkLogger routes SDK logging into slog.
type sdkLogger struct {
	logger *slog.Logger
}

func (l sdkLogger) Debug(ctx context.Context, args ...interface{}) {
	l.logger.DebugContext(ctx, fmt.Sprint(args...))
}

func (l sdkLogger) Info(ctx context.Context, args ...interface{}) {
	l.logger.InfoContext(ctx, fmt.Sprint(args...))
}

func (l sdkLogger) Warn(ctx context.Context, args ...interface{}) {
	l.logger.WarnContext(ctx, fmt.Sprint(args...))
}

func (l sdkLogger) Error(ctx context.Context, args ...interface{}) {
	l.logger.ErrorContext(ctx, fmt.Sprint(args...))
}
