package shopify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const accessTokenHeader = "X-Shopify-Access-Token"

// Config 远程客户端配置
type Config struct {
	ShopDomain  string // xxx.myshopify.com
	AccessToken string
	APIVersion  string
	BaseURL     string // 覆盖默认地址 (测试用)

	RequestPause   time.Duration
	RequestTimeout time.Duration
	ReadRPS        float64
	ReadBurst      int
}

// Client 店铺 API 客户端，所有出站调用经过同一个 Pacer
type Client struct {
	http   *resty.Client
	pacer  *Pacer
	token  string
	logger *zap.Logger
}

// NewClient 创建客户端
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.RequestPause <= 0 {
		cfg.RequestPause = DefaultRequestPause
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-01"
	}
	return NewClientWithPacer(cfg, NewPacer(cfg.RequestPause, cfg.ReadRPS, cfg.ReadBurst), logger)
}

// NewClientWithPacer 使用外部 Pacer 创建客户端
func NewClientWithPacer(cfg Config, pacer *Pacer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s/admin/api/%s", strings.TrimSuffix(cfg.ShopDomain, "/"), cfg.APIVersion)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// 重试由调用方决定，这里不开启
	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		pacer:  pacer,
		token:  cfg.AccessToken,
		logger: logger.Named("ShopifyClient"),
	}
}

// Pacer 返回共享节流器
func (c *Client) Pacer() *Pacer {
	return c.pacer
}

// ==================== 会话作用域 ====================

type sessionKey struct{}

// SessionFrom 取出上下文中的会话
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}

// WithSession 在会话作用域内执行 fn
// 嵌套调用复用最外层会话，最外层返回后会话关闭
func (c *Client) WithSession(ctx context.Context, fn func(ctx context.Context, api API) error) error {
	if s, ok := SessionFrom(ctx); ok && s.client == c && s.Open() {
		return fn(ctx, s)
	}

	s := &Session{
		id:     uuid.NewString(),
		client: c,
		token:  c.token,
		open:   true,
	}
	c.logger.Debug("会话开启", zap.String("session", s.id))
	defer func() {
		s.close()
		c.logger.Debug("会话关闭", zap.String("session", s.id), zap.Int("calls", s.Calls()))
	}()

	return fn(context.WithValue(ctx, sessionKey{}, s), s)
}
