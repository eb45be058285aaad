package client

import (
	"net/http"
	"strings"
	"time"

	"github.com/blang/semver/v4"

	"github.com/lk2023060901/awswire-go/internal/protocol"
	"github.com/lk2023060901/awswire-go/internal/protocol/rest"
	zlog "github.com/lk2023060901/awswire-go/pkg/log"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultSDKVersion  = "0.1.0"

	sdkName = "awswire-go"
)

// Config 描述客户端调用管线的配置。
//
// 说明：
//   - Family/JSONVersion/TargetPrefix 在构造时固定，决定所有操作使用的协议；
//   - Timeout 为单次尝试的超时，流式响应不受其限制；
//   - EC2MetadataV1Disabled 仅透传给外部凭证链，管线本身不解释它。
type Config struct {
	ServiceID string
	Endpoint  string

	Family       protocol.Family
	JSONVersion  string
	TargetPrefix string
	ErrorShapes  rest.ErrorShapes
	MaxFrameSize uint32

	SDKVersion  string
	AppID       string
	Timeout     time.Duration
	MaxAttempts int

	EC2MetadataV1Disabled bool

	HTTPClient   *http.Client
	Transport    Transport
	Signer       Signer
	Interceptors []Interceptor

	// Logger 允许调用方注入自定义日志实例；为空时使用全局日志。
	Logger *zlog.MLogger
}

// Option 为 Config 的可选配置项。
type Option func(*Config)

func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		if endpoint != "" {
			c.Endpoint = endpoint
		}
	}
}

// WithTimeout 设置单次尝试的超时时间。
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithMaxRetries 设置可重试错误的最大重试次数（不含首次调用）。
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxAttempts = n + 1
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

func WithTransport(t Transport) Option {
	return func(c *Config) {
		if t != nil {
			c.Transport = t
		}
	}
}

func WithSigner(s Signer) Option {
	return func(c *Config) {
		if s != nil {
			c.Signer = s
		}
	}
}

// WithInterceptors 追加拦截器，按追加顺序执行。
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *Config) {
		c.Interceptors = append(c.Interceptors, interceptors...)
	}
}

// WithLogger 注入具名日志实例。
func WithLogger(l *zlog.MLogger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

func (c *Config) fillDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.SDKVersion == "" {
		c.SDKVersion = defaultSDKVersion
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Transport == nil {
		c.Transport = &HTTPTransport{Client: c.HTTPClient}
	}
	if c.Signer == nil {
		c.Signer = AnonymousSigner{}
	}
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return merr.WrapErrConfigInvalidValue("endpoint", c.Endpoint, "endpoint must not be empty")
	}
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return merr.WrapErrConfigInvalidValue("endpoint", c.Endpoint, "endpoint must start with http:// or https://")
	}
	if _, err := semver.ParseTolerant(c.SDKVersion); err != nil {
		return merr.WrapErrConfigInvalidValue("sdkVersion", c.SDKVersion, err.Error())
	}
	return nil
}

// userAgent 返回形如 "awswire-go/1.2.0 api/<service> app/<id>" 的 User-Agent。
func (c *Config) userAgent() string {
	v, _ := semver.ParseTolerant(c.SDKVersion)
	var sb strings.Builder
	sb.WriteString(sdkName + "/" + v.String())
	if c.ServiceID != "" {
		sb.WriteString(" api/" + strings.ReplaceAll(strings.ToLower(c.ServiceID), " ", "-"))
	}
	if c.AppID != "" {
		sb.WriteString(" app/" + c.AppID)
	}
	return sb.String()
}
