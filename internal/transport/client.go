package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"GameStatsSync/internal/config"
	"GameStatsSync/internal/utils/httpclient"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	accept    = "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8"
)

// Expect 期望的响应体类型
type Expect int

const (
	ExpectHTML Expect = iota
	ExpectJSON
)

func (e Expect) String() string {
	if e == ExpectJSON {
		return "json"
	}
	return "html"
}

// Payload 一次成功请求的原始响应
type Payload struct {
	URL    string
	Status int
	Body   []byte
}

// Document 以HTML解析响应体
func (p Payload) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, p.URL, err)
	}
	return doc, nil
}

// DecodeJSON 以JSON解析响应体
func (p Payload) DecodeJSON(v any) error {
	if err := json.Unmarshal(p.Body, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, p.URL, err)
	}
	return nil
}

// Fetcher 传输层对外契约
type Fetcher interface {
	Fetch(ctx context.Context, url string, expect Expect) (Payload, error)
}

// Client 基于 resty 的传输层实现：固定身份头、节流、连接重置立即重试、状态码分类
type Client struct {
	platform string
	http     *resty.Client
	logger   *logrus.Logger
}

// NewClient 按平台配置创建传输层客户端
func NewClient(platform string, cfg config.PlatformConfig, logger *logrus.Logger) *Client {
	httpClient := resty.NewWithClient(httpclient.NewHTTPClient(&cfg, logger))
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetHeader("accept", accept)
	httpClient.SetHeader("accept-language", "en-US,en;q=0.9")

	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = time.Second
	}
	httpClient.SetRetryCount(cfg.RetryCount)
	httpClient.SetRetryWaitTime(retryWait)
	httpClient.SetRetryMaxWaitTime(retryWait)
	httpClient.AddRetryCondition(shouldRetry)

	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	return &Client{platform: platform, http: httpClient, logger: logger}
}

// shouldRetry 只对连接被重置和“其他”非2xx立即重试；429/401/403/502 交给上层
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return errors.Is(err, syscall.ECONNRESET)
	}
	if resp == nil {
		return false
	}
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return false
	}
	switch status {
	case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden, http.StatusBadGateway:
		return false
	}
	return true
}

// Fetch 发起GET请求并按状态码分类失败
func (c *Client) Fetch(ctx context.Context, url string, expect Expect) (Payload, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return Payload{}, ctx.Err()
		}
		c.logger.WithFields(logrus.Fields{
			"platform": c.platform,
			"url":      url,
		}).WithError(err).Debug("请求失败")
		return Payload{}, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests:
		return Payload{}, &StatusError{URL: url, Status: status, kind: ErrRateLimited}
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusBadGateway:
		return Payload{}, &StatusError{URL: url, Status: status, kind: ErrForbidden}
	case status < 200 || status >= 300:
		return Payload{}, &StatusError{URL: url, Status: status, kind: ErrFetchFailed}
	}

	p := Payload{URL: url, Status: status, Body: resp.Body()}
	if expect == ExpectJSON && !json.Valid(p.Body) {
		return Payload{}, fmt.Errorf("%w: %s: body is not json", ErrMalformedResponse, url)
	}
	return p, nil
}
