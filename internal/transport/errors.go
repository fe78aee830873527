package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRateLimited 上游返回 429，由调用方决定退避时长
	ErrRateLimited = errors.New("rate limited")
	// ErrForbidden 401/403/502：该实体视为永久不可访问
	ErrForbidden = errors.New("forbidden")
	// ErrFetchFailed 其他非2xx或连接被重置，且立即重试已用尽
	ErrFetchFailed = errors.New("fetch failed")
	// ErrMalformedResponse 期望JSON但响应体无法解析
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError 携带HTTP状态码与请求地址
type StatusError struct {
	URL    string
	Status int
	kind   error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.kind, e.URL, e.Status)
}

func (e *StatusError) Unwrap() error { return e.kind }

// Outcome 单次操作结果的分类
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeSkip 放弃当前实体，继续下一个
	OutcomeSkip
	// OutcomeRetryable 等待退避后可重试
	OutcomeRetryable
	// OutcomeFatal 终止整个任务
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSkip:
		return "skip"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

// Classify 把任意错误归入唯一的结果类别
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeFatal
	case errors.Is(err, ErrRateLimited):
		return OutcomeRetryable
	default:
		// 禁止访问、页面结构不符、重试耗尽、约束冲突等都只影响当前实体
		return OutcomeSkip
	}
}
