package paginate

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"GameStatsSync/internal/transport"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// ErrRateLimitExhausted 同一页连续两次被限流
var ErrRateLimitExhausted = errors.New("rate limit exhausted")

// Strategy 终止条件
type Strategy int

const (
	// KnownExtent 首个页面的响应里带有总页数
	KnownExtent Strategy = iota
	// UntilEmpty 一直翻页直到空页或 success=false
	UntilEmpty
)

// Result 单页抓取结果。Total 为源报告的总页数（未知时为0），Done 为源的结束标记
type Result[T any] struct {
	Items []T
	Total int
	Done  bool
	// More 源本页有数据但条目全部被过滤，UntilEmpty 下不能当作空页结束
	More bool
}

// Fetcher 抓取并解析第 page 页
type Fetcher[T any] func(ctx context.Context, page int) (Result[T], error)

// Page 驱动器产出的一页
type Page[T any] struct {
	Number int
	Items  []T
	Total  int
}

// PageError 某一页的失败
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Page, e.Err) }

func (e *PageError) Unwrap() error { return e.Err }

// Driver 翻页驱动配置
type Driver struct {
	Strategy Strategy
	// Backoff 被限流后的等待时长，等待后同一页只重试一次
	Backoff time.Duration
	// Workers 并行抓取时的最大并发，<=1 时退化为顺序抓取
	Workers int
	// Sleep 可替换的等待函数，nil 时使用真实计时器
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *logrus.Entry
}

func (d Driver) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d Driver) logger() *logrus.Entry {
	if d.Logger != nil {
		return d.Logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Retry 执行一次操作；遇到限流则等待 Backoff 后重试一次，第二次限流返回 ErrRateLimitExhausted
func Retry[T any](ctx context.Context, d Driver, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if transport.Classify(err) != transport.OutcomeRetryable {
		return v, err
	}

	d.logger().WithError(err).WithField("backoff", d.Backoff.String()).Warn("触发限流，等待后重试")
	var zero T
	if err := d.sleep(ctx, d.Backoff); err != nil {
		return zero, err
	}
	v, err = fn(ctx)
	if transport.Classify(err) == transport.OutcomeRetryable {
		return zero, fmt.Errorf("%w: %v", ErrRateLimitExhausted, err)
	}
	return v, err
}

// Pages 从 start 页开始惰性翻页。失败的页以 *PageError 产出：
// KnownExtent 下跳过该页继续（首页失败除外，此时总页数未知），UntilEmpty 下终止
func Pages[T any](ctx context.Context, d Driver, start int, fetch Fetcher[T]) iter.Seq2[Page[T], error] {
	if start < 1 {
		start = 1
	}
	return func(yield func(Page[T], error) bool) {
		total := 0
		for n := start; ; n++ {
			if err := ctx.Err(); err != nil {
				yield(Page[T]{Number: n, Total: total}, err)
				return
			}

			res, err := Retry(ctx, d, func(ctx context.Context) (Result[T], error) {
				return fetch(ctx, n)
			})
			if err != nil {
				if !yield(Page[T]{Number: n, Total: total}, &PageError{Page: n, Err: err}) {
					return
				}
				if d.Strategy == UntilEmpty || total == 0 || n >= total ||
					transport.Classify(err) == transport.OutcomeFatal {
					return
				}
				continue
			}

			switch d.Strategy {
			case KnownExtent:
				if total == 0 {
					total = res.Total
				}
				if !yield(Page[T]{Number: n, Items: res.Items, Total: total}, nil) {
					return
				}
				if n >= total {
					return
				}
			case UntilEmpty:
				if res.Done || (len(res.Items) == 0 && !res.More) {
					return
				}
				if !yield(Page[T]{Number: n, Items: res.Items}, nil) {
					return
				}
			}
		}
	}
}

type pageResult[T any] struct {
	page Page[T]
	err  error
}

// Collect 顺序抓取首页确定总页数，其余页交给有界 worker 池并行抓取。
// 每页结果只在本 worker 内累积，全部 join 之后按页码合并。
// 首页失败视为无法确定范围，直接返回 error；其余页的失败收集在 []error 中。
func Collect[T any](ctx context.Context, d Driver, start int, fetch Fetcher[T]) ([]Page[T], []error, error) {
	if start < 1 {
		start = 1
	}
	first, err := Retry(ctx, d, func(ctx context.Context) (Result[T], error) {
		return fetch(ctx, start)
	})
	if err != nil {
		return nil, nil, &PageError{Page: start, Err: err}
	}
	total := first.Total
	pages := []Page[T]{{Number: start, Items: first.Items, Total: total}}
	if total <= start {
		return pages, nil, nil
	}

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	p := pool.NewWithResults[pageResult[T]]().WithMaxGoroutines(workers)
	for n := start + 1; n <= total; n++ {
		p.Go(func() pageResult[T] {
			res, err := Retry(ctx, d, func(ctx context.Context) (Result[T], error) {
				return fetch(ctx, n)
			})
			if err != nil {
				return pageResult[T]{page: Page[T]{Number: n, Total: total}, err: &PageError{Page: n, Err: err}}
			}
			return pageResult[T]{page: Page[T]{Number: n, Items: res.Items, Total: total}}
		})
	}

	var errs []error
	for _, r := range p.Wait() {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		pages = append(pages, r.page)
	}
	slices.SortFunc(pages, func(a, b Page[T]) int { return a.Number - b.Number })
	return pages, errs, nil
}
